// Package redis stores session entries in Redis. Every key is placed under a
// namespace so Clear and Keys never touch unrelated data in the database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every Redis key written by the backend.
const DefaultNamespace = "authkit:"

type Store struct {
	rdb       redis.UniversalClient
	namespace string
	ttl       time.Duration
	owned     bool
}

// Option tweaks a Store.
type Option func(*Store)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// WithTTL expires entries after ttl. Zero keeps them until removed.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New wraps an existing client. The caller keeps ownership of rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the Redis server described by url (redis://...) and
// checks it answers a PING. Close releases the connection.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: redis url is empty", storage.ErrUnavailable)
	}

	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %v", storage.ErrUnavailable, err)
	}

	rdb := redis.NewClient(o)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: ping redis: %v", storage.ErrUnavailable, err)
	}

	s := New(rdb, opts...)
	s.owned = true
	return s, nil
}

// Close closes the client when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) key(k string) string { return s.namespace + k }

func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// Clear removes every key under the namespace.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Keys lists the stored keys with the namespace stripped.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.namespace)
	}
	return keys, nil
}

func (s *Store) scan(ctx context.Context) ([]string, error) {
	var out []string
	iter := s.rdb.Scan(ctx, 0, s.namespace+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	return out, iter.Err()
}

var (
	_ storage.Adapter = (*Store)(nil)
	_ storage.Lister  = (*Store)(nil)
)
