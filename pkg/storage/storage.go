package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnavailable = errors.New("storage: backend unavailable")
	ErrUnknownKind = errors.New("storage: unknown kind")
)

// Kind names a built-in storage backend.
type Kind string

const (
	// KindLocal persists to a file and survives process restarts.
	KindLocal Kind = "local"

	// KindSession is shared by every client in the process and gone when the
	// process exits.
	KindSession Kind = "session"

	// KindMemory is private to a single client.
	KindMemory Kind = "memory"

	// KindRedis stores entries in a Redis database.
	KindRedis Kind = "redis"
)

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLocal, KindSession, KindMemory, KindRedis:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Adapter is a flat string key-value medium. Implementations must be safe
// for concurrent use. A missing key is reported with ok == false, not an
// error.
type Adapter interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error

	// Clear removes every entry the adapter holds.
	Clear(ctx context.Context) error
}

// Lister is implemented by adapters that can enumerate their keys. The
// Manager uses it to clear only its own namespace.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}
