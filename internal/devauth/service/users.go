package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/authkit/pkg/cryptox"
	"github.com/aussiebroadwan/authkit/pkg/idx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// User is an account known to the dev server. Accounts created through an
// OAuth provider have no password hash and cannot log in with a password.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Provider     string
}

// Users is an in-memory user directory keyed by lower-cased email.
type Users struct {
	hasher *cryptox.Hasher

	mu      sync.RWMutex
	byEmail map[string]User
	byID    map[string]User
}

func NewUsers(hasher *cryptox.Hasher) *Users {
	return &Users{
		hasher:  hasher,
		byEmail: make(map[string]User),
		byID:    make(map[string]User),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a password account.
func (s *Users) Create(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return User{}, ErrUserExists
	}

	u := User{ID: idx.New().String(), Email: email, PasswordHash: hash}
	s.byEmail[email] = u
	s.byID[u.ID] = u

	slogx.FromContext(ctx).Info("user created", slog.String("user_id", u.ID))
	return u, nil
}

// Authenticate checks a password login. Every failure, including an
// unknown email, reports ErrInvalidCredentials.
func (s *Users) Authenticate(ctx context.Context, email, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()

	if !ok || u.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}

	if err := s.hasher.Verify(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Error("stored password hash unusable", "user_id", u.ID, "err", err)
		}
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpsertExternal returns the account for an email asserted by an OAuth
// provider, creating it on first sight.
func (s *Users) UpsertExternal(ctx context.Context, provider, email string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, fmt.Errorf("%w: provider returned no email", ErrProviderExchange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}

	u := User{ID: idx.New().String(), Email: email, Provider: provider}
	s.byEmail[email] = u
	s.byID[u.ID] = u

	slogx.FromContext(ctx).Info("user created from provider", "user_id", u.ID, "provider", provider)
	return u, nil
}

// GetByID fetches a user by id.
func (s *Users) GetByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	return u, ok
}
