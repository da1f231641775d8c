package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/cryptox"
	"github.com/aussiebroadwan/authkit/pkg/jwtx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
	"github.com/aussiebroadwan/authkit/pkg/storage"
)

// Session is a freshly issued token pair.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         User
}

// refreshRecord is what the token store keeps per refresh token. The token
// itself is never stored, only its fingerprint as the key.
type refreshRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Tokens issues signed access tokens and opaque, single-use refresh tokens.
type Tokens struct {
	Signer     jwtx.Signer
	Verifier   jwtx.Verifier
	Store      *storage.Manager
	Users      *Users
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	// rotation is read-then-delete on the store, serialise it.
	mu sync.Mutex
}

func (s *Tokens) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func refreshKey(token string) string {
	return "refresh:" + cryptox.FingerprintToken(token)
}

// Issue mints a new session for u.
func (s *Tokens) Issue(ctx context.Context, u User) (*Session, error) {
	now := s.now()

	access, err := s.Signer.Sign(jwtx.NewAccessClaims(u.ID, u.Email, s.AccessTTL, s.Issuer, now))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rec := refreshRecord{UserID: u.ID, ExpiresAt: now.Add(s.RefreshTTL)}
	if err := s.Store.SetObject(ctx, refreshKey(refresh), rec); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessTTL,
		User:         u,
	}, nil
}

// Rotate redeems a refresh token and issues a new session in its place.
// The old refresh token is consumed even when it turns out to be expired.
func (s *Tokens) Rotate(ctx context.Context, refreshToken string) (*Session, error) {
	u, err := s.consume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return s.Issue(ctx, u)
}

// Redeem exchanges an access and refresh token pair handed out by an OAuth
// redirect for a fresh session. Both must belong to the same user.
func (s *Tokens) Redeem(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims, err := s.Verifier.Verify(accessToken)
	if err != nil {
		slogx.FromContext(ctx).Info("oauth callback rejected access token", "err", err)
		return nil, ErrInvalidAccess
	}

	u, err := s.consume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if u.ID != claims.Subject {
		return nil, ErrInvalidAccess
	}
	return s.Issue(ctx, u)
}

func (s *Tokens) consume(ctx context.Context, refreshToken string) (User, error) {
	if refreshToken == "" {
		return User{}, ErrInvalidRefresh
	}
	key := refreshKey(refreshToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec refreshRecord
	if !s.Store.GetObject(ctx, key, &rec) {
		return User{}, ErrInvalidRefresh
	}
	if err := s.Store.Remove(ctx, key); err != nil {
		return User{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	if !s.now().Before(rec.ExpiresAt) {
		return User{}, ErrInvalidRefresh
	}

	u, ok := s.Users.GetByID(rec.UserID)
	if !ok {
		return User{}, ErrInvalidRefresh
	}
	return u, nil
}
