package authsdk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/authkit/pkg/jwtx"
	"github.com/aussiebroadwan/authkit/pkg/storage"
)

// Storage keys, before the configured prefix is applied.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// SessionState summarises the stored session.
type SessionState int

const (
	StateNoSession SessionState = iota
	StateAuthenticated
	StateExpired
	StateRefreshInFlight
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateRefreshInFlight:
		return "refresh_in_flight"
	default:
		return "no_session"
	}
}

// timerHandle is the part of *time.Timer the client needs.
type timerHandle interface {
	Stop() bool
}

// Client manages one session against the auth API. It is safe for
// concurrent use.
type Client struct {
	cfg     Config
	store   *storage.Manager
	backend string
	http    HTTPClient
	logger  *slog.Logger

	// sessionMu serialises whole-session writes against logout.
	sessionMu sync.Mutex

	mu         sync.Mutex
	env        Environment
	generation uint64 // bumped whenever the stored session is replaced or cleared
	timer      timerHandle
	timerGen   uint64
	closed     bool

	refreshes  singleflight.Group
	refreshing atomic.Int32

	now       func() time.Time
	afterFunc func(time.Duration, func()) timerHandle
}

// New validates cfg, opens the configured storage and, when a session is
// already stored, arms the auto-refresh timer for it.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adapter, backend := openStorage(ctx, &cfg)

	c := &Client{
		cfg:     cfg,
		store:   storage.NewManager(adapter, cfg.StoragePrefix, cfg.Logger),
		backend: backend,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger.With("component", "authsdk"),
		env:     cfg.Environment,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) timerHandle {
			return time.AfterFunc(d, f)
		},
	}

	if token, ok := c.store.Get(ctx, keyAccessToken); ok {
		c.scheduleRefresh(token)
	}

	return c, nil
}

// NewClient is New with a background context.
func NewClient(cfg Config) (*Client, error) {
	return New(context.Background(), cfg)
}

// Close stops the refresh timer and releases the storage backend. The
// stored session is left in place.
func (c *Client) Close() error {
	c.mu.Lock()
	c.stopTimerLocked()
	c.closed = true
	c.mu.Unlock()

	return c.store.Close()
}

// StorageBackend names the medium in use: a storage.Kind or "custom".
func (c *Client) StorageBackend() string { return c.backend }

// ============================================================================
// Getters
// ============================================================================

// AccessToken returns the stored access token, or "" when there is none.
func (c *Client) AccessToken(ctx context.Context) string {
	v, _ := c.store.Get(ctx, keyAccessToken)
	return v
}

// RefreshTokenValue returns the stored refresh token, or "".
func (c *Client) RefreshTokenValue(ctx context.Context) string {
	v, _ := c.store.Get(ctx, keyRefreshToken)
	return v
}

// User returns the stored user, or nil when absent or unreadable.
func (c *Client) User(ctx context.Context) *User {
	var u User
	if !c.store.GetObject(ctx, keyUser, &u) || u.ID == "" {
		return nil
	}
	return &u
}

// Claims decodes the stored access token.
func (c *Client) Claims(ctx context.Context) (*jwtx.Claims, error) {
	token := c.AccessToken(ctx)
	if token == "" {
		return nil, newError(ErrTokenExpired, "no access token available")
	}
	return jwtx.Decode(token)
}

// IsAuthenticated reports whether a complete session is stored and its
// access token decodes and has not expired.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	token := c.AccessToken(ctx)
	if token == "" || c.RefreshTokenValue(ctx) == "" || c.User(ctx) == nil {
		return false
	}
	return !jwtx.IsExpiredAt(token, 0, c.now())
}

// State reports the session state. A refresh in flight takes precedence.
func (c *Client) State(ctx context.Context) SessionState {
	if c.refreshing.Load() > 0 {
		return StateRefreshInFlight
	}
	if c.IsAuthenticated(ctx) {
		return StateAuthenticated
	}
	if c.AccessToken(ctx) == "" && c.RefreshTokenValue(ctx) == "" && c.User(ctx) == nil {
		return StateNoSession
	}
	return StateExpired
}

// Environment returns the tag sent in X-Environment.
func (c *Client) Environment() Environment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env
}

// SetEnvironment switches the X-Environment tag for later requests. The
// stored session is untouched.
func (c *Client) SetEnvironment(env Environment) error {
	if _, err := ParseEnvironment(string(env)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.env = env
	return nil
}

// ============================================================================
// Session persistence
// ============================================================================

var errSessionReplaced = errors.New("session was replaced while the request was in flight")

func (c *Client) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// persist writes the session triple and re-arms auto-refresh. When
// expectGen is non-nil the write only happens if no logout or other
// session write has occurred since that generation was read.
func (c *Client) persist(ctx context.Context, resp *AuthResponse, expectGen *uint64) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if expectGen != nil && c.currentGeneration() != *expectGen {
		return errSessionReplaced
	}

	if err := c.store.Set(ctx, keyAccessToken, resp.AccessToken); err != nil {
		return err
	}
	if err := c.store.Set(ctx, keyRefreshToken, resp.RefreshToken); err != nil {
		return err
	}
	if resp.User != nil {
		if err := c.store.SetObject(ctx, keyUser, resp.User); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.generation++
	c.mu.Unlock()

	c.scheduleRefresh(resp.AccessToken)
	return nil
}

// validateAuthResponse rejects replies that would leave a partial session.
func (c *Client) validateAuthResponse(resp *AuthResponse, requireUser bool) error {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return c.report(newError(ErrAuthFailure, "auth response is missing tokens"))
	}
	if requireUser && (resp.User == nil || resp.User.ID == "") {
		return c.report(newError(ErrAuthFailure, "auth response is missing the user"))
	}
	return nil
}
