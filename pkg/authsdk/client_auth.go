package authsdk

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authkit/pkg/jwtx"
)

// Login exchanges email and password for a session and stores it.
func (c *Client) Login(ctx context.Context, creds LoginCredentials) (*AuthResponse, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, newError(ErrInvalidCredentials, "email and password are required")
	}

	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	if err := c.validateAuthResponse(&resp, true); err != nil {
		return nil, err
	}

	if err := c.save(ctx, &resp, nil); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "logged in", "user_id", resp.User.ID)
	return &resp, nil
}

// Logout stops auto-refresh, clears the stored session and runs OnLogout.
// It never fails: storage errors are logged. A refresh still in flight
// will not write its result back.
func (c *Client) Logout(ctx context.Context) {
	c.sessionMu.Lock()

	c.mu.Lock()
	c.stopTimerLocked()
	c.generation++
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "failed to clear stored session", "err", err)
	}
	c.sessionMu.Unlock()

	c.logger.InfoContext(ctx, "logged out")

	if c.cfg.OnLogout != nil {
		c.cfg.OnLogout()
	}
}

// RefreshToken trades the stored refresh token for a new session. Calls
// made while a refresh for the same token is in flight share its result,
// including the context of the call that started it. On failure the stored
// session is left as it was.
func (c *Client) RefreshToken(ctx context.Context) (*AuthResponse, error) {
	refreshToken := c.RefreshTokenValue(ctx)
	if refreshToken == "" {
		return nil, newError(ErrTokenExpired, "no refresh token available")
	}

	v, err, shared := c.refreshes.Do(refreshToken, func() (any, error) {
		return c.refresh(ctx, refreshToken)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "joined in-flight refresh")
	}

	resp := *v.(*AuthResponse)
	return &resp, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	c.refreshing.Add(1)
	defer c.refreshing.Add(-1)

	gen := c.currentGeneration()

	// The caller read refreshToken before this flight started. A refresh
	// that finished in between has already rotated it, and a logout has
	// removed it; neither should hit the network with a stale token.
	switch current := c.RefreshTokenValue(ctx); {
	case current == "":
		return nil, newError(ErrTokenExpired, "session ended before refresh")
	case current != refreshToken:
		c.logger.DebugContext(ctx, "refresh token already rotated, returning stored session")
		return c.storedSession(ctx, current), nil
	}

	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	if err := c.validateAuthResponse(&resp, false); err != nil {
		return nil, err
	}

	if err := c.save(ctx, &resp, &gen); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "token refreshed")

	if c.cfg.OnTokenRefreshed != nil {
		c.cfg.OnTokenRefreshed(&resp)
	}
	return &resp, nil
}

// storedSession rebuilds an AuthResponse from what is persisted.
func (c *Client) storedSession(ctx context.Context, refreshToken string) *AuthResponse {
	access := c.AccessToken(ctx)
	return &AuthResponse{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    int(jwtx.SecondsUntilExpiryAt(access, c.now())),
		User:         c.User(ctx),
	}
}

// save persists resp and maps failures onto the error taxonomy.
func (c *Client) save(ctx context.Context, resp *AuthResponse, expectGen *uint64) error {
	err := c.persist(ctx, resp, expectGen)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errSessionReplaced):
		c.logger.InfoContext(ctx, "discarding refresh result, session changed during the request")
		return &Error{Kind: ErrTokenExpired, Message: "session ended during refresh", Err: err}
	default:
		c.logger.ErrorContext(ctx, "failed to persist session", "err", err)
		return c.report(&Error{Kind: ErrAuthFailure, Message: "failed to persist session", Err: err})
	}
}
