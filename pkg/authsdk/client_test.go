package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authkit/pkg/storage"
)

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid credentials store the session", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)

		resp := login(t, c)
		require.Equal(t, testUserID, resp.User.ID)

		require.True(t, c.IsAuthenticated(ctx))
		require.Equal(t, StateAuthenticated, c.State(ctx))
		require.Equal(t, testEmail, c.User(ctx).Email)
		require.Equal(t, resp.AccessToken, c.AccessToken(ctx))
		require.Equal(t, resp.RefreshToken, c.RefreshTokenValue(ctx))

		claims, err := c.Claims(ctx)
		require.NoError(t, err)
		require.Equal(t, testUserID, claims.Subject)
	})

	t.Run("401 maps to invalid credentials and reports once", func(t *testing.T) {
		t.Parallel()

		var reported []error
		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, func(cfg *Config) {
			cfg.OnError = func(err error) { reported = append(reported, err) }
		})

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail, Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "bad credentials", apiErr.Message)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

		require.Len(t, reported, 1)
		require.Same(t, apiErr, reported[0])
		require.False(t, c.IsAuthenticated(ctx))
		require.Equal(t, StateNoSession, c.State(ctx))
	})

	t.Run("empty credentials never reach the api", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail})
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Zero(t, api.logins.Load())
	})
}

func TestTransportErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("non 401 failure without body", func(t *testing.T) {
		t.Parallel()

		srv := newStatusServer(t, http.StatusInternalServerError, "")
		c := newClientFor(t, srv, nil)

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, ErrAuthFailure)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		require.Equal(t, "Request failed", apiErr.Message)
	})

	t.Run("server message is kept", func(t *testing.T) {
		t.Parallel()

		srv := newStatusServer(t, http.StatusTooManyRequests, `{"message":"slow down"}`)
		c := newClientFor(t, srv, nil)

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, ErrAuthFailure)
		require.Contains(t, err.Error(), "slow down")
	})

	t.Run("unreachable server is a network error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := newStatusServer(t, http.StatusOK, "")
		srv.Close()
		c := newClientFor(t, srv, func(cfg *Config) {
			cfg.OnError = func(error) { calls.Add(1) }
		})

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, ErrNetwork)
		require.EqualValues(t, 1, calls.Load())
	})

	t.Run("undecodable success body is a network error", func(t *testing.T) {
		t.Parallel()

		srv := newStatusServer(t, http.StatusOK, "<html>")
		c := newClientFor(t, srv, nil)

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("response without tokens is rejected", func(t *testing.T) {
		t.Parallel()

		srv := newStatusServer(t, http.StatusOK, `{"user":{"id":"u1","email":"a@b.com"}}`)
		c := newClientFor(t, srv, nil)

		_, err := c.Login(ctx, LoginCredentials{Email: testEmail, Password: testPassword})
		require.ErrorIs(t, err, ErrAuthFailure)
		require.Empty(t, c.AccessToken(ctx))
	})
}

func TestEnvironmentHeader(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, nil)
	require.Equal(t, EnvironmentProduction, c.Environment())

	login(t, c)
	require.Equal(t, "production", api.environment())
	require.NotEmpty(t, api.lastReqID)

	require.NoError(t, c.SetEnvironment(EnvironmentDevelopment))
	_, err := c.OAuthURL(ctx, ProviderGitHub)
	require.NoError(t, err)
	require.Equal(t, "development", api.environment())

	// The session survives the switch.
	require.True(t, c.IsAuthenticated(ctx))

	require.ErrorIs(t, c.SetEnvironment("staging"), ErrInvalidConfig)
	require.Equal(t, EnvironmentDevelopment, c.Environment())
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("without a session", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)

		_, err := c.RefreshToken(ctx)
		require.ErrorIs(t, err, ErrTokenExpired)
		require.Zero(t, api.refreshes.Load())
	})

	t.Run("rotates tokens and keeps the user", func(t *testing.T) {
		t.Parallel()

		var refreshed []*AuthResponse
		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, func(cfg *Config) {
			cfg.OnTokenRefreshed = func(r *AuthResponse) { refreshed = append(refreshed, r) }
		})
		first := login(t, c)

		resp, err := c.RefreshToken(ctx)
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, resp.RefreshToken)
		require.Equal(t, resp.RefreshToken, c.RefreshTokenValue(ctx))
		require.Equal(t, testUserID, c.User(ctx).ID)
		require.True(t, c.IsAuthenticated(ctx))
		require.Len(t, refreshed, 1)
	})

	t.Run("failure keeps the stale session", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)
		first := login(t, c)

		api.mu.Lock()
		api.refreshErr = http.StatusBadGateway
		api.mu.Unlock()

		_, err := c.RefreshToken(ctx)
		require.ErrorIs(t, err, ErrAuthFailure)
		require.Equal(t, first.AccessToken, c.AccessToken(ctx))
		require.Equal(t, first.RefreshToken, c.RefreshTokenValue(ctx))
	})

	t.Run("concurrent calls share one request", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)
		login(t, c)

		gate := make(chan struct{})
		api.mu.Lock()
		api.refreshGate = gate
		api.mu.Unlock()

		const callers = 5
		var wg sync.WaitGroup
		results := make([]*AuthResponse, callers)
		errs := make([]error, callers)

		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = c.RefreshToken(ctx)
			}()
		}

		require.Eventually(t, func() bool { return api.refreshes.Load() == 1 }, time.Second, time.Millisecond)
		require.Equal(t, StateRefreshInFlight, c.State(ctx))

		// Give the other callers a moment to join the in-flight call.
		time.Sleep(20 * time.Millisecond)
		close(gate)
		wg.Wait()

		require.EqualValues(t, 1, api.refreshes.Load())
		for i := range callers {
			require.NoError(t, errs[i])
			require.Equal(t, results[0].RefreshToken, results[i].RefreshToken)
		}
	})

	t.Run("late caller with a rotated token reuses the stored session", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)
		first := login(t, c)

		second, err := c.RefreshToken(ctx)
		require.NoError(t, err)

		// A caller that read the first token before the rotation landed.
		resp, err := c.refresh(ctx, first.RefreshToken)
		require.NoError(t, err)
		require.EqualValues(t, 1, api.refreshes.Load())
		require.Equal(t, second.RefreshToken, resp.RefreshToken)
		require.Equal(t, second.AccessToken, resp.AccessToken)
		require.Equal(t, testUserID, resp.User.ID)
	})

	t.Run("late caller after logout", func(t *testing.T) {
		t.Parallel()

		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, nil)
		first := login(t, c)
		c.Logout(ctx)

		_, err := c.refresh(ctx, first.RefreshToken)
		require.ErrorIs(t, err, ErrTokenExpired)
		require.Zero(t, api.refreshes.Load())
	})

	t.Run("logout during refresh wins", func(t *testing.T) {
		t.Parallel()

		var refreshed atomic.Int32
		api := newFakeAPI(t)
		c, timers := newTestClient(t, api, func(cfg *Config) {
			cfg.OnTokenRefreshed = func(*AuthResponse) { refreshed.Add(1) }
		})
		login(t, c)
		armed := timers.count()

		gate := make(chan struct{})
		api.mu.Lock()
		api.refreshGate = gate
		api.mu.Unlock()

		done := make(chan error, 1)
		go func() {
			_, err := c.RefreshToken(ctx)
			done <- err
		}()

		require.Eventually(t, func() bool { return api.refreshes.Load() == 1 }, time.Second, time.Millisecond)
		c.Logout(ctx)
		close(gate)

		err := <-done
		require.ErrorIs(t, err, ErrTokenExpired)
		require.Empty(t, c.AccessToken(ctx))
		require.Empty(t, c.RefreshTokenValue(ctx))
		require.Nil(t, c.User(ctx))
		require.Zero(t, refreshed.Load())
		require.Equal(t, armed, timers.count(), "no timer may be armed after logout")
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var loggedOut, refreshed atomic.Int32
	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.OnLogout = func() { loggedOut.Add(1) }
		cfg.OnTokenRefreshed = func(*AuthResponse) { refreshed.Add(1) }
	})
	login(t, c)

	timer := timers.last()
	require.NotNil(t, timer)

	c.Logout(ctx)

	require.Empty(t, c.AccessToken(ctx))
	require.Empty(t, c.RefreshTokenValue(ctx))
	require.Nil(t, c.User(ctx))
	require.False(t, c.IsAuthenticated(ctx))
	require.EqualValues(t, 1, loggedOut.Load())
	require.True(t, timer.stopped.Load())

	// A callback that raced the cancellation must not refresh.
	timer.fn()
	require.Zero(t, api.refreshes.Load())
	require.Zero(t, refreshed.Load())

	// Logging out twice is harmless.
	c.Logout(ctx)
	require.EqualValues(t, 2, loggedOut.Load())
}

func TestLogoutSwallowsStorageErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var loggedOut bool
	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, func(cfg *Config) {
		cfg.StorageAdapter = brokenAdapter{}
		cfg.OnLogout = func() { loggedOut = true }
	})

	c.Logout(ctx)
	require.True(t, loggedOut)
}

func TestIsAuthenticated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(t *testing.T, values map[string]string) *Client {
		scoped := storage.NewScoped()
		for k, v := range values {
			require.NoError(t, scoped.SetItem(ctx, k, v))
		}
		api := newFakeAPI(t)
		c, _ := newTestClient(t, api, func(cfg *Config) {
			cfg.StorageAdapter = scoped
			cfg.DisableAutoRefresh = true
		})
		return c
	}

	user := `{"id":"u1","email":"a@b.com"}`

	t.Run("expired token", func(t *testing.T) {
		c := seed(t, map[string]string{
			"auth_access_token":  makeToken("u1", time.Now().Add(-time.Minute)),
			"auth_refresh_token": "R1",
			"auth_user":          user,
		})
		require.False(t, c.IsAuthenticated(ctx))
		require.Equal(t, StateExpired, c.State(ctx))
	})

	t.Run("undecodable token", func(t *testing.T) {
		c := seed(t, map[string]string{
			"auth_access_token":  "garbage",
			"auth_refresh_token": "R1",
			"auth_user":          user,
		})
		require.False(t, c.IsAuthenticated(ctx))
	})

	t.Run("partial session", func(t *testing.T) {
		c := seed(t, map[string]string{
			"auth_access_token": makeToken("u1", time.Now().Add(time.Hour)),
		})
		require.False(t, c.IsAuthenticated(ctx))
		require.Equal(t, StateExpired, c.State(ctx))
	})

	t.Run("corrupt user record", func(t *testing.T) {
		c := seed(t, map[string]string{
			"auth_access_token":  makeToken("u1", time.Now().Add(time.Hour)),
			"auth_refresh_token": "R1",
			"auth_user":          "{not json",
		})
		require.Nil(t, c.User(ctx))
		require.False(t, c.IsAuthenticated(ctx))
	})

	t.Run("complete session", func(t *testing.T) {
		c := seed(t, map[string]string{
			"auth_access_token":  makeToken("u1", time.Now().Add(time.Hour)),
			"auth_refresh_token": "R1",
			"auth_user":          user,
		})
		require.True(t, c.IsAuthenticated(ctx))
	})
}

func TestCustomPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	scoped := storage.NewScoped()
	require.NoError(t, scoped.SetItem(ctx, "app_theme", "dark"))

	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, func(cfg *Config) {
		cfg.StorageAdapter = scoped
		cfg.StoragePrefix = "myapp_"
	})
	login(t, c)

	_, ok, err := scoped.GetItem(ctx, "myapp_access_token")
	require.NoError(t, err)
	require.True(t, ok)

	c.Logout(ctx)

	keys, err := scoped.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"app_theme"}, keys)
}

type brokenAdapter struct{}

var errBrokenStorage = errors.New("disk on fire")

func (brokenAdapter) GetItem(context.Context, string) (string, bool, error) {
	return "", false, errBrokenStorage
}
func (brokenAdapter) SetItem(context.Context, string, string) error { return errBrokenStorage }
func (brokenAdapter) RemoveItem(context.Context, string) error      { return errBrokenStorage }
func (brokenAdapter) Clear(context.Context) error                   { return errBrokenStorage }

func TestLoginWithBrokenStorage(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, func(cfg *Config) { cfg.StorageAdapter = brokenAdapter{} })

	_, err := c.Login(context.Background(), LoginCredentials{Email: testEmail, Password: testPassword})
	require.ErrorIs(t, err, ErrAuthFailure)
	require.ErrorIs(t, err, errBrokenStorage)
}

func TestClaimsWithoutSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, func(cfg *Config) { cfg.StorageAdapter = storage.NewScoped() })

	_, err := c.Claims(ctx)
	require.ErrorIs(t, err, ErrTokenExpired)

	require.NoError(t, c.store.Set(ctx, keyAccessToken, "not.a-token"))
	_, err = c.Claims(ctx)
	require.ErrorIs(t, err, ErrInvalidToken)
}
