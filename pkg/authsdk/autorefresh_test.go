package authsdk

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authkit/pkg/slogx"
	"github.com/aussiebroadwan/authkit/pkg/storage"
)

func TestAutoRefreshDelay(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.setTTL(400 * time.Second)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.RefreshBuffer = 300 * time.Second
	})

	login(t, c)

	timer := timers.last()
	require.NotNil(t, timer)
	require.InDelta(t, float64(100*time.Second), float64(timer.delay), float64(2*time.Second))
}

func TestAutoRefreshDefaultBuffer(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, nil)

	login(t, c)

	// One hour token, five minute buffer.
	require.InDelta(t, float64(55*time.Minute), float64(timers.last().delay), float64(2*time.Second))
}

func TestAutoRefreshWithoutBuffer(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.setTTL(400 * time.Second)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.NoRefreshBuffer = true
	})

	login(t, c)
	require.InDelta(t, float64(400*time.Second), float64(timers.last().delay), float64(2*time.Second))
}

func TestAutoRefreshShortLivedTokenFiresImmediately(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	api.setTTL(60 * time.Second)
	c, timers := newTestClient(t, api, nil)

	login(t, c)
	require.Zero(t, timers.last().delay)
}

func TestAutoRefreshReplacesTimer(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, nil)

	login(t, c)
	first := timers.last()

	_, err := c.RefreshToken(context.Background())
	require.NoError(t, err)

	require.True(t, first.stopped.Load())
	require.Equal(t, 2, timers.count())
	require.False(t, timers.last().stopped.Load())
}

func TestAutoRefreshFires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var refreshed atomic.Int32
	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.OnTokenRefreshed = func(*AuthResponse) { refreshed.Add(1) }
	})
	first := login(t, c)

	timers.last().fn()

	require.EqualValues(t, 1, api.refreshes.Load())
	require.EqualValues(t, 1, refreshed.Load())
	require.NotEqual(t, first.RefreshToken, c.RefreshTokenValue(ctx))
	require.Equal(t, 2, timers.count(), "a successful refresh re-arms")

	// Firing the consumed timer again does nothing.
	timers.timers[0].fn()
	require.EqualValues(t, 1, api.refreshes.Load())
}

func TestAutoRefreshFailureReportsOnceAndStops(t *testing.T) {
	t.Parallel()

	var reported atomic.Int32
	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.OnError = func(error) { reported.Add(1) }
	})
	login(t, c)

	api.mu.Lock()
	api.refreshErr = http.StatusServiceUnavailable
	api.mu.Unlock()

	timers.last().fn()

	require.EqualValues(t, 1, reported.Load())
	require.Equal(t, 1, timers.count(), "failed auto-refresh is not rescheduled")
}

func TestAutoRefreshInterruptedByLogoutIsNotAnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var reported atomic.Int32
	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.OnError = func(error) { reported.Add(1) }
	})
	login(t, c)

	gate := make(chan struct{})
	api.mu.Lock()
	api.refreshGate = gate
	api.mu.Unlock()

	fired := make(chan struct{})
	go func() {
		defer close(fired)
		timers.last().fn()
	}()

	require.Eventually(t, func() bool { return api.refreshes.Load() == 1 }, time.Second, time.Millisecond)
	c.Logout(ctx)
	close(gate)
	<-fired

	require.Zero(t, reported.Load())
	require.Empty(t, c.AccessToken(ctx))
}

func TestAutoRefreshWithoutRefreshTokenReports(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var reported []error
	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, func(cfg *Config) {
		cfg.OnError = func(err error) { reported = append(reported, err) }
	})
	login(t, c)

	require.NoError(t, c.store.Remove(ctx, keyRefreshToken))
	timers.last().fn()

	require.Len(t, reported, 1)
	require.ErrorIs(t, reported[0], ErrTokenExpired)
}

func TestAutoRefreshDisabled(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c, timers := newTestClient(t, api, func(cfg *Config) { cfg.DisableAutoRefresh = true })

	login(t, c)
	require.Zero(t, timers.count())
}

func TestAutoRefreshSkipsTokenWithoutExpiry(t *testing.T) {
	t.Parallel()

	srv := newStatusServer(t, http.StatusOK,
		`{"access_token":"e30.e30.sig","refresh_token":"R1","expires_in":0,"user":{"id":"u1","email":"a@b.com"}}`)
	c := newClientFor(t, srv, nil)
	timers := &fakeTimers{}
	c.afterFunc = timers.afterFunc

	_, err := c.Login(context.Background(), LoginCredentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.Zero(t, timers.count())
}

func TestNewArmsTimerForStoredSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	scoped := storage.NewScoped()
	require.NoError(t, scoped.SetItem(ctx, "auth_access_token", makeToken("u1", time.Now().Add(time.Hour))))

	c, err := New(ctx, Config{
		APIURL:         "http://auth.invalid",
		StorageAdapter: scoped,
		Logger:         slogx.Discard(),
	})
	require.NoError(t, err)

	c.mu.Lock()
	armed := c.timer != nil
	c.mu.Unlock()
	require.True(t, armed)

	require.NoError(t, c.Close())

	c.mu.Lock()
	armed = c.timer != nil
	c.mu.Unlock()
	require.False(t, armed)
}
