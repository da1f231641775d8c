package authsdk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authkit/pkg/slogx"
	"github.com/aussiebroadwan/authkit/pkg/storage"
)

const (
	testEmail    = "a@b.com"
	testPassword = "secret"
	testUserID   = "u1"
)

// makeToken builds an unsigned JWT expiring at exp.
func makeToken(sub string, exp time.Time) string {
	enc := base64.RawURLEncoding
	payload := fmt.Sprintf(`{"sub":%q,"email":%q,"iat":%d,"exp":%d}`, sub, testEmail, time.Now().Unix(), exp.Unix())
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

// fakeAPI is an in-process stand-in for the auth API.
type fakeAPI struct {
	srv *httptest.Server

	mu          sync.Mutex
	ttl         time.Duration
	refreshSeq  int
	validTokens map[string]bool
	lastEnv     string
	lastReqID   string
	refreshGate chan struct{}
	refreshErr  int

	logins    atomic.Int32
	refreshes atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{ttl: time.Hour, validTokens: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", api.login)
	mux.HandleFunc("POST /auth/refresh", api.refresh)
	mux.HandleFunc("GET /auth/oauth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		writeJSON(w, http.StatusOK, OAuthURLResponse{URL: "https://provider.example/authorize?p=" + r.PathValue("provider")})
	})
	mux.HandleFunc("POST /auth/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		var data OAuthCallbackData
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.AccessToken == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "bad callback"})
			return
		}
		writeJSON(w, http.StatusOK, api.issue("oauth-user"))
	})

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) record(r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastEnv = r.Header.Get(HeaderEnvironment)
	a.lastReqID = r.Header.Get(HeaderRequestID)
}

func (a *fakeAPI) setTTL(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ttl = d
}

func (a *fakeAPI) environment() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastEnv
}

func (a *fakeAPI) issue(userID string) AuthResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.refreshSeq++
	refresh := fmt.Sprintf("R%d", a.refreshSeq)
	a.validTokens[refresh] = true

	return AuthResponse{
		AccessToken:  makeToken(userID, time.Now().Add(a.ttl)),
		RefreshToken: refresh,
		ExpiresIn:    int(a.ttl / time.Second),
		User:         &User{ID: userID, Email: testEmail},
	}
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	a.record(r)
	a.logins.Add(1)

	var creds LoginCredentials
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds.Email != testEmail || creds.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, a.issue(testUserID))
}

func (a *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	a.record(r)
	a.refreshes.Add(1)

	a.mu.Lock()
	gate, status := a.refreshGate, a.refreshErr
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var req RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	ok := a.validTokens[req.RefreshToken]
	delete(a.validTokens, req.RefreshToken)
	a.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "refresh token revoked"})
		return
	}

	resp := a.issue(testUserID)
	resp.User = nil
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeTimer records a scheduled refresh instead of running it.
type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped atomic.Bool
}

func (f *fakeTimer) Stop() bool { return !f.stopped.Swap(true) }

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) afterFunc(d time.Duration, fn func()) timerHandle {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	t := &fakeTimer{delay: d, fn: fn}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) last() *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if len(ft.timers) == 0 {
		return nil
	}
	return ft.timers[len(ft.timers)-1]
}

func (ft *fakeTimers) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.timers)
}

// newTestClient builds a memory-backed client whose timers are captured.
func newTestClient(t *testing.T, api *fakeAPI, mutate func(*Config)) (*Client, *fakeTimers) {
	t.Helper()

	cfg := Config{
		APIURL:  api.srv.URL,
		Storage: storage.KindMemory,
		Logger:  slogx.Discard(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	timers := &fakeTimers{}
	c.afterFunc = timers.afterFunc
	return c, timers
}

func login(t *testing.T, c *Client) *AuthResponse {
	t.Helper()

	resp, err := c.Login(context.Background(), LoginCredentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	return resp
}

// newStatusServer answers every request with status and body.
func newStatusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClientFor(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{APIURL: srv.URL, Storage: storage.KindMemory, Logger: slogx.Discard()}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
