package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/cryptox"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
	"github.com/aussiebroadwan/authkit/pkg/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultStateTTL bounds how long a user may take at the provider.
const DefaultStateTTL = 10 * time.Minute

// ProviderConfig describes one upstream identity provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	Endpoint     oauth2.Endpoint

	// UserInfoURL returns a JSON object with an "email" field when called
	// with the provider's access token.
	UserInfoURL string
}

// KnownProvider returns the stock configuration for google, github, azure
// and facebook. Credentials still have to be filled in.
func KnownProvider(name, azureTenant string) (ProviderConfig, bool) {
	switch name {
	case "google":
		return ProviderConfig{
			Endpoint:    endpoints.Google,
			Scopes:      []string{"openid", "email"},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		}, true
	case "github":
		return ProviderConfig{
			Endpoint:    endpoints.GitHub,
			Scopes:      []string{"read:user", "user:email"},
			UserInfoURL: "https://api.github.com/user",
		}, true
	case "azure":
		if azureTenant == "" {
			azureTenant = "common"
		}
		return ProviderConfig{
			Endpoint:    endpoints.AzureAD(azureTenant),
			Scopes:      []string{"openid", "email", "User.Read"},
			UserInfoURL: "https://graph.microsoft.com/oidc/userinfo",
		}, true
	case "facebook":
		return ProviderConfig{
			Endpoint:    endpoints.Facebook,
			Scopes:      []string{"email"},
			UserInfoURL: "https://graph.facebook.com/me?fields=email",
		}, true
	}
	return ProviderConfig{}, false
}

type provider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// pendingLogin is kept between the redirect to the provider and its
// callback, keyed by the state parameter.
type pendingLogin struct {
	Provider  string    `json:"provider"`
	Verifier  string    `json:"verifier"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OAuth runs the authorization code flow (with PKCE) against upstream
// providers and turns the result into a local session.
type OAuth struct {
	Store    *storage.Manager
	Users    *Users
	Tokens   *Tokens
	StateTTL time.Duration

	// HTTPClient is used for token exchange and user info calls.
	HTTPClient *http.Client

	// Now defaults to time.Now.
	Now func() time.Time

	providers map[string]provider
}

// Register enables a provider. Its callback lands on
// <publicURL>/auth/oauth/<name>/callback.
func (s *OAuth) Register(name, publicURL string, pc ProviderConfig) {
	if s.providers == nil {
		s.providers = make(map[string]provider)
	}
	s.providers[name] = provider{
		cfg: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			Endpoint:     pc.Endpoint,
			Scopes:       pc.Scopes,
			RedirectURL:  publicURL + "/auth/oauth/" + url.PathEscape(name) + "/callback",
		},
		userInfoURL: pc.UserInfoURL,
	}
}

// Providers lists the registered provider names.
func (s *OAuth) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for n := range s.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *OAuth) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OAuth) ctx(ctx context.Context) context.Context {
	if s.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}
	return ctx
}

func stateKey(state string) string { return "oauth_state:" + state }

// AuthURL starts a login with name and returns the provider URL to send
// the user to.
func (s *OAuth) AuthURL(ctx context.Context, name string) (string, error) {
	p, ok := s.providers[name]
	if !ok {
		return "", ErrUnknownProvider
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	ttl := s.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	pending := pendingLogin{Provider: name, Verifier: verifier, ExpiresAt: s.now().Add(ttl)}
	if err := s.Store.SetObject(ctx, stateKey(state), pending); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete finishes a login: it checks state, exchanges code with the
// provider, resolves the user's email and issues a local session.
func (s *OAuth) Complete(ctx context.Context, name, state, code string) (*Session, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}

	var pending pendingLogin
	if !s.Store.GetObject(ctx, stateKey(state), &pending) {
		return nil, ErrInvalidState
	}
	if err := s.Store.Remove(ctx, stateKey(state)); err != nil {
		return nil, fmt.Errorf("remove oauth state: %w", err)
	}
	if pending.Provider != name || !s.now().Before(pending.ExpiresAt) {
		return nil, ErrInvalidState
	}

	hctx := s.ctx(ctx)
	tok, err := p.cfg.Exchange(hctx, code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		slogx.FromContext(ctx).Warn("provider code exchange failed", "provider", name, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrProviderExchange, err)
	}

	email, err := fetchEmail(hctx, p.cfg.Client(hctx, tok), p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderExchange, err)
	}

	u, err := s.Users.UpsertExternal(ctx, name, email)
	if err != nil {
		return nil, err
	}
	return s.Tokens.Issue(ctx, u)
}

func fetchEmail(ctx context.Context, client *http.Client, userInfoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user info: status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return "", fmt.Errorf("user info: %w", err)
	}
	return info.Email, nil
}
