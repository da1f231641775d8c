package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Provider is an identity provider supported by the OAuth endpoints.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderAzure    Provider = "azure"
	ProviderFacebook Provider = "facebook"
)

// Providers lists every supported Provider.
var Providers = []Provider{ProviderGoogle, ProviderGitHub, ProviderAzure, ProviderFacebook}

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderAzure, ProviderFacebook:
		return true
	}
	return false
}

// OAuthURL asks the API for the URL that starts the provider's login flow.
func (c *Client) OAuthURL(ctx context.Context, provider Provider) (string, error) {
	if !provider.Valid() {
		return "", newError(ErrOAuth, fmt.Sprintf("unsupported provider %q", provider))
	}

	var resp OAuthURLResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/oauth/"+url.PathEscape(string(provider)), nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", c.report(newError(ErrOAuth, "oauth url missing from response"))
	}
	return resp.URL, nil
}

// HandleOAuthCallback exchanges the tokens from a provider redirect for a
// session and stores it, exactly like Login.
func (c *Client) HandleOAuthCallback(ctx context.Context, data OAuthCallbackData) (*AuthResponse, error) {
	if data.AccessToken == "" || data.RefreshToken == "" {
		return nil, newError(ErrOAuth, "callback is missing tokens")
	}

	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/oauth/callback", data, &resp); err != nil {
		return nil, err
	}
	if err := c.validateAuthResponse(&resp, true); err != nil {
		return nil, err
	}

	if err := c.save(ctx, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}
