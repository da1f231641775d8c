package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aussiebroadwan/authkit/internal/devauth/service"
	"github.com/aussiebroadwan/authkit/pkg/authsdk"
	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// OAuthHandler serves the provider login flow.
type OAuthHandler struct {
	OAuth       *service.OAuth
	Tokens      *service.Tokens
	FrontendURL string
}

// HandleURL serves GET /auth/oauth/{provider}.
//
//	@Summary		Start an OAuth login
//	@Description	Returns the provider authorization URL. The state and PKCE verifier are kept server side for ten minutes.
//	@Tags			OAuth
//	@Produce		json
//	@Param			provider	path		string						true	"Provider name"	Enums(google, github, azure, facebook)
//	@Success		200			{object}	authsdk.OAuthURLResponse	"url"
//	@Failure		404			{object}	authsdk.ErrorResponse		"message"
//	@Router			/auth/oauth/{provider} [get]
func (h *OAuthHandler) HandleURL(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	authURL, err := h.OAuth.AuthURL(r.Context(), provider)
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		httpx.WriteError(w, http.StatusNotFound, "Unsupported provider")
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("build oauth url failed", "provider", provider, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Could not start OAuth login")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.OAuthURLResponse{URL: authURL})
}

// HandleProviderRedirect serves GET /auth/oauth/{provider}/callback, where
// the provider sends the browser back. On success the browser is forwarded
// to FrontendURL with the session tokens as query parameters.
//
//	@Summary		Provider redirect
//	@Description	Provider redirect target. Exchanges the code and forwards the browser to the frontend with access_token, refresh_token and expires_in in the query. Without a frontend URL the session is returned as JSON.
//	@Tags			OAuth
//	@Produce		json
//	@Param			provider	path		string					true	"Provider name"
//	@Param			state		query		string					true	"State from the authorization URL"
//	@Param			code		query		string					true	"Authorization code"
//	@Param			error		query		string					false	"Set by the provider when the user declined"
//	@Success		200			{object}	authsdk.AuthResponse	"session, when no frontend URL is configured"
//	@Success		302			"redirect to the frontend"
//	@Failure		400			{object}	authsdk.ErrorResponse	"message"
//	@Failure		404			{object}	authsdk.ErrorResponse	"message"
//	@Failure		502			{object}	authsdk.ErrorResponse	"message"
//	@Router			/auth/oauth/{provider}/callback [get]
func (h *OAuthHandler) HandleProviderRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		httpx.WriteError(w, http.StatusBadRequest, "Provider denied login: "+e)
		return
	}

	sess, err := h.OAuth.Complete(ctx, r.PathValue("provider"), q.Get("state"), q.Get("code"))
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		httpx.WriteError(w, http.StatusNotFound, "Unsupported provider")
		return
	case errors.Is(err, service.ErrInvalidState):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired OAuth state")
		return
	case errors.Is(err, service.ErrProviderExchange):
		httpx.WriteError(w, http.StatusBadGateway, "Provider login failed")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("oauth completion failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Could not complete OAuth login")
		return
	}

	if h.FrontendURL == "" {
		httpx.WriteJSON(w, http.StatusOK, toAuthResponse(sess))
		return
	}

	target, err := url.Parse(h.FrontendURL)
	if err != nil {
		slogx.FromContext(ctx).Error("frontend url invalid", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Could not complete OAuth login")
		return
	}
	fq := target.Query()
	fq.Set("access_token", sess.AccessToken)
	fq.Set("refresh_token", sess.RefreshToken)
	fq.Set("expires_in", strconv.Itoa(int(sess.ExpiresIn.Seconds())))
	target.RawQuery = fq.Encode()

	httpx.NoCache(w)
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// HandleCallback serves POST /auth/oauth/callback.
//
//	@Summary		Complete an OAuth login
//	@Description	Redeems the token pair a provider redirect handed to the frontend and returns a fresh session. The posted refresh token is consumed.
//	@Tags			OAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.OAuthCallbackData	true	"access_token, refresh_token, expires_in"
//	@Success		200		{object}	authsdk.AuthResponse		"access_token, refresh_token, expires_in, user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"message"
//	@Failure		401		{object}	authsdk.ErrorResponse		"message"
//	@Router			/auth/oauth/callback [post]
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body authsdk.OAuthCallbackData
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "access_token and refresh_token are required")
		return
	}

	sess, err := h.Tokens.Redeem(ctx, body.AccessToken, body.RefreshToken)
	switch {
	case errors.Is(err, service.ErrInvalidAccess), errors.Is(err, service.ErrInvalidRefresh):
		httpx.WriteError(w, http.StatusUnauthorized, "OAuth session is invalid")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("oauth callback failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Could not complete OAuth login")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(sess))
}
