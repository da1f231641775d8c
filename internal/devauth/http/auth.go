package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authkit/internal/devauth/service"
	"github.com/aussiebroadwan/authkit/pkg/authsdk"
	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// AuthHandler serves password login and token refresh.
type AuthHandler struct {
	Users  *service.Users
	Tokens *service.Tokens
}

// HandleLogin serves POST /auth/login.
//
//	@Summary		Password login
//	@Description	Exchanges email and password for an access token, a refresh token and the user record.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginCredentials	true	"email, password"
//	@Success		200		{object}	authsdk.AuthResponse		"access_token, refresh_token, expires_in, user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"message"
//	@Failure		401		{object}	authsdk.ErrorResponse		"message"
//	@Failure		429		{object}	authsdk.ErrorResponse		"message"
//	@Router			/auth/login [post]
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body authsdk.LoginCredentials
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	u, err := h.Users.Authenticate(ctx, body.Email, body.Password)
	if err != nil {
		log.Info("login rejected", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	sess, err := h.Tokens.Issue(ctx, u)
	if err != nil {
		log.Error("issue session failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Could not create session")
		return
	}

	log.Info("login succeeded", "user_id", u.ID)
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(sess))
}

// HandleRefresh serves POST /auth/refresh.
//
//	@Summary		Refresh a session
//	@Description	Trades a refresh token for a new session. Refresh tokens are single use.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"refresh_token"
//	@Success		200		{object}	authsdk.AuthResponse	"access_token, refresh_token, expires_in, user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"message"
//	@Failure		401		{object}	authsdk.ErrorResponse	"message"
//	@Router			/auth/refresh [post]
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var body authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	sess, err := h.Tokens.Rotate(ctx, body.RefreshToken)
	switch {
	case errors.Is(err, service.ErrInvalidRefresh):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	case err != nil:
		log.Error("refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Could not refresh session")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(sess))
}

func toAuthResponse(s *service.Session) authsdk.AuthResponse {
	return authsdk.AuthResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    int(s.ExpiresIn.Seconds()),
		User:         &authsdk.User{ID: s.User.ID, Email: s.User.Email},
	}
}
