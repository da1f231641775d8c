package authsdk

// ============================================================================
// Request Types
// ============================================================================

// LoginCredentials is the body of POST /auth/login.
type LoginCredentials struct {
	// Email identifies the account
	Email string `json:"email"`

	// Password is sent as-is over the (expected TLS) transport
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	// RefreshToken is the opaque token from the last persisted session
	RefreshToken string `json:"refresh_token"`
}

// OAuthCallbackData carries the tokens a provider redirect handed back to
// the application. It is posted to /auth/oauth/callback to be exchanged
// for a full session.
type OAuthCallbackData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresIn is optional; providers that omit it leave it nil
	ExpiresIn *int `json:"expires_in,omitempty"`
}

// ============================================================================
// Response Types
// ============================================================================

// AuthResponse is returned by login, refresh and the OAuth callback.
type AuthResponse struct {
	// AccessToken is a JWT whose exp claim drives auto-refresh
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque token used to obtain the next AuthResponse
	RefreshToken string `json:"refresh_token"`

	// ExpiresIn is the access token lifetime in seconds as reported by the server
	ExpiresIn int `json:"expires_in"`

	// User may be omitted on refresh, in which case the stored user is kept
	User *User `json:"user,omitempty"`
}

// User is the account record persisted next to the tokens.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// OAuthURLResponse is returned by GET /auth/oauth/{provider}.
type OAuthURLResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of any non-2xx reply from the auth API.
type ErrorResponse struct {
	Message string `json:"message"`
}
