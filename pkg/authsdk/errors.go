package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authkit/pkg/jwtx"
)

// ============================================================================
// Error Kinds
// ============================================================================

var (
	// ErrInvalidConfig is returned by New and Config.Validate.
	ErrInvalidConfig = errors.New("authsdk: invalid config")

	// ErrInvalidCredentials is returned when the API answers 401.
	ErrInvalidCredentials = errors.New("authsdk: invalid credentials")

	// ErrTokenExpired is returned when a refresh is attempted without a
	// refresh token, or the session ended while the refresh was in flight.
	ErrTokenExpired = errors.New("authsdk: token expired")

	// ErrInvalidToken is returned when a token cannot be decoded.
	ErrInvalidToken = jwtx.ErrInvalidToken

	// ErrAuthFailure is returned for every other non-2xx API response.
	ErrAuthFailure = errors.New("authsdk: request failed")

	// ErrNetwork is returned when the request never produced a usable response.
	ErrNetwork = errors.New("authsdk: network error")

	// ErrOAuth is returned for OAuth flow problems detected by the client.
	ErrOAuth = errors.New("authsdk: oauth error")
)

// ============================================================================
// Error
// ============================================================================

// Error describes a failed operation. Kind is one of the Err* values above,
// so callers can use errors.Is(err, authsdk.ErrInvalidCredentials) while
// errors.As exposes the status and server message.
type Error struct {
	// Kind classifies the failure
	Kind error

	// StatusCode is the HTTP status, or 0 when no response was received
	StatusCode int

	// Message is the server's message or a description of the failure
	Message string

	// Err is the underlying cause, if any
	Err error

	// reported is set once the error has been passed to OnError
	reported bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// wasReported reports whether err already reached OnError.
func wasReported(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.reported
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

const (
	defaultFailureMessage     = "Request failed"
	defaultCredentialsMessage = "Invalid credentials"
)

// parseErrorResponse maps a non-2xx response onto the error taxonomy: 401
// is always ErrInvalidCredentials, everything else is ErrAuthFailure. The
// body's message field is used when present.
func parseErrorResponse(status int, body []byte) *Error {
	var resp ErrorResponse
	_ = json.Unmarshal(body, &resp)

	if status == http.StatusUnauthorized {
		msg := resp.Message
		if msg == "" {
			msg = defaultCredentialsMessage
		}
		return &Error{Kind: ErrInvalidCredentials, StatusCode: status, Message: msg}
	}

	msg := resp.Message
	if msg == "" {
		msg = defaultFailureMessage
	}
	return &Error{Kind: ErrAuthFailure, StatusCode: status, Message: msg}
}
