// Package service holds the dev auth server's business logic: the user
// directory, session token issuance and the OAuth provider flows.
package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidAccess      = errors.New("invalid_access_token")
	ErrUserExists         = errors.New("user_exists")
	ErrUnknownProvider    = errors.New("unknown_provider")
	ErrInvalidState       = errors.New("invalid_oauth_state")
	ErrProviderExchange   = errors.New("provider_exchange_failed")
)
