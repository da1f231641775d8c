/*
Package authsdk is a client for an email/password and OAuth auth API. It keeps
one session per Client in a pluggable key-value store and refreshes the access
token before it expires.

# Overview

A Client wraps four endpoints:

  - POST /auth/login: email and password in, session out
  - POST /auth/refresh: refresh token in, session out
  - GET /auth/oauth/{provider}: returns the URL that starts a provider login
  - POST /auth/oauth/callback: tokens from the provider redirect in, session out

A session is the triple of access token, refresh token and user record. It
is written to storage under three prefixed keys (auth_access_token,
auth_refresh_token, auth_user by default) and read back on demand, so a
Client created later over the same storage picks the session up again.

	client, err := authsdk.New(ctx, authsdk.Config{
		APIURL:  "https://auth.example.com",
		Storage: storage.KindLocal,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Login(ctx, authsdk.LoginCredentials{
		Email:    "a@b.com",
		Password: "secret",
	})

# Storage

Config.Storage selects a built-in backend:

  - local: a sqlite file (Config.StoragePath), survives restarts
  - session: shared by every Client in the process
  - memory: private to the Client
  - redis: a Redis database (Config.RedisURL)

Config.StorageAdapter plugs in anything implementing storage.Adapter. When a
backend cannot be opened the Client logs a warning and falls back to memory.

Logout clears only keys under the configured prefix when the adapter lists
its keys (storage.Lister). Adapters that cannot list are wiped entirely.

# Automatic Token Refresh

Every time a session is stored the Client decodes the access token and arms
a timer for exp - RefreshBuffer (five minutes by default). When it fires the
Client calls RefreshToken. A failed auto-refresh is reported to OnError and
is not retried; IsAuthenticated turns false once the access token lapses.

Concurrent RefreshToken calls for the same refresh token share one request.
A refresh that completes after Logout does not write its result back.

# Error Handling

Failures are *Error values whose Kind is one of:

  - ErrInvalidCredentials: the API answered 401
  - ErrAuthFailure: any other non-2xx answer, StatusCode is set
  - ErrNetwork: no usable response
  - ErrTokenExpired: nothing to refresh with
  - ErrOAuth: unsupported provider or incomplete OAuth data
  - ErrInvalidToken: a token that does not decode

Use errors.Is to branch on the kind and errors.As to read the server message:

	_, err := client.Login(ctx, creds)
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		var apiErr *authsdk.Error
		errors.As(err, &apiErr)
		fmt.Println(apiErr.Message)
	}

Every API and network failure is also passed to Config.OnError exactly once.

# Thread Safety

A Client is safe for concurrent use. The refresh timer runs on its own
goroutine, so storage adapters must be safe for concurrent use too.
*/
package authsdk
