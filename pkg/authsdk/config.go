package authsdk

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/storage"
)

// Environment is sent in the X-Environment header of every request.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentDevelopment Environment = "development"
)

// ParseEnvironment validates s as an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(s); e {
	case EnvironmentProduction, EnvironmentDevelopment:
		return e, nil
	default:
		return "", fmt.Errorf("%w: unknown environment %q", ErrInvalidConfig, s)
	}
}

// Defaults applied by Config.Validate.
const (
	DefaultRefreshBuffer = 300 * time.Second
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultEnvironment   = EnvironmentProduction
	DefaultStorage       = storage.KindLocal
)

// HTTPClient is the transport the Client sends requests through.
// *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client. Only APIURL is required.
type Config struct {
	// APIURL is the base URL of the auth API, e.g. https://auth.example.com
	APIURL string

	// Environment defaults to production
	Environment Environment

	// Storage selects a built-in backend and defaults to local. It is
	// ignored when StorageAdapter is set.
	Storage storage.Kind

	// StorageAdapter plugs in a custom medium
	StorageAdapter storage.Adapter

	// StoragePath is the sqlite file used by the local backend. Empty means
	// a file under the user config directory.
	StoragePath string

	// RedisURL (redis://host:port/db) is required by the redis backend
	RedisURL string

	// DisableAutoRefresh turns off the proactive refresh timer
	DisableAutoRefresh bool

	// RefreshBuffer is how long before expiry the timer fires. Zero means
	// DefaultRefreshBuffer unless NoRefreshBuffer is set.
	RefreshBuffer time.Duration

	// NoRefreshBuffer makes the timer fire at expiry itself. RefreshBuffer
	// must be left zero when it is set.
	NoRefreshBuffer bool

	// StoragePrefix namespaces every stored key. Empty means "auth_".
	StoragePrefix string

	// HTTPClient defaults to an *http.Client with DefaultHTTPTimeout
	HTTPClient HTTPClient

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// OnTokenRefreshed runs after every successful refresh
	OnTokenRefreshed func(*AuthResponse)

	// OnLogout runs after every logout
	OnLogout func()

	// OnError receives every API and network failure exactly once
	OnError func(error)
}

// Validate checks c and fills in defaults.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("%w: api url is required", ErrInvalidConfig)
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api url %q must be an absolute http(s) url", ErrInvalidConfig, c.APIURL)
	}
	c.APIURL = strings.TrimSuffix(c.APIURL, "/")

	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	if _, err := ParseEnvironment(string(c.Environment)); err != nil {
		return err
	}

	if c.StorageAdapter == nil {
		if c.Storage == "" {
			c.Storage = DefaultStorage
		}
		if _, err := storage.ParseKind(string(c.Storage)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	switch {
	case c.RefreshBuffer < 0:
		return fmt.Errorf("%w: refresh buffer must not be negative", ErrInvalidConfig)
	case c.NoRefreshBuffer && c.RefreshBuffer != 0:
		return fmt.Errorf("%w: refresh buffer set together with NoRefreshBuffer", ErrInvalidConfig)
	case c.RefreshBuffer == 0 && !c.NoRefreshBuffer:
		c.RefreshBuffer = DefaultRefreshBuffer
	}

	if c.StoragePrefix == "" {
		c.StoragePrefix = storage.DefaultPrefix
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return nil
}
