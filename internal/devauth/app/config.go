package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/authkit/pkg/storage"
)

// ProviderCreds are the OAuth client credentials for one upstream provider.
// A provider without a client id stays disabled.
type ProviderCreds struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Config is read from the environment, see LoadConfig.
type Config struct {
	Issuer      string `env:"DEVAUTH_ISSUER" envDefault:"devauth"`
	PublicURL   string `env:"DEVAUTH_PUBLIC_URL" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"DEVAUTH_FRONTEND_URL"`
	Port        int    `env:"DEVAUTH_PORT" envDefault:"8080"`

	AccessTTL  time.Duration `env:"DEVAUTH_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"DEVAUTH_REFRESH_TTL" envDefault:"168h"`

	// SigningKeyFile holds a PKCS8 Ed25519 PEM, created when missing.
	// Empty means a fresh key per process.
	SigningKeyFile string `env:"DEVAUTH_SIGNING_KEY_FILE"`
	PepperFile     string `env:"DEVAUTH_PEPPER_FILE"`

	// Users seeds password accounts as email:password pairs.
	Users map[string]string `env:"DEVAUTH_USERS" envSeparator:"," envKeyValSeparator:":"`

	// Store keeps refresh tokens and pending OAuth state: memory, local or redis.
	Store     storage.Kind `env:"DEVAUTH_STORE" envDefault:"memory"`
	StorePath string       `env:"DEVAUTH_STORE_PATH" envDefault:"devauth.db"`
	RedisURL  string       `env:"DEVAUTH_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LoginPerMinute   int `env:"DEVAUTH_LOGIN_PER_MINUTE" envDefault:"5"`
	RefreshPerMinute int `env:"DEVAUTH_REFRESH_PER_MINUTE" envDefault:"20"`

	Google      ProviderCreds `envPrefix:"DEVAUTH_GOOGLE_"`
	GitHub      ProviderCreds `envPrefix:"DEVAUTH_GITHUB_"`
	Azure       ProviderCreds `envPrefix:"DEVAUTH_AZURE_"`
	AzureTenant string        `env:"DEVAUTH_AZURE_TENANT" envDefault:"common"`
	Facebook    ProviderCreds `envPrefix:"DEVAUTH_FACEBOOK_"`

	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig parses the process environment.
func LoadConfig() (Config, error) {
	return ParseConfig(nil)
}

// ParseConfig reads configuration from environ instead of the process
// environment. A nil map means the process environment.
func ParseConfig(environ map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")

	if _, err := storage.ParseKind(string(c.Store)); err != nil {
		return err
	}
	if c.Store == storage.KindSession {
		return fmt.Errorf("DEVAUTH_STORE: %q is a client-side backend", c.Store)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token ttls must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("DEVAUTH_ACCESS_TTL must be shorter than DEVAUTH_REFRESH_TTL")
	}
	return nil
}

// providers maps provider names to their configured credentials.
func (c *Config) providers() map[string]ProviderCreds {
	return map[string]ProviderCreds{
		"google":   c.Google,
		"github":   c.GitHub,
		"azure":    c.Azure,
		"facebook": c.Facebook,
	}
}
