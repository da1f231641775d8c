package authctl

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/authkit/pkg/authsdk"
	"github.com/aussiebroadwan/authkit/pkg/storage"
)

// Config is read from AUTHCTL_* environment variables.
type Config struct {
	APIURL      string       `env:"AUTHCTL_API_URL" envDefault:"http://localhost:8080"`
	Env         string       `env:"AUTHCTL_ENV" envDefault:"production"`
	Storage     storage.Kind `env:"AUTHCTL_STORAGE" envDefault:"local"`
	StoragePath string       `env:"AUTHCTL_STORAGE_PATH"`
	RedisURL    string       `env:"AUTHCTL_REDIS_URL"`
	LogLevel    string       `env:"AUTHCTL_LOG_LEVEL" envDefault:"warn"`
}

func loadConfig(environ map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) sdkConfig() (authsdk.Config, error) {
	e, err := authsdk.ParseEnvironment(c.Env)
	if err != nil {
		return authsdk.Config{}, err
	}

	return authsdk.Config{
		APIURL:      c.APIURL,
		Environment: e,
		Storage:     c.Storage,
		StoragePath: c.StoragePath,
		RedisURL:    c.RedisURL,

		// One command per process, nothing would be around to refresh.
		DisableAutoRefresh: true,
	}, nil
}
