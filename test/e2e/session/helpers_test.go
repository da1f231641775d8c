package session_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/authkit/internal/devauth/app"
	"github.com/aussiebroadwan/authkit/pkg/authsdk"
	"github.com/aussiebroadwan/authkit/pkg/storage"
)

/*
 * End-to-end helpers: a real redis in a container, the dev auth server
 * running in-process on a random port, and SDK clients pointed at both.
 */

const (
	redisImage   = "redis:7-alpine"
	testEmail    = "e2e@example.com"
	testPassword = "e2e-password"
)

// setupRedis starts a redis container and returns its redis:// URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint + "/0"
}

// setupDevAuth runs the dev auth server with its token store in redis.
func setupDevAuth(t *testing.T, redisURL string, accessTTL string) string {
	t.Helper()

	cfg, err := app.ParseConfig(map[string]string{
		"DEVAUTH_USERS":              testEmail + ":" + testPassword,
		"DEVAUTH_STORE":              "redis",
		"DEVAUTH_REDIS_URL":          redisURL,
		"DEVAUTH_ACCESS_TTL":         accessTTL,
		"DEVAUTH_LOGIN_PER_MINUTE":   "1000",
		"DEVAUTH_REFRESH_PER_MINUTE": "1000",
		"LOG_LEVEL":                  "error",
	})
	require.NoError(t, err)

	application, err := app.New(context.Background(), cfg)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return "http://" + l.Addr().String()
}

func newClient(t *testing.T, cfg authsdk.Config) *authsdk.Client {
	t.Helper()

	c, err := authsdk.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func redisClientConfig(apiURL, redisURL string) authsdk.Config {
	return authsdk.Config{
		APIURL:      apiURL,
		Environment: authsdk.EnvironmentDevelopment,
		Storage:     storage.KindRedis,
		RedisURL:    redisURL,
	}
}
