package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authkit/internal/devauth/http"
	"github.com/aussiebroadwan/authkit/internal/devauth/service"
	"github.com/aussiebroadwan/authkit/pkg/cryptox"
	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/jwtx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
	"github.com/aussiebroadwan/authkit/pkg/storage"
	"github.com/aussiebroadwan/authkit/pkg/storage/drivers/redis"
	"github.com/aussiebroadwan/authkit/pkg/storage/drivers/sqlite"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the dev auth server with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store  *storage.Manager
	signer *jwtx.EdDSASigner

	userService  *service.Users
	tokenService *service.Tokens
	oauthService *service.OAuth

	server *http.Server
	router *httpapi.Router
}

// New wires the application. It seeds users and opens the token store but
// does not start listening.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "devauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	signer, err := loadSigner(cfg.SigningKeyFile, app.logger)
	if err != nil {
		_ = app.store.Close()
		return nil, err
	}
	app.signer = signer

	if err := app.initServices(ctx); err != nil {
		_ = app.store.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("devauth starting", "port", app.cfg.Port, "providers", app.oauthService.Providers())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Serve runs the server on an existing listener until ctx is done.
func (app *Application) Serve(ctx context.Context, l net.Listener) error {
	errs := make(chan error, 1)
	go func() { errs <- app.server.Serve(l) }()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return app.Shutdown()
	}
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down devauth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("devauth stopped")
	return nil
}

// initStore opens the backend holding refresh tokens and OAuth state.
func (app *Application) initStore(ctx context.Context) error {
	var adapter storage.Adapter

	switch app.cfg.Store {
	case storage.KindRedis:
		s, err := redis.Open(ctx, app.cfg.RedisURL,
			redis.WithNamespace("devauth:"),
			redis.WithTTL(app.cfg.RefreshTTL),
		)
		if err != nil {
			return fmt.Errorf("open redis store: %w", err)
		}
		adapter = s
	case storage.KindLocal:
		s, err := sqlite.Open(ctx, app.cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		adapter = s
	default:
		adapter = storage.NewScoped()
	}

	app.store = storage.NewManager(adapter, "", app.logger)
	app.logger.Info("token store ready", "backend", string(app.cfg.Store))
	return nil
}

func (app *Application) initServices(ctx context.Context) error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return err
	}

	app.userService = service.NewUsers(cryptox.NewHasher(pepper))
	if err := app.seedUsers(ctx); err != nil {
		return err
	}

	app.tokenService = &service.Tokens{
		Signer:     app.signer,
		Verifier:   jwtx.NewVerifierEdDSA(app.signer.PublicKey(), app.cfg.Issuer),
		Store:      app.store,
		Users:      app.userService,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}

	app.oauthService = &service.OAuth{
		Store:  app.store,
		Users:  app.userService,
		Tokens: app.tokenService,
	}
	for name, creds := range app.cfg.providers() {
		if creds.ClientID == "" {
			continue
		}
		pc, _ := service.KnownProvider(name, app.cfg.AzureTenant)
		pc.ClientID = creds.ClientID
		pc.ClientSecret = creds.ClientSecret
		app.oauthService.Register(name, app.cfg.PublicURL, pc)
	}

	return nil
}

func (app *Application) seedUsers(ctx context.Context) error {
	emails := make([]string, 0, len(app.cfg.Users))
	for email := range app.cfg.Users {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	for _, email := range emails {
		if _, err := app.userService.Create(ctx, email, app.cfg.Users[email]); err != nil {
			return fmt.Errorf("seed user %q: %w", email, err)
		}
	}
	app.logger.Info("seeded users", "count", len(emails))
	return nil
}

func perMinute(n int) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: n, Window: time.Minute, Burst: n}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	limits := httpapi.DefaultRateLimits
	limits.Credentials = perMinute(app.cfg.LoginPerMinute)
	limits.Tokens = perMinute(app.cfg.RefreshPerMinute)

	router := httpapi.NewRouter(BuildVersion, limits, app.logger)
	router.UserService = app.userService
	router.TokenService = app.tokenService
	router.OAuthService = app.oauthService
	router.FrontendURL = app.cfg.FrontendURL
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
