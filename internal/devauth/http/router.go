package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authkit/internal/devauth/service"
	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"

	_ "github.com/aussiebroadwan/authkit/api/devauth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:generate swag init --generalInfo router.go --dir .,../../../pkg/authsdk --output ../../../api/devauth --outputTypes go --packageName devauth

// RateLimits groups the limiter profiles applied per route class.
type RateLimits struct {
	Credentials httpx.RateLimitConfig // login
	Tokens      httpx.RateLimitConfig // refresh and oauth callbacks
	Public      httpx.RateLimitConfig // oauth urls and health
}

// DefaultRateLimits mirrors the httpx profiles.
var DefaultRateLimits = RateLimits{
	Credentials: httpx.StrictLimit,
	Tokens:      httpx.ModerateLimit,
	Public:      httpx.PublicLimit,
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       RateLimits

	UserService  *service.Users
	TokenService *service.Tokens
	OAuthService *service.OAuth

	// FrontendURL receives the browser after a provider login, with the
	// session tokens in its query string.
	FrontendURL string
}

func NewRouter(buildVersion string, limits RateLimits, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerOAuth()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			authkit Development Auth Server API
//	@version		0.1.0
//	@description	Local stand-in for the auth API consumed by the authsdk client: password login, single-use refresh tokens and provider OAuth logins.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/authkit
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//	@schemes		http
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Users: r.UserService, Tokens: r.TokenService}

	// POST /auth/login - strict, this is where passwords get guessed
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.limits.Credentials),
		),
	)

	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.limits.Tokens),
		),
	)
}

func (r *Router) registerOAuth() {
	h := &OAuthHandler{
		OAuth:       r.OAuthService,
		Tokens:      r.TokenService,
		FrontendURL: r.FrontendURL,
	}

	r.Mux.Handle("GET /auth/oauth/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleURL),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)

	// Browser lands here from the provider.
	r.Mux.Handle("GET /auth/oauth/{provider}/callback",
		httpx.Chain(http.HandlerFunc(h.HandleProviderRedirect),
			httpx.RateLimitByIP(r.limits.Tokens),
		),
	)

	// The SDK posts the tokens it was redirected with.
	r.Mux.Handle("POST /auth/oauth/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(r.limits.Tokens),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
}
