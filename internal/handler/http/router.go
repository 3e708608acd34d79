package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BartugKaan/developer-match/internal/auth"
	"github.com/BartugKaan/developer-match/internal/github"
	"github.com/BartugKaan/developer-match/internal/service"
	"github.com/BartugKaan/developer-match/pkg/health"
	"github.com/BartugKaan/developer-match/pkg/middleware"
)

// RouterConfig bundles the dependencies of the HTTP surface.
type RouterConfig struct {
	AuthService   *service.AuthService
	TokenManager  *auth.TokenManager
	GithubClient  *github.Client
	StateStore    *auth.StateStore
	HealthHandler *health.Handler
	FrontendURL   string
	CORS          CORSConfig
	Logger        *slog.Logger
}

// NewRouter creates a chi router with all identity service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("identity"))

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	githubHandler := NewGithubHandler(cfg.AuthService, cfg.GithubClient, cfg.StateStore, cfg.FrontendURL, cfg.Logger)
	userHandler := NewUserHandler(cfg.AuthService, cfg.Logger)

	// Public auth endpoints
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// OAuth endpoints are browser redirects, no JSON body to enforce.
		r.Get("/github", githubHandler.Redirect)
		r.Get("/github/callback", githubHandler.Callback)
	})

	// Token validator bridging to the internal TokenManager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := cfg.TokenManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:   claims.Subject,
			Email:    claims.Email,
			Username: claims.Username,
		}, nil
	}

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/api/v1/auth/logout", authHandler.Logout)
		r.Get("/api/v1/users/me", userHandler.Me)
	})

	return r
}
