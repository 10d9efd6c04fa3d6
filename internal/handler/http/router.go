package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/salonsphere/auth-service/internal/auth"
	"github.com/salonsphere/auth-service/internal/service"
	"github.com/salonsphere/auth-service/pkg/health"
	"github.com/salonsphere/auth-service/pkg/middleware"
)

// PermissionRevokeSessions gates the administrative session revocation endpoint.
const PermissionRevokeSessions = "sessions:revoke"

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	sessionService *service.SessionService,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	pprofAllowedCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Profiling endpoints, restricted by source address.
	middleware.RegisterPprof(r, pprofAllowedCIDRs, logger)

	// Token validator bridging signature verification and session validation.
	// Tenant scope and identity come from the signed claims; the live
	// permission set comes from the validated principal snapshot.
	validateToken := func(ctx context.Context, token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		principal, err := sessionService.ValidateSession(ctx, claims)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:      principal.User.ID,
			Email:       principal.User.Email,
			TenantID:    claims.TenantID,
			RoleID:      principal.User.RoleID,
			Permissions: principal.Permissions,
		}, nil
	}

	authHandler := NewAuthHandler(authService, sessionService, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public endpoints
		r.Group(func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(validateToken))

			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Get("/me", authHandler.Me)

			r.With(middleware.RequirePermission(PermissionRevokeSessions)).
				Post("/sessions/revoke", authHandler.RevokeSessions)
		})
	})

	return r
}
