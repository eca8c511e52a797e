package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkoval/auth-service/internal/service"
	"github.com/dkoval/auth-service/pkg/health"
	"github.com/dkoval/auth-service/pkg/middleware"
)

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	healthHandler *health.Handler,
	cookieName string,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(authService, cookieName, logger)

	// Public endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/refresh", authHandler.Refresh)

		r.Post("/send-verification-email", authHandler.SendVerificationEmail)
		r.Post("/verify-email/{token}", authHandler.VerifyEmail)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password/{token}", authHandler.ResetPassword)
	})

	// Token validator that bridges to the internal issuer.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
		}, nil
	}

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/identity", authHandler.Identity)
	})

	return r
}
