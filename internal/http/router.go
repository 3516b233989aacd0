package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/account"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/auth"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/config"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/contact"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/metrics"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Account        *account.Handler
	Contact        *contact.Handler
	Metrics        http.Handler // served at /metrics when set
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders(!cfg.Server.IsDevelopment()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if cfg.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger(logger))
	r.Use(metrics.WithMetrics)
	if cfg.RateLimit.RequestsPerMinute > 0 {
		r.Use(httprate.Limit(
			cfg.RateLimit.RequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(handleTooManyRequests),
		))
	}
	r.Use(middleware.Compress(5))

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	// Production builds do not mount the swagger route at all
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handleHealth)

		r.Route("/users", func(r chi.Router) {
			// Public auth flow
			r.Post("/register", h.Auth.Register)
			r.Post("/verify-otp", h.Auth.VerifyOTP)
			r.Post("/login", h.Auth.Login)
			r.Post("/verify-login-otp", h.Auth.VerifyLoginOTP)
			r.Post("/forgot-password", h.Auth.ForgotPassword)
			r.Post("/verify-forgot-password-otp", h.Auth.VerifyForgotPasswordOTP)
			r.Post("/reset-password", h.Auth.ResetPassword)
			r.Post("/logout", h.Auth.Logout)
			r.Post("/refresh-token", h.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware.RequireAuth)

				r.Get("/me", h.Account.Me)
				r.Put("/password", h.Account.ChangePassword)
				r.Get("/{id}", h.Account.Get)
				r.Put("/{id}", h.Account.Update)
				r.Delete("/{id}", h.Account.Delete)

				r.With(auth.RequireRole(user.RoleAdmin)).Get("/", h.Account.List)
			})
		})

		r.Route("/contact", func(r chi.Router) {
			r.Post("/contact", h.Contact.SubmitContact)
			r.Post("/enquiry", h.Contact.SubmitEnquiry)

			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware.RequireAuth)
				r.Use(auth.RequireRole(user.RoleAdmin))

				r.Get("/details", h.Contact.List)
				r.Delete("/{id}", h.Contact.Delete)
			})
		})
	})

	return r
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} httputil.Envelope{data=HealthResponse}
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondSuccess(w, "", HealthResponse{Status: "api is running"}, http.StatusOK)
}

func handleTooManyRequests(w http.ResponseWriter, r *http.Request) {
	httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
}
