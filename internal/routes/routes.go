package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/handlers"
	"github.com/BradenHooton/helpdesk/internal/middleware"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Config carries the deployment switches that shape the route table
type Config struct {
	RequireAdminForReads bool
	LoginRateLimit       int
	SubmitRateLimit      int
	IPConfig             *pkghttp.IPConfig
}

// Handlers groups the HTTP handlers mounted under /api
type Handlers struct {
	Requests *handlers.RequestHandler
	Auth     *handlers.AuthHandler
	Admins   *handlers.AdminHandler
	Health   http.HandlerFunc
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	guard *auth.Guard,
	csrfManager *auth.CSRFTokenManager,
	cfg Config,
	logger *slog.Logger,
) {
	loginLimit := middleware.RateLimitByIP(middleware.LoginRateLimit(cfg.LoginRateLimit, cfg.IPConfig))
	submitLimit := middleware.RateLimitByIP(middleware.SubmitRateLimit(cfg.SubmitRateLimit, cfg.IPConfig))
	csrf := middleware.CSRFProtection(csrfManager, logger)

	router.Get("/health", h.Health)

	router.Route("/api", func(r chi.Router) {
		// Public routes - no authentication required
		r.Get("/options", handlers.Options)
		r.With(submitLimit).Post("/requests", h.Requests.Submit)
		r.With(loginLimit).Post("/auth/login", h.Auth.Login)

		// Logout does not require a CSRF token
		r.With(guard.RequireAdmin).Post("/auth/logout", h.Auth.Logout)

		// Request reads are public only when the deployment allows it
		r.Group(func(r chi.Router) {
			if cfg.RequireAdminForReads {
				r.Use(guard.RequireAdmin)
			}
			r.Get("/requests", h.Requests.List)
			r.Get("/requests/{id}", h.Requests.Get)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireAdmin)
			r.Use(csrf)

			r.Put("/requests/{id}/status", h.Requests.UpdateStatus)
			r.Get("/requests/{id}/attachments/{filename}", h.Requests.DownloadAttachment)
			r.Get("/stats", h.Requests.Stats)
			r.Get("/dashboard", h.Requests.Dashboard)

			r.Get("/auth/session", h.Auth.Session)
			r.Put("/auth/password", h.Auth.ChangePassword)

			// Super admin routes
			r.Group(func(r chi.Router) {
				r.Use(guard.RequireSuperAdmin)
				r.Get("/admins", h.Admins.List)
				r.Post("/admins", h.Admins.Create)
				r.Put("/admins/{id}/active", h.Admins.SetActive)
			})
		})
	})
}
