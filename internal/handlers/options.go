package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
)

// Options handles GET /api/options with the choices offered on the
// submission form
func Options(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"departments":         models.Departments,
		"categories":          models.Categories,
		"priorities":          models.Priorities,
		"contact_preferences": models.ContactPreferences,
		"statuses":            models.UpdatableStatuses,
	})
}

// HealthChecker pings the backing database
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health returns the handler for GET /health
func Health(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": "down",
			})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
			"status":   "healthy",
			"database": "up",
		})
	}
}
