package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/services"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminService defines the admin account operations used by AdminHandler
type AdminService interface {
	List(ctx context.Context) ([]*services.AdminResponse, error)
	Create(ctx context.Context, actor *models.Session, input services.NewAdmin) (*services.AdminResponse, error)
	SetActive(ctx context.Context, actor *models.Session, id int64, active bool) (*services.AdminResponse, error)
}

// AdminHandler serves super-admin account management
type AdminHandler struct {
	service AdminService
	logger  *slog.Logger
}

func NewAdminHandler(service AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// CreateAdminRequest represents the request body for creating an admin
type CreateAdminRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=50"`
	Email        string `json:"email" validate:"required,email,max=120"`
	FullName     string `json:"full_name" validate:"required,max=100"`
	Password     string `json:"password" validate:"required"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// SetActiveRequest represents the request body for activating or deactivating an admin
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// List handles GET /api/admins
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"admins":  admins,
		"total":   len(admins),
	})
}

// Create handles POST /api/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if errs := ValidateRequest(req); errs != nil {
		pkghttp.WriteValidationError(w, errs)
		return
	}

	admin, err := h.service.Create(r.Context(), auth.SessionFromContext(r.Context()), services.NewAdmin{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Password:     req.Password,
		IsSuperAdmin: req.IsSuperAdmin,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"admin":   admin,
	})
}

// SetActive handles PUT /api/admins/{id}/active
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		pkghttp.WriteNotFound(w, "Admin not found")
		return
	}

	var req SetActiveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if errs := ValidateRequest(req); errs != nil {
		pkghttp.WriteValidationError(w, errs)
		return
	}

	admin, err := h.service.SetActive(r.Context(), auth.SessionFromContext(r.Context()), id, *req.IsActive)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"admin":   admin,
	})
}
