package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/services"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Authenticate(ctx context.Context, username, password string, meta services.RequestMeta) (*services.LoginResult, error)
	Logout(ctx context.Context, session *models.Session, meta services.RequestMeta) error
	CurrentAdmin(ctx context.Context, session *models.Session) (*services.AdminResponse, error)
	ChangePassword(ctx context.Context, session *models.Session, currentPassword, newPassword string, meta services.RequestMeta) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	cookies  auth.CookieConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, cookies auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		cookies:  cookies,
		logger:   logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Password string `json:"password" validate:"required,max=128"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// LoginResponse is returned by a successful login. Token is for bearer
// clients; browsers use the cookies set alongside it.
type LoginResponse struct {
	Success bool `json:"success"`
	*services.LoginResult
}

// SessionResponse describes the caller's session
type SessionResponse struct {
	Success   bool                    `json:"success"`
	Session   *models.Session         `json:"session"`
	ExpiresAt string                  `json:"expires_at"`
	Admin     *services.AdminResponse `json:"admin"`
}

func (h *AuthHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if errs := ValidateRequest(req); errs != nil {
		pkghttp.WriteValidationError(w, errs)
		return
	}

	result, err := h.service.Authenticate(r.Context(), req.Username, req.Password, h.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteLocked(w, "Account is temporarily locked due to repeated failed logins. Try again later.")
		default:
			writeServiceError(w, r, h.logger, err)
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, result.ExpiresAt, h.cookies)
	auth.SetCSRFTokenCookie(w, result.CSRFToken, result.ExpiresAt, h.cookies)

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Success: true, LoginResult: result})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), session, h.meta(r)); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	auth.ClearSessionCookies(w, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}

// Session handles GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	admin, err := h.service.CurrentAdmin(r.Context(), session)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		Success:   true,
		Session:   session,
		ExpiresAt: session.ExpiresAt().Format("2006-01-02T15:04:05Z07:00"),
		Admin:     admin,
	})
}

// ChangePassword handles PUT /api/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if errs := ValidateRequest(req); errs != nil {
		pkghttp.WriteValidationError(w, errs)
		return
	}

	if err := h.service.ChangePassword(r.Context(), session, req.CurrentPassword, req.NewPassword, h.meta(r)); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated",
	})
}
