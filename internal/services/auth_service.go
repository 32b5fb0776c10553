package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/models"
	pkgauth "github.com/BradenHooton/helpdesk/pkg/auth"
	pkglogger "github.com/BradenHooton/helpdesk/pkg/logger"
)

// AdminRepository is the admin account persistence used by the services
type AdminRepository interface {
	GetActiveByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	GetByID(ctx context.Context, id int64) (*models.AdminUser, error)
	List(ctx context.Context) ([]*models.AdminUser, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, admin *models.AdminUser) (*models.AdminUser, error)
	RecordLoginAttempt(ctx context.Context, id int64, success bool, now time.Time) (*models.AdminUser, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, now time.Time) error
	SetActive(ctx context.Context, id int64, active bool, now time.Time) (*models.AdminUser, error)
}

// SessionRevoker ends sessions before their natural expiry
type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, adminID int64, expiresAt time.Time) error
}

// RequestMeta describes the client making an authentication call
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuthService handles admin authentication
type AuthService struct {
	admins      AdminRepository
	sessions    *auth.SessionManager
	revoker     SessionRevoker
	csrf        *auth.CSRFTokenManager
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAuthService(admins AdminRepository, sessions *auth.SessionManager, revoker SessionRevoker, csrf *auth.CSRFTokenManager, timing *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		admins:      admins,
		sessions:    sessions,
		revoker:     revoker,
		csrf:        csrf,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AdminResponse is an admin account as exposed over HTTP
type AdminResponse struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	IsActive     bool       `json:"is_active"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
}

func adminModelToResponse(admin *models.AdminUser) *AdminResponse {
	return &AdminResponse{
		ID:           admin.ID,
		Username:     admin.Username,
		Email:        admin.Email,
		FullName:     admin.FullName,
		IsActive:     admin.IsActive,
		IsSuperAdmin: admin.IsSuperAdmin,
		LastLogin:    admin.LastLogin,
		CreatedAt:    admin.CreatedAt,
	}
}

// LoginResult is a freshly minted session
type LoginResult struct {
	Token     string          `json:"token"`
	CSRFToken string          `json:"csrf_token"`
	Session   *models.Session `json:"session"`
	ExpiresAt time.Time       `json:"expires_at"`
	Admin     *AdminResponse  `json:"admin"`
}

// dummyHash is verified against when the username is unknown so both
// failure paths pay for a key derivation
var dummyHash = sync.OnceValue(func() string {
	hash, err := pkgauth.HashPassword("helpdesk-timing-equaliser")
	if err != nil {
		return ""
	}
	return hash
})

// Authenticate checks credentials and mints a session.
// Unknown or inactive usernames and wrong passwords return
// models.ErrInvalidCredentials; a locked account returns models.ErrAccountLocked.
func (s *AuthService) Authenticate(ctx context.Context, username, password string, meta RequestMeta) (*LoginResult, error) {
	start := time.Now()
	username = strings.TrimSpace(username)

	fail := func(reason string, adminID int64, err error) (*LoginResult, error) {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Username:      username,
			AdminID:       adminID,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: reason,
		})
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	if username == "" || password == "" {
		pkgauth.VerifyPassword(password, dummyHash())
		return fail("missing_credentials", 0, models.ErrInvalidCredentials)
	}

	admin, err := s.admins.GetActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.VerifyPassword(password, dummyHash())
			return fail("unknown_user", 0, models.ErrInvalidCredentials)
		}
		s.logger.Error("failed to look up admin", slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	now := s.now()
	if admin.IsLocked(now) {
		return fail("account_locked", admin.ID, models.ErrAccountLocked)
	}

	adminID := admin.ID

	if !pkgauth.VerifyPassword(password, admin.PasswordHash) {
		updated, err := s.admins.RecordLoginAttempt(ctx, adminID, false, now)
		if err != nil {
			if errors.Is(err, models.ErrAccountLocked) {
				return fail("account_locked", adminID, models.ErrAccountLocked)
			}
			s.logger.Error("failed to record failed login", slog.Int64("admin_id", adminID), slog.Any("error", err))
			return nil, fmt.Errorf("failed to record login attempt: %w", err)
		}
		if updated.IsLocked(now) {
			s.logger.Warn("admin account locked after repeated failures",
				slog.Int64("admin_id", adminID),
				slog.Int("attempts", updated.LoginAttempts),
				slog.Time("locked_until", *updated.LockedUntil))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType: "account_locked",
				Username:  username,
				AdminID:   adminID,
				IPAddress: meta.IPAddress,
				Metadata:  map[string]string{"locked_until": updated.LockedUntil.Format(time.RFC3339)},
			})
		}
		return fail("invalid_password", adminID, models.ErrInvalidCredentials)
	}

	updated, err := s.admins.RecordLoginAttempt(ctx, adminID, true, now)
	if err != nil {
		if errors.Is(err, models.ErrAccountLocked) {
			return fail("account_locked", adminID, models.ErrAccountLocked)
		}
		s.logger.Error("failed to record successful login", slog.Int64("admin_id", adminID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to record login attempt: %w", err)
	}
	admin = updated

	if pkgauth.NeedsRehash(admin.PasswordHash) {
		s.rehash(ctx, admin, password, now)
	}

	token, session, err := s.sessions.Issue(admin, now)
	if err != nil {
		s.logger.Error("failed to issue session", slog.Int64("admin_id", admin.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("admin logged in", slog.Int64("admin_id", admin.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Username:  admin.Username,
		AdminID:   admin.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return &LoginResult{
		Token:     token,
		CSRFToken: s.csrf.GenerateToken(session.ID),
		Session:   session,
		ExpiresAt: session.ExpiresAt(),
		Admin:     adminModelToResponse(admin),
	}, nil
}

// rehash upgrades a stored hash made with older parameters; failure is logged only
func (s *AuthService) rehash(ctx context.Context, admin *models.AdminUser, password string, now time.Time) {
	hash, err := pkgauth.HashPassword(password)
	if err == nil {
		err = s.admins.UpdatePassword(ctx, admin.ID, hash, now)
	}
	if err != nil {
		s.logger.Warn("failed to upgrade password hash", slog.Int64("admin_id", admin.ID), slog.Any("error", err))
		return
	}
	admin.PasswordHash = hash
}

// Logout revokes session until it would have expired anyway
func (s *AuthService) Logout(ctx context.Context, session *models.Session, meta RequestMeta) error {
	if session == nil {
		return models.ErrUnauthorized
	}

	if err := s.revoker.Revoke(ctx, session.ID, session.AdminID, session.ExpiresAt()); err != nil {
		s.logger.Error("failed to revoke session", slog.Int64("admin_id", session.AdminID), slog.Any("error", err))
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		Username:  session.Username,
		AdminID:   session.AdminID,
		IPAddress: meta.IPAddress,
		Success:   true,
	})
	return nil
}

// CurrentAdmin returns the account behind session
func (s *AuthService) CurrentAdmin(ctx context.Context, session *models.Session) (*AdminResponse, error) {
	admin, err := s.admins.GetByID(ctx, session.AdminID)
	if err != nil {
		return nil, err
	}
	return adminModelToResponse(admin), nil
}

// ChangePassword replaces the password of the session's admin
func (s *AuthService) ChangePassword(ctx context.Context, session *models.Session, currentPassword, newPassword string, meta RequestMeta) error {
	admin, err := s.admins.GetByID(ctx, session.AdminID)
	if err != nil {
		return err
	}

	verr := models.NewValidationError()
	if !pkgauth.VerifyPassword(currentPassword, admin.PasswordHash) {
		verr.Add("current_password", "is incorrect")
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		verr.Add("new_password", err.Error())
	} else if newPassword == currentPassword {
		verr.Add("new_password", "must differ from the current password")
	}
	if verr.HasErrors() {
		s.auditLogger.LogPasswordChange(admin.ID, meta.IPAddress, false)
		return verr
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.admins.UpdatePassword(ctx, admin.ID, hash, s.now()); err != nil {
		return err
	}

	s.auditLogger.LogPasswordChange(admin.ID, meta.IPAddress, true)
	return nil
}
