package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	pkgauth "github.com/BradenHooton/helpdesk/pkg/auth"
	pkglogger "github.com/BradenHooton/helpdesk/pkg/logger"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

// SeedAdmin is the account created when no admin exists yet
type SeedAdmin struct {
	Username string
	Email    string
	FullName string
	Password string
}

// NewAdmin describes an account a super admin wants to add
type NewAdmin struct {
	Username     string
	Email        string
	FullName     string
	Password     string
	IsSuperAdmin bool
}

// AdminService manages admin accounts
type AdminService struct {
	admins      AdminRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAdminService(admins AdminRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AdminService {
	return &AdminService{
		admins:      admins,
		logger:      logger,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EnsureDefaultAdmin creates the seed super admin when the table is empty.
// It reports whether an account was created.
func (s *AdminService) EnsureDefaultAdmin(ctx context.Context, seed SeedAdmin) (bool, error) {
	count, err := s.admins.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := pkgauth.HashPassword(seed.Password)
	if err != nil {
		return false, fmt.Errorf("failed to hash seed password: %w", err)
	}

	now := s.now()
	admin, err := s.admins.Create(ctx, &models.AdminUser{
		Username:     seed.Username,
		Email:        seed.Email,
		FullName:     seed.FullName,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperAdmin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// another instance seeded first
		if errors.Is(err, models.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create default admin: %w", err)
	}

	s.logger.Warn("created default super admin; change its password",
		slog.Int64("admin_id", admin.ID),
		slog.String("username", admin.Username))
	return true, nil
}

func (s *AdminService) List(ctx context.Context) ([]*AdminResponse, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*AdminResponse, 0, len(admins))
	for _, a := range admins {
		out = append(out, adminModelToResponse(a))
	}
	return out, nil
}

// Create adds an admin account on behalf of actor
func (s *AdminService) Create(ctx context.Context, actor *models.Session, input NewAdmin) (*AdminResponse, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)

	verr := models.NewValidationError()
	if !usernamePattern.MatchString(input.Username) {
		verr.Add("username", "must be 3-50 letters, digits, '.', '_' or '-'")
	}
	if !models.IsValidEmail(input.Email) {
		verr.Add("email", "must be a valid email address")
	}
	if input.FullName == "" {
		verr.Add("full_name", "is required")
	} else if len(input.FullName) > 100 {
		verr.Add("full_name", "must be at most 100 characters")
	}
	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		verr.Add("password", err.Error())
	}
	if verr.HasErrors() {
		return nil, verr
	}

	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	admin, err := s.admins.Create(ctx, &models.AdminUser{
		Username:     input.Username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperAdmin: input.IsSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAccountAction("admin_created", actor.AdminID, admin.ID, map[string]string{
		"username":       admin.Username,
		"is_super_admin": fmt.Sprint(admin.IsSuperAdmin),
	})
	return adminModelToResponse(admin), nil
}

// SetActive enables or disables an admin. Disabling an account invalidates
// its sessions on their next use. Admins cannot disable themselves.
func (s *AdminService) SetActive(ctx context.Context, actor *models.Session, id int64, active bool) (*AdminResponse, error) {
	if !active && actor.AdminID == id {
		verr := models.NewValidationError()
		verr.Add("is_active", "you cannot deactivate your own account")
		return nil, verr
	}

	admin, err := s.admins.SetActive(ctx, id, active, s.now())
	if err != nil {
		return nil, err
	}

	event := "admin_deactivated"
	if active {
		event = "admin_activated"
	}
	s.auditLogger.LogAccountAction(event, actor.AdminID, admin.ID, nil)
	return adminModelToResponse(admin), nil
}
