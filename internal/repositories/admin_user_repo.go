package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/helpdesk/internal/database"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/jackc/pgx/v5"
)

type AdminUserRepository struct {
	db *database.DB
}

func NewAdminUserRepository(db *database.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

const adminColumns = `id, username, email, password_hash, full_name, is_active, is_super_admin,
	last_login, login_attempts, locked_until, created_at, updated_at`

func scanAdminRow(scanner rowScanner) (*models.AdminUser, error) {
	var admin models.AdminUser

	err := scanner.Scan(
		&admin.ID, &admin.Username, &admin.Email, &admin.PasswordHash, &admin.FullName,
		&admin.IsActive, &admin.IsSuperAdmin,
		&admin.LastLogin, &admin.LoginAttempts, &admin.LockedUntil,
		&admin.CreatedAt, &admin.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &admin, nil
}

// GetActiveByUsername finds an active admin; inactive accounts read as not found
func (r *AdminUserRepository) GetActiveByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE username = $1 AND is_active = TRUE`
	return scanAdminRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *AdminUserRepository) GetByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE id = $1`
	return scanAdminRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *AdminUserRepository) List(ctx context.Context) ([]*models.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users ORDER BY username`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin users: %w", err)
	}
	defer rows.Close()

	admins := make([]*models.AdminUser, 0)
	for rows.Next() {
		admin, err := scanAdminRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin user: %w", err)
		}
		admins = append(admins, admin)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return admins, nil
}

func (r *AdminUserRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count admin users: %w", err)
	}
	return total, nil
}

// Create inserts admin; a duplicate username or email yields models.ErrConflict
func (r *AdminUserRepository) Create(ctx context.Context, admin *models.AdminUser) (*models.AdminUser, error) {
	query := `
		INSERT INTO admin_users (username, email, password_hash, full_name, is_active, is_super_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + adminColumns

	return scanAdminRow(r.db.Pool.QueryRow(ctx, query,
		admin.Username, admin.Email, admin.PasswordHash, admin.FullName,
		admin.IsActive, admin.IsSuperAdmin, admin.CreatedAt, admin.UpdatedAt,
	))
}

// RecordLoginAttempt applies one login outcome under a row lock and commits
// before returning the updated account. An account that is locked when the
// row lock is taken is left untouched and models.ErrAccountLocked is returned.
func (r *AdminUserRepository) RecordLoginAttempt(ctx context.Context, id int64, success bool, now time.Time) (*models.AdminUser, error) {
	var updated *models.AdminUser

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + adminColumns + ` FROM admin_users WHERE id = $1 FOR UPDATE`
		admin, err := scanAdminRow(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}

		if admin.IsLocked(now) {
			return models.ErrAccountLocked
		}

		admin.RecordLoginAttempt(success, now)

		update := `
			UPDATE admin_users
			SET login_attempts = $2, locked_until = $3, last_login = $4, updated_at = $5
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, update, admin.ID, admin.LoginAttempts, admin.LockedUntil, admin.LastLogin, admin.UpdatedAt); err != nil {
			return fmt.Errorf("failed to record login attempt: %w", database.MapPostgresError(err))
		}

		updated = admin
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *AdminUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, now time.Time) error {
	query := `UPDATE admin_users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, passwordHash, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AdminUserRepository) SetActive(ctx context.Context, id int64, active bool, now time.Time) (*models.AdminUser, error) {
	query := `
		UPDATE admin_users SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + adminColumns

	return scanAdminRow(r.db.Pool.QueryRow(ctx, query, id, active, now))
}
