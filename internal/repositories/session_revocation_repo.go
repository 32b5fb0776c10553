package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/helpdesk/internal/database"
)

type SessionRevocationRepository struct {
	db *database.DB
}

func NewSessionRevocationRepository(db *database.DB) *SessionRevocationRepository {
	return &SessionRevocationRepository{db: db}
}

// Revoke blacklists a session id until its natural expiry
func (r *SessionRevocationRepository) Revoke(ctx context.Context, sessionID string, adminID int64, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_sessions (session_id, admin_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, sessionID, adminID, expiresAt)
	return database.MapPostgresError(err)
}

func (r *SessionRevocationRepository) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE session_id = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// CleanupExpired removes revocations whose sessions have expired anyway
func (r *SessionRevocationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM revoked_sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
