package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/BradenHooton/helpdesk/internal/database"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/jackc/pgx/v5"
)

type ServiceRequestRepository struct {
	db *database.DB
}

func NewServiceRequestRepository(db *database.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

const requestColumns = `id, requester_name, email, department, category, description,
	priority, contact_preference, status, assigned_to, attachments,
	created_at, updated_at, resolved_at`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequestRow(scanner rowScanner) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	var attachments []string

	err := scanner.Scan(
		&req.ID, &req.RequesterName, &req.Email, &req.Department, &req.Category, &req.Description,
		&req.Priority, &req.ContactPreference, &req.Status, &req.AssignedTo, &attachments,
		&req.CreatedAt, &req.UpdatedAt, &req.ResolvedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if attachments == nil {
		attachments = []string{}
	}
	req.Attachments = attachments

	return &req, nil
}

func scanRequestRows(rows pgx.Rows) ([]*models.ServiceRequest, error) {
	defer rows.Close()

	requests := make([]*models.ServiceRequest, 0)
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return requests, nil
}

// Create inserts req and, when attach is set, calls it with the new id and
// records the filenames it returns. Both happen in one transaction, so an
// attach failure leaves no row behind.
func (r *ServiceRequestRepository) Create(ctx context.Context, req *models.ServiceRequest, attach func(ctx context.Context, requestID int64) ([]string, error)) (*models.ServiceRequest, error) {
	var created *models.ServiceRequest

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO service_requests (requester_name, email, department, category, description,
				priority, contact_preference, status, assigned_to, attachments, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING ` + requestColumns

		row, err := scanRequestRow(tx.QueryRow(ctx, insert,
			req.RequesterName, req.Email, req.Department, req.Category, req.Description,
			req.Priority, req.ContactPreference, req.Status, req.AssignedTo, []string{},
			req.CreatedAt, req.UpdatedAt,
		))
		if err != nil {
			return fmt.Errorf("failed to insert service request: %w", err)
		}

		if attach != nil {
			names, err := attach(ctx, row.ID)
			if err != nil {
				return err
			}
			if len(names) > 0 {
				update := `UPDATE service_requests SET attachments = $2 WHERE id = $1`
				if _, err := tx.Exec(ctx, update, row.ID, names); err != nil {
					return fmt.Errorf("failed to record attachments: %w", database.MapPostgresError(err))
				}
				row.Attachments = names
			}
		}

		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *ServiceRequestRepository) GetByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`
	return scanRequestRow(r.db.Pool.QueryRow(ctx, query, id))
}

// List returns requests matching filter, newest first unless sorted by priority
func (r *ServiceRequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]*models.ServiceRequest, error) {
	where, args := buildRequestWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)

	query := `SELECT ` + requestColumns + ` FROM service_requests ` + where +
		` ORDER BY ` + requestOrderBy(filter.SortBy) +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service requests: %w", err)
	}

	return scanRequestRows(rows)
}

// Count returns the number of requests matching filter, ignoring paging
func (r *ServiceRequestRepository) Count(ctx context.Context, filter models.RequestFilter) (int64, error) {
	where, args := buildRequestWhere(filter)

	var total int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_requests `+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count service requests: %w", err)
	}
	return total, nil
}

// Recent returns the newest limit requests
func (r *ServiceRequestRepository) Recent(ctx context.Context, limit int) ([]*models.ServiceRequest, error) {
	return r.List(ctx, models.RequestFilter{Limit: limit})
}

// UpdateStatus locks the row, lets mutate change it, and persists the result.
// If mutate fails nothing is written.
func (r *ServiceRequestRepository) UpdateStatus(ctx context.Context, id int64, mutate func(*models.ServiceRequest) error) (*models.ServiceRequest, error) {
	var updated *models.ServiceRequest

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1 FOR UPDATE`
		req, err := scanRequestRow(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}

		if err := mutate(req); err != nil {
			return err
		}

		update := `
			UPDATE service_requests
			SET status = $2, assigned_to = $3, updated_at = $4, resolved_at = $5
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, update, req.ID, req.Status, req.AssignedTo, req.UpdatedAt, req.ResolvedAt); err != nil {
			return fmt.Errorf("failed to update service request: %w", database.MapPostgresError(err))
		}

		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Stats aggregates the whole table
func (r *ServiceRequestRepository) Stats(ctx context.Context) (*models.RequestStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'In Progress'),
			COUNT(*) FILTER (WHERE status = 'Resolved'),
			COUNT(*) FILTER (WHERE status = 'Closed'),
			COUNT(*) FILTER (WHERE cardinality(attachments) > 0),
			(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)))
				FILTER (WHERE status = 'Resolved' AND resolved_at IS NOT NULL))::float8
		FROM service_requests
	`

	stats := &models.RequestStats{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&stats.TotalRequests,
		&stats.PendingRequests,
		&stats.InProgressRequests,
		&stats.ResolvedRequests,
		&stats.ClosedRequests,
		&stats.RequestsWithAttachments,
		&stats.AvgResolutionSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate service requests: %w", err)
	}

	if stats.Categories, err = r.countBy(ctx, "category"); err != nil {
		return nil, err
	}
	if stats.Departments, err = r.countBy(ctx, "department"); err != nil {
		return nil, err
	}
	if stats.Priorities, err = r.countBy(ctx, "priority"); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy groups on a fixed column name; never pass user input
func (r *ServiceRequestRepository) countBy(ctx context.Context, column string) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM service_requests GROUP BY %[1]s`, column)

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// buildRequestWhere composes the WHERE clause and args for exact-match filters
func buildRequestWhere(filter models.RequestFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	add := func(column, value string) {
		if v := strings.TrimSpace(value); v != "" {
			args = append(args, v)
			clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
		}
	}

	add("status", filter.Status)
	add("category", filter.Category)
	add("department", filter.Department)
	add("priority", filter.Priority)

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func requestOrderBy(sortBy string) string {
	if sortBy == models.SortByPriority {
		return `CASE priority
			WHEN 'Critical' THEN 4 WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 1 ELSE 0
		END DESC, created_at DESC, id DESC`
	}
	return "created_at DESC, id DESC"
}
