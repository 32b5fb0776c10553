package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/storage"
	pkglogger "github.com/BradenHooton/helpdesk/pkg/logger"
)

// Paging bounds for request listings
const (
	DefaultPerPage     = 20
	MaxPerPage         = 100
	DashboardRecentMax = 10
)

const notifyTimeout = 10 * time.Second

// ServiceRequestRepository is the persistence RequestService relies on
type ServiceRequestRepository interface {
	Create(ctx context.Context, req *models.ServiceRequest, attach func(ctx context.Context, requestID int64) ([]string, error)) (*models.ServiceRequest, error)
	GetByID(ctx context.Context, id int64) (*models.ServiceRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]*models.ServiceRequest, error)
	Count(ctx context.Context, filter models.RequestFilter) (int64, error)
	Recent(ctx context.Context, limit int) ([]*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, id int64, mutate func(*models.ServiceRequest) error) (*models.ServiceRequest, error)
	Stats(ctx context.Context) (*models.RequestStats, error)
}

// RequestService owns the request lifecycle
type RequestService struct {
	repo        ServiceRequestRepository
	store       storage.FileStore
	notifier    Notifier
	policy      AttachmentPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewRequestService(repo ServiceRequestRepository, store storage.FileStore, notifier Notifier, policy AttachmentPolicy, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *RequestService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &RequestService{
		repo:        repo,
		store:       store,
		notifier:    notifier,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListParams selects one page of requests
type ListParams struct {
	Filter  models.RequestFilter
	Page    int
	PerPage int
}

// Pagination describes the page returned by List
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// RequestPage is one page of a listing
type RequestPage struct {
	Requests   []*models.ServiceRequest `json:"requests"`
	Pagination Pagination               `json:"pagination"`
}

// Submit validates fields and uploads, then stores the request as Pending.
// Files are written only once the row has an id and are removed again if
// the transaction fails.
func (s *RequestService) Submit(ctx context.Context, fields models.RequestFields, uploads []Upload) (*models.ServiceRequest, error) {
	req, err := models.NewServiceRequest(fields)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Validate(uploads); err != nil {
		return nil, err
	}

	now := s.now()
	req.CreatedAt = now
	req.UpdatedAt = now

	var saved []string
	attach := func(ctx context.Context, requestID int64) ([]string, error) {
		if len(uploads) == 0 {
			return nil, nil
		}
		if s.store == nil {
			return nil, fmt.Errorf("attachment storage is not configured")
		}

		seen := make(map[string]bool, len(uploads))
		for _, u := range uploads {
			name := uniqueName(AttachmentFilename(requestID, now, u.Filename), seen)
			content := &capReader{r: u.Content, max: s.policy.MaxFileSize}
			if err := s.store.Save(ctx, name, content); err != nil {
				return nil, fmt.Errorf("failed to save %s: %w", name, err)
			}
			saved = append(saved, name)
		}
		return saved, nil
	}

	created, err := s.repo.Create(ctx, req, attach)
	if err != nil {
		s.removeFiles(ctx, saved)

		if errors.Is(err, ErrFileTooLarge) {
			verr := models.NewValidationError()
			verr.Add("attachments", fmt.Sprintf("a file exceeds the %d MB limit", s.policy.MaxFileSize>>20))
			return nil, verr
		}
		s.logger.Error("failed to create service request", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create service request: %w", err)
	}

	s.logger.Info("service request submitted",
		slog.Int64("request_id", created.ID),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)),
		slog.Int("attachments", len(created.Attachments)),
	)
	s.auditLogger.LogRequestAction("request_submitted", created.ID, "", map[string]string{
		"category":    created.Category,
		"priority":    created.Priority,
		"attachments": strconv.Itoa(len(created.Attachments)),
	})

	s.notify(ctx, created.ID, "request_submitted", func(ctx context.Context) error {
		return s.notifier.RequestSubmitted(ctx, created)
	})

	return created, nil
}

// removeFiles undoes saves from a failed submission
func (s *RequestService) removeFiles(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	for _, name := range names {
		if err := s.store.Delete(ctx, name); err != nil {
			s.logger.Error("failed to remove orphaned attachment",
				slog.String("file", name),
				slog.Any("error", err))
		}
	}
}

// UpdateStatus moves request id to status. A blank assignee keeps the
// current one.
func (s *RequestService) UpdateStatus(ctx context.Context, id int64, status, assignee, actor string) (*models.ServiceRequest, error) {
	status = strings.TrimSpace(status)
	if !slices.Contains(models.UpdatableStatuses, status) {
		verr := models.NewValidationError()
		verr.Add("status", "must be one of: "+strings.Join(models.UpdatableStatuses, ", "))
		return nil, verr
	}

	var previous string
	updated, err := s.repo.UpdateStatus(ctx, id, func(req *models.ServiceRequest) error {
		previous = req.Status
		return req.ApplyStatus(status, assignee, s.now())
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"from": previous,
		"to":   updated.Status,
	}
	if updated.AssignedTo != nil {
		metadata["assigned_to"] = *updated.AssignedTo
	}
	s.auditLogger.LogRequestAction("status_changed", updated.ID, actor, metadata)

	if previous != updated.Status {
		s.notify(ctx, updated.ID, "status_changed", func(ctx context.Context) error {
			return s.notifier.StatusChanged(ctx, updated, previous)
		})
	}

	return updated, nil
}

// notify runs fn detached from the caller's cancellation; failures are only logged
func (s *RequestService) notify(ctx context.Context, requestID int64, event string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.logger.Warn("notification failed",
			slog.String("event", event),
			slog.Int64("request_id", requestID),
			slog.Any("error", err))
	}
}

func (s *RequestService) Get(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of requests. Page is at least 1 and PerPage
// defaults to 20 and is capped at 100.
func (s *RequestService) List(ctx context.Context, params ListParams) (*RequestPage, error) {
	filter := params.Filter
	switch filter.SortBy {
	case "", models.SortByCreatedAt, models.SortByPriority:
	default:
		verr := models.NewValidationError()
		verr.Add("sort", "must be one of: created_at, priority")
		return nil, verr
	}

	page := max(params.Page, 1)
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)

	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))

	return &RequestPage{
		Requests: requests,
		Pagination: Pagination{
			Page:    page,
			PerPage: perPage,
			Total:   total,
			Pages:   pages,
		},
	}, nil
}

func (s *RequestService) Stats(ctx context.Context) (*models.RequestStats, error) {
	return s.repo.Stats(ctx)
}

// Dashboard is the stats plus the most recent requests
func (s *RequestService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.Recent(ctx, DashboardRecentMax)
	if err != nil {
		return nil, err
	}

	return &models.Dashboard{Stats: stats, RecentRequests: recent}, nil
}

// OpenAttachment opens filename only if it is recorded on request id
func (s *RequestService) OpenAttachment(ctx context.Context, id int64, filename string) (*storage.Object, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.HasAttachment(filename) || s.store == nil {
		return nil, models.ErrNotFound
	}

	return s.store.Open(ctx, filename)
}
