package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockServiceRequestRepository implements ServiceRequestRepository for testing
type MockServiceRequestRepository struct {
	CreateFunc       func(ctx context.Context, req *models.ServiceRequest, attach func(ctx context.Context, requestID int64) ([]string, error)) (*models.ServiceRequest, error)
	GetByIDFunc      func(ctx context.Context, id int64) (*models.ServiceRequest, error)
	ListFunc         func(ctx context.Context, filter models.RequestFilter) ([]*models.ServiceRequest, error)
	CountFunc        func(ctx context.Context, filter models.RequestFilter) (int64, error)
	RecentFunc       func(ctx context.Context, limit int) ([]*models.ServiceRequest, error)
	UpdateStatusFunc func(ctx context.Context, id int64, mutate func(*models.ServiceRequest) error) (*models.ServiceRequest, error)
	StatsFunc        func(ctx context.Context) (*models.RequestStats, error)
}

// Create assigns id 1 and runs attach when no CreateFunc is set
func (m *MockServiceRequestRepository) Create(ctx context.Context, req *models.ServiceRequest, attach func(ctx context.Context, requestID int64) ([]string, error)) (*models.ServiceRequest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req, attach)
	}
	req.ID = 1
	files, err := attach(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if files != nil {
		req.Attachments = files
	}
	return req, nil
}

func (m *MockServiceRequestRepository) GetByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockServiceRequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]*models.ServiceRequest, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.ServiceRequest{}, nil
}

func (m *MockServiceRequestRepository) Count(ctx context.Context, filter models.RequestFilter) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockServiceRequestRepository) Recent(ctx context.Context, limit int) ([]*models.ServiceRequest, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(ctx, limit)
	}
	return []*models.ServiceRequest{}, nil
}

func (m *MockServiceRequestRepository) UpdateStatus(ctx context.Context, id int64, mutate func(*models.ServiceRequest) error) (*models.ServiceRequest, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, mutate)
	}
	return nil, models.ErrNotFound
}

func (m *MockServiceRequestRepository) Stats(ctx context.Context) (*models.RequestStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &models.RequestStats{}, nil
}

// MockAdminRepository implements AdminRepository for testing
type MockAdminRepository struct {
	GetActiveByUsernameFunc func(ctx context.Context, username string) (*models.AdminUser, error)
	GetByIDFunc             func(ctx context.Context, id int64) (*models.AdminUser, error)
	ListFunc                func(ctx context.Context) ([]*models.AdminUser, error)
	CountFunc               func(ctx context.Context) (int64, error)
	CreateFunc              func(ctx context.Context, admin *models.AdminUser) (*models.AdminUser, error)
	RecordLoginAttemptFunc  func(ctx context.Context, id int64, success bool, now time.Time) (*models.AdminUser, error)
	UpdatePasswordFunc      func(ctx context.Context, id int64, passwordHash string, now time.Time) error
	SetActiveFunc           func(ctx context.Context, id int64, active bool, now time.Time) (*models.AdminUser, error)
}

func (m *MockAdminRepository) GetActiveByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	if m.GetActiveByUsernameFunc != nil {
		return m.GetActiveByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockAdminRepository) GetByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAdminRepository) List(ctx context.Context) ([]*models.AdminUser, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.AdminUser{}, nil
}

func (m *MockAdminRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *models.AdminUser) (*models.AdminUser, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, admin)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAdminRepository) RecordLoginAttempt(ctx context.Context, id int64, success bool, now time.Time) (*models.AdminUser, error) {
	if m.RecordLoginAttemptFunc != nil {
		return m.RecordLoginAttemptFunc(ctx, id, success, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockAdminRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, now time.Time) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash, now)
	}
	return nil
}

func (m *MockAdminRepository) SetActive(ctx context.Context, id int64, active bool, now time.Time) (*models.AdminUser, error) {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active, now)
	}
	return nil, models.ErrNotFound
}

// InMemoryAdminRepository keeps a single admin and applies login
// attempts the way the database repository does
type InMemoryAdminRepository struct {
	MockAdminRepository

	mu    sync.Mutex
	admin *models.AdminUser
}

func NewInMemoryAdminRepository(admin *models.AdminUser) *InMemoryAdminRepository {
	repo := &InMemoryAdminRepository{admin: admin}
	repo.GetActiveByUsernameFunc = func(ctx context.Context, username string) (*models.AdminUser, error) {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		if repo.admin.Username != username || !repo.admin.IsActive {
			return nil, models.ErrNotFound
		}
		copied := *repo.admin
		return &copied, nil
	}
	repo.GetByIDFunc = func(ctx context.Context, id int64) (*models.AdminUser, error) {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		if repo.admin.ID != id {
			return nil, models.ErrNotFound
		}
		copied := *repo.admin
		return &copied, nil
	}
	repo.RecordLoginAttemptFunc = func(ctx context.Context, id int64, success bool, now time.Time) (*models.AdminUser, error) {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		if repo.admin.IsLocked(now) {
			return nil, models.ErrAccountLocked
		}
		repo.admin.RecordLoginAttempt(success, now)
		copied := *repo.admin
		return &copied, nil
	}
	repo.UpdatePasswordFunc = func(ctx context.Context, id int64, passwordHash string, now time.Time) error {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		repo.admin.PasswordHash = passwordHash
		repo.admin.UpdatedAt = now
		return nil
	}
	return repo
}

// Admin returns a copy of the stored account
func (r *InMemoryAdminRepository) Admin() models.AdminUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.admin
}

// MockSessionRevoker implements SessionRevoker for testing
type MockSessionRevoker struct {
	RevokeFunc func(ctx context.Context, sessionID string, adminID int64, expiresAt time.Time) error
}

func (m *MockSessionRevoker) Revoke(ctx context.Context, sessionID string, adminID int64, expiresAt time.Time) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, sessionID, adminID, expiresAt)
	}
	return nil
}

// MockFileStore is an in-memory storage.FileStore
type MockFileStore struct {
	SaveFunc   func(ctx context.Context, name string, content io.Reader) error
	OpenFunc   func(ctx context.Context, name string) (*storage.Object, error)
	DeleteFunc func(ctx context.Context, name string) error

	mu    sync.Mutex
	Files map[string][]byte
}

func NewMockFileStore() *MockFileStore {
	return &MockFileStore{Files: make(map[string][]byte)}
}

func (m *MockFileStore) Save(ctx context.Context, name string, content io.Reader) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, name, content)
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[name] = data
	return nil
}

func (m *MockFileStore) Open(ctx context.Context, name string) (*storage.Object, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[name]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		Size:        int64(len(data)),
		ContentType: "application/octet-stream",
	}, nil
}

func (m *MockFileStore) Delete(ctx context.Context, name string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Files, name)
	return nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	RequestSubmittedFunc func(ctx context.Context, req *models.ServiceRequest) error
	StatusChangedFunc    func(ctx context.Context, req *models.ServiceRequest, previousStatus string) error
}

func (m *MockNotifier) RequestSubmitted(ctx context.Context, req *models.ServiceRequest) error {
	if m.RequestSubmittedFunc != nil {
		return m.RequestSubmittedFunc(ctx, req)
	}
	return nil
}

func (m *MockNotifier) StatusChanged(ctx context.Context, req *models.ServiceRequest, previousStatus string) error {
	if m.StatusChangedFunc != nil {
		return m.StatusChangedFunc(ctx, req, previousStatus)
	}
	return nil
}

// MockSESClient implements SESAPI for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error)

	mu   sync.Mutex
	Sent []*ses.SendEmailInput
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, params)
	m.mu.Unlock()

	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

// NewTestAdmin builds an active admin with the given password hash
func NewTestAdmin(id int64, username, passwordHash string) *models.AdminUser {
	now := time.Now().UTC()
	return &models.AdminUser{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test Admin",
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestRequest builds a valid Pending request
func NewTestRequest(id int64) *models.ServiceRequest {
	now := time.Now().UTC()
	return &models.ServiceRequest{
		ID:                id,
		RequesterName:     "Jane Doe",
		Email:             "jane@example.com",
		Department:        "IT",
		Category:          "Printer Issue",
		Description:       "Printer on floor 3 is jammed",
		Priority:          models.PriorityMedium,
		ContactPreference: models.ContactEmail,
		Status:            models.StatusPending,
		Attachments:       []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
