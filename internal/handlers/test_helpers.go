package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/services"
	"github.com/BradenHooton/helpdesk/internal/storage"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext attaches an admin session the way the guard does
func WithSessionContext(req *http.Request, adminID int64, username string, superAdmin bool) *http.Request {
	session := &models.Session{
		ID:           "test-session",
		AdminID:      adminID,
		Username:     username,
		IsSuperAdmin: superAdmin,
	}
	return req.WithContext(auth.WithSession(req.Context(), session, false))
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedCode, resp.Code, "Error code mismatch")
	assert.NotEmpty(t, resp.Error, "Error message should not be empty")
	return resp
}

// MockRequestService implements RequestService for testing
type MockRequestService struct {
	SubmitFunc         func(ctx context.Context, fields models.RequestFields, uploads []services.Upload) (*models.ServiceRequest, error)
	GetFunc            func(ctx context.Context, id int64) (*models.ServiceRequest, error)
	ListFunc           func(ctx context.Context, params services.ListParams) (*services.RequestPage, error)
	UpdateStatusFunc   func(ctx context.Context, id int64, status, assignee, actor string) (*models.ServiceRequest, error)
	StatsFunc          func(ctx context.Context) (*models.RequestStats, error)
	DashboardFunc      func(ctx context.Context) (*models.Dashboard, error)
	OpenAttachmentFunc func(ctx context.Context, id int64, filename string) (*storage.Object, error)
}

func (m *MockRequestService) Submit(ctx context.Context, fields models.RequestFields, uploads []services.Upload) (*models.ServiceRequest, error) {
	if m.SubmitFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.SubmitFunc(ctx, fields, uploads)
}

func (m *MockRequestService) Get(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockRequestService) List(ctx context.Context, params services.ListParams) (*services.RequestPage, error) {
	if m.ListFunc == nil {
		return &services.RequestPage{Requests: []*models.ServiceRequest{}}, nil
	}
	return m.ListFunc(ctx, params)
}

func (m *MockRequestService) UpdateStatus(ctx context.Context, id int64, status, assignee, actor string) (*models.ServiceRequest, error) {
	if m.UpdateStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateStatusFunc(ctx, id, status, assignee, actor)
}

func (m *MockRequestService) Stats(ctx context.Context) (*models.RequestStats, error) {
	if m.StatsFunc == nil {
		return &models.RequestStats{}, nil
	}
	return m.StatsFunc(ctx)
}

func (m *MockRequestService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	if m.DashboardFunc == nil {
		return &models.Dashboard{Stats: &models.RequestStats{}, RecentRequests: []*models.ServiceRequest{}}, nil
	}
	return m.DashboardFunc(ctx)
}

func (m *MockRequestService) OpenAttachment(ctx context.Context, id int64, filename string) (*storage.Object, error) {
	if m.OpenAttachmentFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.OpenAttachmentFunc(ctx, id, filename)
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	AuthenticateFunc   func(ctx context.Context, username, password string, meta services.RequestMeta) (*services.LoginResult, error)
	LogoutFunc         func(ctx context.Context, session *models.Session, meta services.RequestMeta) error
	CurrentAdminFunc   func(ctx context.Context, session *models.Session) (*services.AdminResponse, error)
	ChangePasswordFunc func(ctx context.Context, session *models.Session, currentPassword, newPassword string, meta services.RequestMeta) error
}

func (m *MockAuthService) Authenticate(ctx context.Context, username, password string, meta services.RequestMeta) (*services.LoginResult, error) {
	if m.AuthenticateFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.AuthenticateFunc(ctx, username, password, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, session *models.Session, meta services.RequestMeta) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, session, meta)
}

func (m *MockAuthService) CurrentAdmin(ctx context.Context, session *models.Session) (*services.AdminResponse, error) {
	if m.CurrentAdminFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.CurrentAdminFunc(ctx, session)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, session *models.Session, currentPassword, newPassword string, meta services.RequestMeta) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, session, currentPassword, newPassword, meta)
}

// MockAdminService implements AdminService for testing
type MockAdminService struct {
	ListFunc      func(ctx context.Context) ([]*services.AdminResponse, error)
	CreateFunc    func(ctx context.Context, actor *models.Session, input services.NewAdmin) (*services.AdminResponse, error)
	SetActiveFunc func(ctx context.Context, actor *models.Session, id int64, active bool) (*services.AdminResponse, error)
}

func (m *MockAdminService) List(ctx context.Context) ([]*services.AdminResponse, error) {
	if m.ListFunc == nil {
		return []*services.AdminResponse{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockAdminService) Create(ctx context.Context, actor *models.Session, input services.NewAdmin) (*services.AdminResponse, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateFunc(ctx, actor, input)
}

func (m *MockAdminService) SetActive(ctx context.Context, actor *models.Session, id int64, active bool) (*services.AdminResponse, error) {
	if m.SetActiveFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.SetActiveFunc(ctx, actor, id, active)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	HealthCheckFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}
