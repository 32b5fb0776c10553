package routes_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/handlers"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/routes"
	"github.com/BradenHooton/helpdesk/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret-0123456789abcdef"

type stubAdmins map[int64]*models.AdminUser

func (s stubAdmins) GetByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	if admin, ok := s[id]; ok {
		return admin, nil
	}
	return nil, models.ErrNotFound
}

type stubRevocations struct{}

func (stubRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	return false, nil
}

type testServer struct {
	router   http.Handler
	sessions *auth.SessionManager
	csrf     *auth.CSRFTokenManager
	admins   stubAdmins
}

func newTestServer(t *testing.T, requireAdminForReads bool) *testServer {
	t.Helper()
	logger := slog.Default()
	sessions := auth.NewSessionManager(testSecret)
	csrf := auth.NewCSRFTokenManager(testSecret)
	admins := stubAdmins{
		1: {ID: 1, Username: "admin", IsActive: true, IsSuperAdmin: true},
		2: {ID: 2, Username: "tech", IsActive: true},
	}
	guard := auth.NewGuard(sessions, admins, stubRevocations{}, logger)

	requestSvc := &handlers.MockRequestService{
		UpdateStatusFunc: func(ctx context.Context, id int64, status, assignee, actor string) (*models.ServiceRequest, error) {
			return &models.ServiceRequest{ID: id, Status: status}, nil
		},
	}

	router := chi.NewRouter()
	routes.RegisterRoutes(router, routes.Handlers{
		Requests: handlers.NewRequestHandler(requestSvc, services.DefaultAttachmentPolicy(), logger),
		Auth:     handlers.NewAuthHandler(&handlers.MockAuthService{}, nil, auth.CookieConfig{SameSite: "lax"}, logger),
		Admins:   handlers.NewAdminHandler(&handlers.MockAdminService{}, logger),
		Health:   handlers.Health(&handlers.MockHealthChecker{}),
	}, guard, csrf, routes.Config{
		RequireAdminForReads: requireAdminForReads,
		LoginRateLimit:       100,
		SubmitRateLimit:      100,
	}, logger)

	return &testServer{router: router, sessions: sessions, csrf: csrf, admins: admins}
}

// login returns a signed token and its session for admin id
func (s *testServer) login(t *testing.T, id int64) (string, *models.Session) {
	t.Helper()
	token, session, err := s.sessions.Issue(s.admins[id], time.Now())
	require.NoError(t, err)
	return token, session
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func statusBody() *strings.Reader {
	return strings.NewReader(`{"status":"In Progress"}`)
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t, true)

	assert.Equal(t, http.StatusOK, srv.do(httptest.NewRequest("GET", "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, srv.do(httptest.NewRequest("GET", "/api/options", nil)).Code)
}

func TestRoutes_ReadsPolicy(t *testing.T) {
	guarded := newTestServer(t, true)
	assert.Equal(t, http.StatusUnauthorized, guarded.do(httptest.NewRequest("GET", "/api/requests", nil)).Code)

	token, _ := guarded.login(t, 2)
	req := httptest.NewRequest("GET", "/api/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, guarded.do(req).Code)

	open := newTestServer(t, false)
	assert.Equal(t, http.StatusOK, open.do(httptest.NewRequest("GET", "/api/requests", nil)).Code)
}

func TestRoutes_AdminOnlyEndpointsRejectAnonymous(t *testing.T) {
	srv := newTestServer(t, false)

	for _, target := range []string{"/api/stats", "/api/dashboard", "/api/auth/session", "/api/admins"} {
		assert.Equal(t, http.StatusUnauthorized, srv.do(httptest.NewRequest("GET", target, nil)).Code, target)
	}
}

func TestRoutes_SuperAdminGroup(t *testing.T) {
	srv := newTestServer(t, true)

	techToken, _ := srv.login(t, 2)
	req := httptest.NewRequest("GET", "/api/admins", nil)
	req.Header.Set("Authorization", "Bearer "+techToken)
	assert.Equal(t, http.StatusForbidden, srv.do(req).Code)

	adminToken, _ := srv.login(t, 1)
	req = httptest.NewRequest("GET", "/api/admins", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, srv.do(req).Code)
}

func TestRoutes_CookieSessionNeedsCSRF(t *testing.T) {
	srv := newTestServer(t, true)
	token, session := srv.login(t, 2)

	req := httptest.NewRequest("PUT", "/api/requests/7/status", statusBody())
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	assert.Equal(t, http.StatusForbidden, srv.do(req).Code)

	req = httptest.NewRequest("PUT", "/api/requests/7/status", statusBody())
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	req.Header.Set("X-CSRF-Token", srv.csrf.GenerateToken(session.ID))
	assert.Equal(t, http.StatusOK, srv.do(req).Code)
}

func TestRoutes_BearerSessionSkipsCSRF(t *testing.T) {
	srv := newTestServer(t, true)
	token, _ := srv.login(t, 2)

	req := httptest.NewRequest("PUT", "/api/requests/7/status", statusBody())
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, srv.do(req).Code)
}

func TestRoutes_LogoutWithoutCSRF(t *testing.T) {
	srv := newTestServer(t, true)
	token, _ := srv.login(t, 2)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	assert.Equal(t, http.StatusOK, srv.do(req).Code)
}
