//go:build integration

package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/helpdesk/internal/auth"
	"github.com/BradenHooton/helpdesk/internal/database"
	"github.com/BradenHooton/helpdesk/internal/handlers"
	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/repositories"
	"github.com/BradenHooton/helpdesk/internal/routes"
	"github.com/BradenHooton/helpdesk/internal/services"
	"github.com/BradenHooton/helpdesk/internal/storage"
	pkglogger "github.com/BradenHooton/helpdesk/pkg/logger"
)

const (
	e2eSecret       = "integration-secret-32-characters-long"
	e2eSeedPassword = "admin123"
)

var e2eDB *database.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("helpdesk"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic(err)
	}

	e2eDB = database.New(pool, nil)
	if err := e2eDB.Migrate(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		panic(err)
	}

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// capturingNotifier records outbound notifications
type capturingNotifier struct {
	mu        sync.Mutex
	submitted []int64
	changed   []string
}

func (n *capturingNotifier) RequestSubmitted(ctx context.Context, req *models.ServiceRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, req.ID)
	return nil
}

func (n *capturingNotifier) StatusChanged(ctx context.Context, req *models.ServiceRequest, previousStatus string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, previousStatus+"->"+req.Status)
	return nil
}

type e2eServer struct {
	server   *httptest.Server
	notifier *capturingNotifier
}

// newE2EServer wires the full stack against the shared container, seeding
// the default admin into an empty schema
func newE2EServer(t *testing.T) *e2eServer {
	t.Helper()
	ctx := context.Background()

	_, err := e2eDB.Pool.Exec(ctx,
		`TRUNCATE TABLE revoked_sessions, admin_users, service_requests RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger := pkglogger.NewAuditLogger(logger)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	requestRepo := repositories.NewServiceRequestRepository(e2eDB)
	adminRepo := repositories.NewAdminUserRepository(e2eDB)
	revocationRepo := repositories.NewSessionRevocationRepository(e2eDB)

	sessions := auth.NewSessionManager(e2eSecret)
	csrf := auth.NewCSRFTokenManager(e2eSecret)
	guard := auth.NewGuard(sessions, adminRepo, revocationRepo, logger)
	notifier := &capturingNotifier{}
	policy := services.DefaultAttachmentPolicy()

	requestService := services.NewRequestService(requestRepo, store, notifier, policy, logger, auditLogger)
	authService := services.NewAuthService(adminRepo, sessions, revocationRepo, csrf, auth.NewTimingDelay(auth.TimingConfig{}), logger, auditLogger)
	adminService := services.NewAdminService(adminRepo, logger, auditLogger)

	created, err := adminService.EnsureDefaultAdmin(ctx, services.SeedAdmin{
		Username: "admin",
		Email:    "admin@example.com",
		FullName: "System Administrator",
		Password: e2eSeedPassword,
	})
	require.NoError(t, err)
	require.True(t, created)

	router := chi.NewRouter()
	routes.RegisterRoutes(router, routes.Handlers{
		Requests: handlers.NewRequestHandler(requestService, policy, logger),
		Auth:     handlers.NewAuthHandler(authService, nil, auth.CookieConfig{SameSite: "lax"}, logger),
		Admins:   handlers.NewAdminHandler(adminService, logger),
		Health:   handlers.Health(e2eDB),
	}, guard, csrf, routes.Config{
		RequireAdminForReads: true,
		LoginRateLimit:       1000,
		SubmitRateLimit:      1000,
	}, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &e2eServer{server: srv, notifier: notifier}
}

func (s *e2eServer) call(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *e2eServer) login(t *testing.T, username, password string) (int, map[string]any) {
	t.Helper()
	resp, body := s.call(t, "POST", "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	return resp.StatusCode, body
}

func TestE2E_DefaultAdminLogin(t *testing.T) {
	srv := newE2EServer(t)

	status, body := srv.login(t, "admin", e2eSeedPassword)
	require.Equal(t, http.StatusOK, status)

	session := body["session"].(map[string]any)
	assert.Equal(t, "admin", session["username"])
	assert.Equal(t, true, session["is_super_admin"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["csrf_token"])
}

func TestE2E_SubmitAndTriage(t *testing.T) {
	srv := newE2EServer(t)

	resp, body := srv.call(t, "POST", "/api/requests", "", map[string]string{
		"requester_name": "A. Lee",
		"department":     "IT",
		"category":       "Hardware Issue",
		"description":    "laptop won't boot",
		"status":         "Resolved",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["request"].(map[string]any)
	assert.Equal(t, "Pending", created["status"])
	assert.Equal(t, "Medium", created["priority"])
	assert.Equal(t, "email", created["contact_preference"])
	assert.Nil(t, created["resolved_at"])
	id := int64(created["id"].(float64))

	// Reads are guarded
	resp, _ = srv.call(t, "GET", "/api/requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, loginBody := srv.login(t, "admin", e2eSeedPassword)
	token := loginBody["token"].(string)

	path := "/api/requests/" + jsonID(id) + "/status"
	resp, body = srv.call(t, "PUT", path, token, map[string]string{
		"status":      "In Progress",
		"assigned_to": "J. Diaz",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := body["request"].(map[string]any)
	assert.Equal(t, "In Progress", updated["status"])
	assert.Equal(t, "J. Diaz", updated["assigned_to"])
	assert.Nil(t, updated["resolved_at"])

	resp, body = srv.call(t, "PUT", path, token, map[string]string{"status": "Resolved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resolvedAt := body["request"].(map[string]any)["resolved_at"]
	require.NotNil(t, resolvedAt)

	// A second resolve keeps the first timestamp
	_, body = srv.call(t, "PUT", path, token, map[string]string{"status": "Resolved"})
	assert.Equal(t, resolvedAt, body["request"].(map[string]any)["resolved_at"])

	resp, body = srv.call(t, "GET", "/api/requests?status=Resolved", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["requests"], 1)

	resp, body = srv.call(t, "GET", "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["total_requests"])
	assert.Equal(t, float64(1), stats["resolved_requests"])
	assert.NotNil(t, stats["avg_resolution_seconds"])

	assert.Eventually(t, func() bool {
		srv.notifier.mu.Lock()
		defer srv.notifier.mu.Unlock()
		return len(srv.notifier.submitted) == 1 && len(srv.notifier.changed) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestE2E_Lockout(t *testing.T) {
	srv := newE2EServer(t)

	for i := 0; i < models.MaxFailedLoginAttempts; i++ {
		status, _ := srv.login(t, "admin", "wrong-password")
		require.Equal(t, http.StatusUnauthorized, status)
	}

	status, body := srv.login(t, "admin", e2eSeedPassword)
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, "account_locked", body["code"])
}

func TestE2E_LogoutRevokesSession(t *testing.T) {
	srv := newE2EServer(t)

	_, loginBody := srv.login(t, "admin", e2eSeedPassword)
	token := loginBody["token"].(string)

	resp, _ := srv.call(t, "GET", "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.call(t, "POST", "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.call(t, "GET", "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
