package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAdminLookup implements AdminLookup for testing
type MockAdminLookup struct {
	GetByIDFunc func(ctx context.Context, id int64) (*models.AdminUser, error)
}

func (m *MockAdminLookup) GetByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// MockRevocationChecker implements RevocationChecker for testing
type MockRevocationChecker struct {
	IsRevokedFunc func(ctx context.Context, sessionID string) (bool, error)
}

func (m *MockRevocationChecker) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if m.IsRevokedFunc != nil {
		return m.IsRevokedFunc(ctx, sessionID)
	}
	return false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type guardFixture struct {
	guard   *Guard
	token   string
	session *models.Session
	admin   *models.AdminUser
	revoked bool
	lookErr error
	reached bool
}

func newGuardFixture(t *testing.T, super bool) *guardFixture {
	t.Helper()
	loginTime := time.Now().Add(-time.Hour).Truncate(time.Second)

	f := &guardFixture{
		admin: &models.AdminUser{ID: 7, Username: "triage", IsActive: true, IsSuperAdmin: super},
	}

	sessions := NewSessionManager(testSecret)
	token, session, err := sessions.Issue(f.admin, loginTime)
	require.NoError(t, err)
	f.token = token
	f.session = session

	admins := &MockAdminLookup{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.AdminUser, error) {
			if f.lookErr != nil {
				return nil, f.lookErr
			}
			if f.admin == nil || id != f.admin.ID {
				return nil, models.ErrNotFound
			}
			return f.admin, nil
		},
	}
	revocations := &MockRevocationChecker{
		IsRevokedFunc: func(ctx context.Context, sessionID string) (bool, error) {
			return f.revoked, nil
		},
	}

	f.guard = NewGuard(sessions, admins, revocations, discardLogger())
	return f
}

func (f *guardFixture) handler() http.Handler {
	return f.guard.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.reached = true
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRequireAdmin_BearerSession(t *testing.T) {
	f := newGuardFixture(t, false)

	var got *models.Session
	var cookie bool
	h := f.guard.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionFromContext(r.Context())
		cookie = SessionFromCookie(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, f.session.ID, got.ID)
	assert.False(t, cookie)
}

func TestRequireAdmin_CookieSession(t *testing.T) {
	f := newGuardFixture(t, false)

	var cookie bool
	h := f.guard.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = SessionFromCookie(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: f.token})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, cookie)
}

func TestRequireAdmin_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *guardFixture, r *http.Request)
		status int
	}{
		{"no credentials", func(f *guardFixture, r *http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(f *guardFixture, r *http.Request) {
			r.Header.Set("Authorization", "Basic "+f.token)
		}, http.StatusUnauthorized},
		{"bad token", func(f *guardFixture, r *http.Request) {
			r.Header.Set("Authorization", "Bearer nope")
		}, http.StatusUnauthorized},
		{"revoked", func(f *guardFixture, r *http.Request) {
			f.revoked = true
			r.Header.Set("Authorization", "Bearer "+f.token)
		}, http.StatusUnauthorized},
		{"account deactivated", func(f *guardFixture, r *http.Request) {
			f.admin.IsActive = false
			r.Header.Set("Authorization", "Bearer "+f.token)
		}, http.StatusUnauthorized},
		{"account deleted", func(f *guardFixture, r *http.Request) {
			f.admin = nil
			r.Header.Set("Authorization", "Bearer "+f.token)
		}, http.StatusUnauthorized},
		{"lookup failure", func(f *guardFixture, r *http.Request) {
			f.lookErr = errors.New("connection refused")
			r.Header.Set("Authorization", "Bearer "+f.token)
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGuardFixture(t, false)
			req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			tt.setup(f, req)

			w := httptest.NewRecorder()
			f.handler().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.False(t, f.reached, "handler must not run")
		})
	}
}

func TestRequireAdmin_ExpiredSession(t *testing.T) {
	f := newGuardFixture(t, false)
	f.guard.now = func() time.Time { return f.session.LoginTime.Add(24*time.Hour + time.Minute) }
	f.guard.sessions.now = f.guard.now

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.reached)
}

func TestRequireSuperAdmin(t *testing.T) {
	for _, super := range []bool{true, false} {
		f := newGuardFixture(t, super)
		h := f.guard.RequireAdmin(f.guard.RequireSuperAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.reached = true
		})))

		req := httptest.NewRequest(http.MethodGet, "/api/admins", nil)
		req.Header.Set("Authorization", "Bearer "+f.token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if super {
			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, f.reached)
		} else {
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.False(t, f.reached)
		}
	}
}

func TestRequireSuperAdmin_WithoutSession(t *testing.T) {
	f := newGuardFixture(t, true)
	h := f.guard.RequireSuperAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.reached = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admins", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, f.reached)
}
