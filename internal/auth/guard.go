package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
)

type contextKey string

const sessionContextKey contextKey = "session"

// AdminLookup fetches the current state of an admin account
type AdminLookup interface {
	GetByID(ctx context.Context, id int64) (*models.AdminUser, error)
}

// RevocationChecker reports whether a session was ended by logout
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type sessionValue struct {
	session    *models.Session
	fromCookie bool
}

// Guard turns a request's credentials into a validated session
type Guard struct {
	sessions    *SessionManager
	admins      AdminLookup
	revocations RevocationChecker
	logger      *slog.Logger
	now         func() time.Time
}

func NewGuard(sessions *SessionManager, admins AdminLookup, revocations RevocationChecker, logger *slog.Logger) *Guard {
	return &Guard{
		sessions:    sessions,
		admins:      admins,
		revocations: revocations,
		logger:      logger,
		now:         time.Now,
	}
}

// sessionToken returns the bearer token, falling back to the session cookie
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
		return "", false
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

// Resolve returns the valid session carried by r. Missing, malformed,
// expired, revoked and orphaned sessions all yield models.ErrUnauthorized.
func (g *Guard) Resolve(r *http.Request) (*models.Session, bool, error) {
	token, fromCookie := sessionToken(r)
	if token == "" {
		return nil, false, models.ErrUnauthorized
	}

	session, err := g.sessions.Parse(token)
	if err != nil {
		return nil, false, models.ErrUnauthorized
	}

	ctx := r.Context()
	if g.revocations != nil {
		revoked, err := g.revocations.IsRevoked(ctx, session.ID)
		if err != nil {
			return nil, false, err
		}
		if revoked {
			return nil, false, models.ErrUnauthorized
		}
	}

	account, err := g.admins.GetByID(ctx, session.AdminID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}
	if !IsValid(session, account, g.now()) {
		return nil, false, models.ErrUnauthorized
	}

	return session, fromCookie, nil
}

// RequireAdmin rejects the request with 401 unless it carries a valid session
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, fromCookie, err := g.Resolve(r)
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}
			g.logger.Error("session validation failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			pkghttp.WriteError(w, http.StatusServiceUnavailable, "session_check_failed", "Unable to verify session")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session, fromCookie)))
	})
}

// RequireSuperAdmin must run after RequireAdmin. The flag is the one
// captured in the session at login.
func (g *Guard) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !session.IsSuperAdmin {
			g.logger.Warn("super admin access denied",
				slog.Int64("admin_id", session.AdminID),
				slog.String("path", r.URL.Path),
			)
			pkghttp.WriteForbidden(w, "Super admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext returns the session attached by RequireAdmin, or nil
func SessionFromContext(ctx context.Context) *models.Session {
	if v, ok := ctx.Value(sessionContextKey).(*sessionValue); ok {
		return v.session
	}
	return nil
}

// SessionFromCookie reports whether the attached session came from the
// session cookie rather than an Authorization header
func SessionFromCookie(ctx context.Context) bool {
	if v, ok := ctx.Value(sessionContextKey).(*sessionValue); ok {
		return v.fromCookie
	}
	return false
}

// WithSession attaches session to ctx the way RequireAdmin does
func WithSession(ctx context.Context, session *models.Session, fromCookie bool) context.Context {
	return context.WithValue(ctx, sessionContextKey, &sessionValue{session: session, fromCookie: fromCookie})
}
