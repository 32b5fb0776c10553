package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "helpdesk"

// SessionClaims is the signed form of models.Session
type SessionClaims struct {
	AdminID      int64  `json:"aid"`
	Username     string `json:"usr"`
	IsSuperAdmin bool   `json:"sup"`
	jwt.RegisteredClaims
}

// SessionManager mints and parses signed session tokens
type SessionManager struct {
	secret []byte
	now    func() time.Time
}

func NewSessionManager(secret string) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue mints a session for admin that started at loginTime
func (m *SessionManager) Issue(admin *models.AdminUser, loginTime time.Time) (string, *models.Session, error) {
	session := &models.Session{
		ID:           uuid.New().String(),
		AdminID:      admin.ID,
		Username:     admin.Username,
		IsSuperAdmin: admin.IsSuperAdmin,
		LoginTime:    loginTime,
	}

	claims := &SessionClaims{
		AdminID:      session.AdminID,
		Username:     session.Username,
		IsSuperAdmin: session.IsSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    sessionIssuer,
			Subject:   strconv.FormatInt(admin.ID, 10),
			IssuedAt:  jwt.NewNumericDate(loginTime),
			NotBefore: jwt.NewNumericDate(loginTime),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return token, session, nil
}

// Parse verifies tokenString and returns the session it carries.
// Any signature, format or expiry problem yields models.ErrUnauthorized.
func (m *SessionManager) Parse(tokenString string) (*models.Session, error) {
	if tokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
		// IsValid owns the 24h boundary
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return nil, errors.Join(models.ErrUnauthorized, err)
	}
	if !token.Valid || claims.ID == "" || claims.AdminID == 0 || claims.IssuedAt == nil {
		return nil, models.ErrUnauthorized
	}

	return &models.Session{
		ID:           claims.ID,
		AdminID:      claims.AdminID,
		Username:     claims.Username,
		IsSuperAdmin: claims.IsSuperAdmin,
		LoginTime:    claims.IssuedAt.Time,
	}, nil
}

// IsValid reports whether session may be used at now. account is the
// current state of the referenced admin, nil when it no longer exists.
func IsValid(session *models.Session, account *models.AdminUser, now time.Time) bool {
	if session == nil || account == nil {
		return false
	}
	if account.ID != session.AdminID || !account.IsActive {
		return false
	}
	return now.Sub(session.LoginTime) <= models.SessionMaxAge
}
