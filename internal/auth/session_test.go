package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-characters-long!!"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testAdmin() *models.AdminUser {
	return &models.AdminUser{ID: 1, Username: "admin", IsActive: true, IsSuperAdmin: true}
}

func TestSessionManager_IssueAndParse(t *testing.T) {
	loginTime := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewSessionManager(testSecret)
	m.now = fixedClock(loginTime.Add(time.Hour))

	token, issued, err := m.Issue(testAdmin(), loginTime)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, loginTime.Add(24*time.Hour), issued.ExpiresAt())

	parsed, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, parsed.ID)
	assert.Equal(t, int64(1), parsed.AdminID)
	assert.Equal(t, "admin", parsed.Username)
	assert.True(t, parsed.IsSuperAdmin)
	assert.True(t, loginTime.Equal(parsed.LoginTime))
}

func TestSessionManager_ParseRejects(t *testing.T) {
	loginTime := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewSessionManager(testSecret)
	m.now = fixedClock(loginTime.Add(time.Minute))

	token, _, err := m.Issue(testAdmin(), loginTime)
	require.NoError(t, err)

	other := NewSessionManager("another-secret-of-enough-length")
	other.now = m.now

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
		AdminID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: "x", Issuer: sessionIssuer, IssuedAt: jwt.NewNumericDate(loginTime),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		m     *SessionManager
		token string
	}{
		{"empty", m, ""},
		{"garbage", m, "not-a-token"},
		{"wrong secret", other, token},
		{"tampered", m, tampered},
		{"alg none", m, noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.m.Parse(tt.token)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestSessionManager_ParseExpired(t *testing.T) {
	loginTime := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewSessionManager(testSecret)

	token, _, err := m.Issue(testAdmin(), loginTime)
	require.NoError(t, err)

	m.now = fixedClock(loginTime.Add(24*time.Hour + time.Second))
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestIsValid(t *testing.T) {
	loginTime := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	session := &models.Session{ID: "s", AdminID: 1, LoginTime: loginTime}
	active := &models.AdminUser{ID: 1, IsActive: true}

	tests := []struct {
		name    string
		session *models.Session
		account *models.AdminUser
		now     time.Time
		want    bool
	}{
		{"fresh", session, active, loginTime.Add(time.Minute), true},
		{"exactly 24h", session, active, loginTime.Add(24 * time.Hour), true},
		{"past 24h", session, active, loginTime.Add(24*time.Hour + time.Nanosecond), false},
		{"account gone", session, nil, loginTime, false},
		{"account inactive", session, &models.AdminUser{ID: 1, IsActive: false}, loginTime, false},
		{"different account", session, &models.AdminUser{ID: 2, IsActive: true}, loginTime, false},
		{"no session", nil, active, loginTime, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.session, tt.account, tt.now))
		})
	}
}

func TestCSRFTokenManager(t *testing.T) {
	m := NewCSRFTokenManager(testSecret)

	token := m.GenerateToken("session-a")
	assert.Len(t, token, 64)
	assert.Equal(t, token, m.GenerateToken("session-a"), "derivation is deterministic")

	assert.True(t, m.ValidateToken(token, "session-a"))
	assert.False(t, m.ValidateToken(token, "session-b"))
	assert.False(t, m.ValidateToken("", "session-a"))
	assert.False(t, m.ValidateToken(token, ""))
	assert.False(t, NewCSRFTokenManager("a-different-secret-value").ValidateToken(token, "session-a"))
}
