package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CSRFTokenManager derives one CSRF token per session. Tokens need no
// storage and die with the session they are bound to.
type CSRFTokenManager struct {
	key []byte
}

// NewCSRFTokenManager keys token derivation off the application secret
func NewCSRFTokenManager(secret string) *CSRFTokenManager {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("helpdesk-csrf"))
	return &CSRFTokenManager{key: mac.Sum(nil)}
}

// GenerateToken returns the token for sessionID
func (m *CSRFTokenManager) GenerateToken(sessionID string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateToken checks token against sessionID in constant time
func (m *CSRFTokenManager) ValidateToken(token, sessionID string) bool {
	if token == "" || sessionID == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(m.GenerateToken(sessionID)))
}
