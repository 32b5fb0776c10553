package models

import "time"

// SessionMaxAge is how long a session stays valid after login.
const SessionMaxAge = 24 * time.Hour

// Session is the proof of a successful admin login carried by the client.
// IsSuperAdmin is captured at login and not refreshed for the life of the
// session.
type Session struct {
	ID           string    `json:"session_id"`
	AdminID      int64     `json:"admin_id"`
	Username     string    `json:"username"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	LoginTime    time.Time `json:"login_time"`
}

// ExpiresAt is the last instant at which the session is still valid.
func (s *Session) ExpiresAt() time.Time {
	return s.LoginTime.Add(SessionMaxAge)
}
