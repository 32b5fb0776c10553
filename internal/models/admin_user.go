package models

import "time"

// Lockout policy
const (
	MaxFailedLoginAttempts = 5
	LockoutDuration        = 30 * time.Minute
)

// AdminUser is an administrator who can triage service requests.
type AdminUser struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	FullName      string
	IsActive      bool
	IsSuperAdmin  bool
	LastLogin     *time.Time
	LoginAttempts int
	LockedUntil   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLocked reports whether the lockout window is still open at now.
func (a *AdminUser) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// RecordLoginAttempt applies the outcome of one login attempt.
// The counter is not reset when a lockout expires, so a failure right after
// the window closes locks the account again.
func (a *AdminUser) RecordLoginAttempt(success bool, now time.Time) {
	if success {
		a.LoginAttempts = 0
		a.LockedUntil = nil
		lastLogin := now
		a.LastLogin = &lastLogin
	} else {
		a.LoginAttempts++
		if a.LoginAttempts >= MaxFailedLoginAttempts {
			lockedUntil := now.Add(LockoutDuration)
			a.LockedUntil = &lockedUntil
		}
	}
	a.UpdatedAt = now
}
