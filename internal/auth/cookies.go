package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "helpdesk_session"
	CSRFCookieName    = "csrf_token"
	CSRFHeaderName    = "X-CSRF-Token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetSessionCookie stores the session token in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expires,
		MaxAge:   maxAgeUntil(expires),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// SetCSRFTokenCookie sets a CSRF token in a readable cookie (not httpOnly)
// JavaScript needs to read this and send it in X-CSRF-Token header
func SetCSRFTokenCookie(w http.ResponseWriter, csrfToken string, expires time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expires,
		MaxAge:   maxAgeUntil(expires),
		HttpOnly: false,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearSessionCookies expires both the session and CSRF cookies
func ClearSessionCookies(w http.ResponseWriter, config CookieConfig) {
	for _, c := range []struct {
		name     string
		httpOnly bool
	}{
		{SessionCookieName, true},
		{CSRFCookieName, false},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     "/",
			Domain:   config.Domain,
			MaxAge:   -1,
			HttpOnly: c.httpOnly,
			Secure:   config.Secure,
			SameSite: parseSameSite(config.SameSite),
		})
	}
}

func maxAgeUntil(expires time.Time) int {
	seconds := int(time.Until(expires).Seconds())
	if seconds <= 0 {
		return -1
	}
	return seconds
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
