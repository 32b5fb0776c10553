package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/helpdesk/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig // nil keys on the peer address only
}

// LoginRateLimit limits login attempts per client IP. Account lockout
// covers guessing against one username; this covers spraying across many.
func LoginRateLimit(perMinute int, ipConfig *pkghttp.IPConfig) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 10
	}
	return RateLimitConfig{RequestsPerMinute: perMinute, IPConfig: ipConfig}
}

// SubmitRateLimit limits anonymous request submissions per client IP
func SubmitRateLimit(perMinute int, ipConfig *pkghttp.IPConfig) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 30
	}
	return RateLimitConfig{RequestsPerMinute: perMinute, IPConfig: ipConfig}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// The key is pkghttp.ExtractClientIP, so forwarding headers only count when
// the peer is one of the configured trusted proxies.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(ClientIPKey(config.IPConfig)),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

// ClientIPKey is an httprate key function over pkghttp.ExtractClientIP
func ClientIPKey(ipConfig *pkghttp.IPConfig) httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		return pkghttp.ExtractClientIP(r, ipConfig), nil
	}
}
