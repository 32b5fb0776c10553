package http

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers are believed
type IPConfig struct {
	TrustedProxies []string // CIDR ranges
	prefixes       []netip.Prefix
}

// NewIPConfig parses the trusted proxy ranges up front and rejects bad CIDRs
func NewIPConfig(cidrs []string) (*IPConfig, error) {
	cfg := &IPConfig{TrustedProxies: cidrs}
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		cfg.prefixes = append(cfg.prefixes, prefix)
	}
	return cfg, nil
}

// ExtractClientIP returns the address used for audit logs and login throttling.
// X-Forwarded-For and X-Real-IP are honoured only when the peer is a trusted proxy.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote := remoteHost(r)

	if config == nil || !config.trusts(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			candidate = strings.TrimSpace(candidate)
			if _, err := netip.ParseAddr(candidate); err == nil {
				return candidate
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}

	return remote
}

func (c *IPConfig) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	prefixes := c.prefixes
	if prefixes == nil {
		// IPConfig built as a literal; parse lazily and skip bad ranges
		for _, cidr := range c.TrustedProxies {
			if p, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err == nil {
				prefixes = append(prefixes, p)
			}
		}
	}

	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
