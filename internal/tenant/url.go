package tenant

import (
	"net"
	"net/url"
	"strings"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

// IsURLPermitted reports whether rawURL is on the tenant's allowed domains.
//
// Entries with a scheme ("https://example.com") must match scheme, host and
// port. Bare entries ("example.com") match the host exactly and wildcard
// entries ("*.example.com") match any subdomain of it.
func IsURLPermitted(t *domain.Tenant, rawURL string) bool {
	if t == nil || len(t.AllowedDomains) == 0 {
		return false
	}

	target, ok := parseTarget(rawURL)
	if !ok {
		return false
	}

	for _, allowed := range t.AllowedDomains {
		if matchDomain(strings.TrimSpace(allowed), target) {
			return true
		}
	}
	return false
}

type target struct {
	scheme string
	host   string
	port   string
}

func parseTarget(rawURL string) (target, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return target{}, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return target{}, false
	}
	return target{
		scheme: scheme,
		host:   strings.TrimSuffix(strings.ToLower(u.Hostname()), "."),
		port:   effectivePort(scheme, u.Port()),
	}, true
}

func matchDomain(pattern string, t target) bool {
	if pattern == "" {
		return false
	}

	if strings.Contains(pattern, "://") {
		origin, ok := parseTarget(pattern)
		if !ok {
			return false
		}
		return origin == t
	}

	pattern = strings.ToLower(pattern)
	if host, port, err := net.SplitHostPort(pattern); err == nil {
		if port != t.port {
			return false
		}
		pattern = host
	}
	pattern = strings.TrimSuffix(pattern, ".")

	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return suffix != "" && strings.HasSuffix(t.host, "."+suffix)
	}
	return pattern == t.host
}

func effectivePort(scheme, port string) string {
	if port != "" {
		return port
	}
	if scheme == "https" {
		return "443"
	}
	return "80"
}
