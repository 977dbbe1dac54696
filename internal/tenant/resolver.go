package tenant

import (
	"net"
	"strings"
)

var reservedLabels = map[string]struct{}{
	"admin": {},
	"api":   {},
	"www":   {},
}

// ResolveSubdomain derives the tenant subdomain from a request host. Hosts with
// fewer than three labels, localhost-style hosts, IP literals and reserved
// platform labels carry no tenant.
func ResolveSubdomain(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return "", false
	}
	if strings.Contains(strings.ToLower(host), "localhost") {
		return "", false
	}

	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return "", false
	}
	candidate := labels[0]
	if candidate == "" {
		return "", false
	}
	if _, reserved := reservedLabels[strings.ToLower(candidate)]; reserved {
		return "", false
	}
	return candidate, true
}

// IsPlatformHost reports whether host addresses the platform itself (api., admin., apex).
func IsPlatformHost(host string) bool {
	_, ok := ResolveSubdomain(host)
	return !ok
}
