package domain

import (
	"net"
	"strings"
	"time"
)

// DomainActivation binds a license to one deployment hostname.
type DomainActivation struct {
	ID          int64
	LicenseID   int64
	Domain      string
	Active      bool
	ActivatedAt time.Time
	Context     map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActivationResult reports the outcome of an activation request.
type ActivationResult struct {
	Activation      DomainActivation
	Reactivated     bool
	ActivationCount int64
	ActiveDomains   int
	// DevelopmentHost is set when the domain was authorized by policy without consuming a slot.
	DevelopmentHost bool
}

// CanonicalDomain lowercases the host and strips scheme, credentials, path, port and trailing dot.
func CanonicalDomain(raw string) string {
	host := strings.TrimSpace(strings.ToLower(raw))
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.LastIndex(host, "@"); idx >= 0 {
		host = host[idx+1:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(host, ".")
}

var developmentSuffixes = []string{".test", ".local", ".localhost", ".invalid", ".example"}

// IsDevelopmentHost reports whether the canonical domain points at a local or reserved development host.
func IsDevelopmentHost(domain string) bool {
	switch domain {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	for _, suffix := range developmentSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return true
		}
	}
	return false
}

// MergeContext returns a copy of base overlaid with update.
func MergeContext(base, update map[string]any) map[string]any {
	if len(base) == 0 && len(update) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}
