package util

import (
	"net/url"
	"strings"
)

// IsRedirectAllowed validates a caller-supplied post-login redirect target.
// Relative paths are always accepted, except protocol-relative and backslash
// forms. Absolute URLs must be http or https; when allowedHosts is non-empty
// the host must also equal one of its entries (case-insensitive, an entry
// with a port matches only that port). An empty target is never allowed.
func IsRedirectAllowed(redirectURL string, allowedHosts []string) bool {
	if redirectURL == "" {
		return false
	}

	// header injection
	if strings.ContainsAny(redirectURL, "\r\n") {
		return false
	}

	if strings.HasPrefix(redirectURL, "/") {
		return !strings.HasPrefix(redirectURL, "//") && !strings.Contains(redirectURL, "\\")
	}

	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	if len(allowedHosts) == 0 {
		return true
	}

	for _, allowed := range allowedHosts {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.EqualFold(allowed, parsed.Host) {
			return true
		}
		if !strings.Contains(allowed, ":") && strings.EqualFold(allowed, parsed.Hostname()) {
			return true
		}
	}
	return false
}
