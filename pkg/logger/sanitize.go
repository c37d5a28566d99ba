package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g. "a***@e***.com").
// Credentials are looked up by email in the reset flow, so raw addresses
// never go to the logs.
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	local := parts[0]
	domain := parts[1]

	if len(local) > 1 {
		local = string(local[0]) + strings.Repeat("*", len(local)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return local + "@" + domain
}

// SanitizeQueryString reports whether a raw query string carries parameters
// that must not be logged. Reset tokens arrive in request bodies, but a
// client that puts one in a query string still must not leak it.
func SanitizeQueryString(rawQuery string) bool {
	sensitive := []string{
		"password",
		"token",
		"secret",
		"email",
		"auth",
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitive {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
