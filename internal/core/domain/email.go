package domain

import (
	"regexp"
	"strings"
)

const maxEmailLength = 254

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether an already normalized address has the
// local@domain.tld shape and fits the length limit.
func ValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}
