package models

import "strings"

// Identity is a monitored email address.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// NormalizeEmail trims surrounding whitespace. Case is preserved because the
// roster is the source of truth for how an address is displayed.
func NormalizeEmail(raw string) string {
	return strings.TrimSpace(raw)
}
