package validation

import "regexp"

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether email looks like a deliverable address.
// Intentionally loose; real validation happens when the invite is sent.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}
