package domain

import "regexp"

// Purpose scopes a verification code to the flow that requested it. A code
// issued for one purpose never verifies under another.
type Purpose string

const (
	PurposeLogin    Purpose = "login"
	PurposeRegister Purpose = "register"
	PurposeForget   Purpose = "forget"
	PurposeUpdate   Purpose = "update"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegister, PurposeForget, PurposeUpdate:
		return true
	}
	return false
}

var emailRx = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailRx.MatchString(s)
}
