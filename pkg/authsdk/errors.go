package authsdk

import (
	"errors"
	"fmt"
)

// Envelope codes the service can return. Mirrors the server's taxonomy.
const (
	CodeOK                 = "OK"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeCodeMismatch       = "CODE_MISMATCH"
	CodeCredentialMismatch = "CREDENTIAL_MISMATCH"
	CodeSecurityBinding    = "SECURITY_BINDING"
	CodeIllegalTransition  = "ILLEGAL_TRANSITION"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotLoggedIn        = "USER_NOT_LOGGED_IN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTransient          = "SERVICE_ACTION_FAILED"
)

// APIError is any non-OK envelope, regardless of the transport status it
// rode in on.
type APIError struct {
	HTTPStatus int    // transport status (200 for business failures)
	Code       string // envelope code
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authsdk: %s: %s", e.Code, e.Message)
}

// ErrorCode returns the envelope code of err, or "" when err is not an
// *APIError.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsCode reports whether err is an *APIError carrying the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
