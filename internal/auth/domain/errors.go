package domain

import "errors"

// Sentinel errors for every business failure kind the subsystem can produce.
// Services wrap these with fmt.Errorf("%w: ...") for detail; the HTTP layer
// matches with errors.Is and renders the corresponding envelope code.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrCodeMismatch       = errors.New("verification code mismatch")
	ErrCredentialMismatch = errors.New("credential mismatch")
	ErrSecurityBinding    = errors.New("security binding mismatch")
	ErrIllegalTransition  = errors.New("illegal state transition")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotLoggedIn        = errors.New("user not logged in")
	ErrTokenExpired       = errors.New("token expired")
	ErrTransient          = errors.New("service action failed")
)

// Envelope codes carried in the response body. Business failures ride a
// 200-level transport status, so clients key off these instead.
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

// ErrorCode maps an error chain to its envelope code. More specific
// sentinels are checked before the generic ones they relate to.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotLoggedIn):
		return CodeNotLoggedIn
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrCodeMismatch):
		return CodeCodeMismatch
	case errors.Is(err, ErrCredentialMismatch):
		return CodeCredentialMismatch
	case errors.Is(err, ErrSecurityBinding):
		return CodeSecurityBinding
	case errors.Is(err, ErrIllegalTransition):
		return CodeIllegalTransition
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeTransient
	}
}
