package http

import (
	"net/http"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/service"
)

// RegisterHandler serves POST /v1/register.
type RegisterHandler struct {
	Credentials *service.CredentialService
}

type registerRequest struct {
	Email      string `json:"email"`
	VerifyCode string `json:"verifyCode"`
	Password   string `json:"password"` // transport-encrypted blob
	Nickname   string `json:"nickname"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Credentials.Register(r.Context(), req.Email, req.VerifyCode, req.Password, req.Nickname); err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, nil, "registered")
}

// LoginHandler serves POST /v1/login. A successful login returns the token
// pair in the body and persists it as session cookies.
type LoginHandler struct {
	Credentials *service.CredentialService
}

type loginRequest struct {
	Email      string `json:"email"`
	VerifyCode string `json:"verifyCode"`
	Password   string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	pair, err := h.Credentials.Login(r.Context(), req.Email, req.VerifyCode, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}

	SetSessionTokens(r.Context(), pair)
	writeOK(w, pair, "logged in")
}

// ForgetPasswordHandler serves POST /v1/forgetPassword. Unauthenticated;
// mailbox possession is the proof.
type ForgetPasswordHandler struct {
	Credentials *service.CredentialService
}

type passwordRequest struct {
	Email      string `json:"email"`
	VerifyCode string `json:"verifyCode"`
	Password   string `json:"password"`
}

func (h *ForgetPasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Credentials.ForgotPassword(r.Context(), req.Email, req.VerifyCode, req.Password); err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, nil, "password reset")
}

// UpdatePasswordHandler serves POST /v1/updatePassword. Requires a resolved
// identity; the change applies to the caller's own credential.
type UpdatePasswordHandler struct {
	Credentials *service.CredentialService
}

type updatePasswordRequest struct {
	VerifyCode string `json:"verifyCode"`
	Password   string `json:"password"`
}

func (h *UpdatePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, domain.ErrNotLoggedIn)
		return
	}

	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Credentials.UpdatePassword(r.Context(), identity, req.VerifyCode, req.Password); err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, nil, "password updated")
}
