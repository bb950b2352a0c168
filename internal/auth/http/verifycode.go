package http

import (
	"net/http"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/service"
)

// VerifyCodeHandler serves POST /v1/verifyCode. Requesting a code that is
// still live succeeds without resending mail.
type VerifyCodeHandler struct {
	Codes *service.VerifyCodeService
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

func (h *VerifyCodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Codes.Issue(r.Context(), req.Email, domain.Purpose(req.Type)); err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, nil, "verification code sent")
}
