package http

import (
	"errors"
	"net/http"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/pkg/httpx"
)

// Envelope is the uniform action response: {status, data:{content, message,
// code}}. Business failures ride a 200 with a distinguishing code, so
// clients must key off data.code rather than the transport status.
type Envelope struct {
	Status int          `json:"status"`
	Data   EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Content any    `json:"content"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeOK(w http.ResponseWriter, content any, message string) {
	httpx.WriteJSON(w, http.StatusOK, Envelope{
		Status: http.StatusOK,
		Data:   EnvelopeData{Content: content, Message: message, Code: domain.CodeOK},
	})
}

// writeErr renders err per the error taxonomy: business failures stay 200,
// rate limiting is 429, auth failures 401, infrastructure 5xx with a
// generic message so internals never leak.
func writeErr(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)

	status := http.StatusOK
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotLoggedIn),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case code == domain.CodeTransient:
		status = http.StatusInternalServerError
		message = "service temporarily unavailable"
	}

	httpx.WriteJSON(w, status, Envelope{
		Status: status,
		Data:   EnvelopeData{Message: message, Code: code},
	})
}
