package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/pkg/httpx"
)

// decodeJSON parses the request body into dst. A missing or malformed body
// is a validation failure, not a transport error.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", domain.ErrValidation)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed json body", domain.ErrValidation)
	}
	return nil
}

// clientFingerprint derives the browser binding from the request.
func clientFingerprint(r *http.Request) domain.ClientFingerprint {
	return domain.ClientFingerprint{
		IP:        httpx.IPKeyExtractor(r),
		UserAgent: r.UserAgent(),
	}
}
