package http

import (
	"net/http"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/service"
	"github.com/openbarn/authgate/pkg/slogx"
)

// RefreshTokenHandler serves POST /v1/refreshToken. The refresh token comes
// from the session cookie or, for non-browser clients, the body. The old
// token is dead after a successful exchange.
type RefreshTokenHandler struct {
	Tokens *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *RefreshTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)
	if token == "" {
		writeErr(w, domain.ErrNotLoggedIn)
		return
	}

	pair, err := h.Tokens.Refresh(r.Context(), token)
	if err != nil {
		writeErr(w, err)
		return
	}

	SetSessionTokens(r.Context(), pair)
	writeOK(w, pair, "token refreshed")
}

// LogoutHandler serves POST /v1/logout. Revokes the refresh token and clears
// both session cookies. Idempotent.
type LogoutHandler struct {
	Tokens *service.TokenService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if token := refreshTokenFromRequest(r); token != "" {
		if err := h.Tokens.Revoke(ctx, token); err != nil {
			log.Warn("refresh revoke on logout failed", "err", err)
		}
	}

	ClearSessionTokens(ctx)
	writeOK(w, nil, "logged out")
}

// ResolveTokenHandler serves POST /v1/resolveToken: the verification entry
// point other services call to turn an access token into an identity. The
// token itself is the input, so the route needs no prior authentication.
type ResolveTokenHandler struct {
	Tokens *service.TokenService
}

type resolveRequest struct {
	Token string `json:"token"`
}

func (h *ResolveTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if r.Body != nil {
		_ = decodeJSON(r, &req) // body optional; fall back to cookie/header
	}
	token := req.Token
	if token == "" {
		if extracted, ok := extractToken(r); ok {
			token = extracted
		}
	}
	if token == "" {
		writeErr(w, domain.ErrNotLoggedIn)
		return
	}

	identity, err := h.Tokens.Resolve(token)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, identity, "token resolved")
}

func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieRefreshToken); err == nil && c.Value != "" {
		return c.Value
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}
