package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/pkg/httpx"
	"github.com/openbarn/authgate/pkg/slogx"
)

// Session cookie names. Both are HttpOnly and SameSite=Strict; the access
// cookie is additionally bounded to the access token lifetime.
const (
	CookieAccessToken  = "ACCESS_TOKEN"
	CookieRefreshToken = "REFRESH_TOKEN"
)

// TokenResolver resolves an access token to an identity.
type TokenResolver interface {
	Resolve(token string) (domain.Identity, error)
}

// ActionMeta is the per-route metadata the interceptor consults before
// dispatch. Keyed by the mux pattern the route was registered under.
type ActionMeta struct {
	Name         string
	RequiresAuth bool
}

// Interceptor fronts every routed action. Before dispatch it decides from
// the action table whether a resolved identity is required, extracts and
// resolves the token, and attaches the identity to the request context. On
// the way out it persists freshly issued token pairs as session cookies and
// clears them on logout.
type Interceptor struct {
	Actions   map[string]ActionMeta
	Resolver  TokenResolver
	AccessTTL time.Duration

	// Secure marks the session cookies Secure; off only for local dev.
	Secure bool
}

// sink collects what a handler wants done to the session cookies. It is
// consulted just before the response headers are flushed.
type sink struct {
	pair  *domain.TokenPair
	clear bool
}

type sinkKey struct{}

// SetSessionTokens asks the interceptor to persist the pair as session
// cookies when the response goes out. Call before writing the body.
func SetSessionTokens(ctx context.Context, pair *domain.TokenPair) {
	if s, ok := ctx.Value(sinkKey{}).(*sink); ok {
		s.pair = pair
	}
}

// ClearSessionTokens asks the interceptor to expire both session cookies.
func ClearSessionTokens(ctx context.Context) {
	if s, ok := ctx.Value(sinkKey{}).(*sink); ok {
		s.clear = true
	}
}

// Middleware returns the interceptor as a chainable middleware. mux is the
// router the request will be dispatched to; it is consulted (not invoked)
// to learn which pattern the request matches.
func (i *Interceptor) Middleware(mux *http.ServeMux) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			_, pattern := mux.Handler(r)
			meta := i.Actions[pattern]

			s := &sink{}
			ctx = context.WithValue(ctx, sinkKey{}, s)

			if meta.RequiresAuth {
				token, ok := extractToken(r)
				if !ok {
					writeErr(w, domain.ErrNotLoggedIn)
					return
				}

				identity, err := i.Resolver.Resolve(token)
				if err != nil {
					log.Info("token resolution failed", "action", meta.Name, "err", err)
					writeErr(w, err)
					return
				}
				ctx = contextWithIdentity(ctx, identity)
			}

			cw := &cookieWriter{ResponseWriter: w, interceptor: i, sink: s}
			next.ServeHTTP(cw, r.WithContext(ctx))
			cw.flushCookies()
		})
	}
}

// extractToken pulls the access token with cookie-before-header precedence.
func extractToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieAccessToken); err == nil && c.Value != "" {
		return c.Value, true
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")); token != "" {
			return token, true
		}
	}
	return "", false
}

func contextWithIdentity(ctx context.Context, id domain.Identity) context.Context {
	ctx = context.WithValue(ctx, httpx.CtxKeyUserID, id.UserID)
	ctx = context.WithValue(ctx, httpx.CtxKeySessionID, id.SessionID)
	ctx = context.WithValue(ctx, httpx.CtxKeyClaims, id)
	return ctx
}

// IdentityFromContext returns the identity attached by the interceptor.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(httpx.CtxKeyClaims).(domain.Identity)
	return id, ok
}

// cookieWriter delays nothing except the cookie decision: Set-Cookie
// headers must land before the first body byte, and handlers only populate
// the sink while producing that body.
type cookieWriter struct {
	http.ResponseWriter
	interceptor *Interceptor
	sink        *sink
	wrote       bool
}

func (cw *cookieWriter) WriteHeader(code int) {
	cw.flushCookies()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cookieWriter) Write(b []byte) (int, error) {
	cw.flushCookies()
	return cw.ResponseWriter.Write(b)
}

func (cw *cookieWriter) flushCookies() {
	if cw.wrote {
		return
	}
	cw.wrote = true

	switch {
	case cw.sink.clear:
		cw.setCookie(CookieAccessToken, "", -1)
		cw.setCookie(CookieRefreshToken, "", -1)
	case cw.sink.pair != nil:
		maxAge := int(cw.interceptor.AccessTTL.Seconds())
		if maxAge <= 0 {
			maxAge = int((2 * time.Hour).Seconds())
		}
		cw.setCookie(CookieAccessToken, cw.sink.pair.AccessToken, maxAge)
		cw.setCookie(CookieRefreshToken, cw.sink.pair.RefreshToken, 0)
	}
}

func (cw *cookieWriter) setCookie(name, value string, maxAge int) {
	http.SetCookie(cw.ResponseWriter, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cw.interceptor.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
