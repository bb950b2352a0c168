package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/openbarn/authgate/internal/auth/cache"
	"github.com/openbarn/authgate/internal/auth/service"
	"github.com/openbarn/authgate/internal/auth/store"
	"github.com/openbarn/authgate/pkg/httpx"
	"github.com/openbarn/authgate/pkg/jwtx"
	"github.com/openbarn/authgate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers and owns the action
// table the interceptor enforces.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache cache.Cache

	VerifyCodeService *service.VerifyCodeService
	CredentialService *service.CredentialService
	QrSessionService  *service.QrSessionService
	TokenService      *service.TokenService

	interceptor *Interceptor
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	ch cache.Cache,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        ch,
		logger:       logger,
	}
}

// ApplyRoutes registers every action plus the system endpoints, then builds
// the global middleware chain: request logging outermost, the auth
// interceptor just inside it.
func (r *Router) ApplyRoutes(accessTTL time.Duration, secureCookies bool) {
	r.interceptor = &Interceptor{
		Actions:   make(map[string]ActionMeta),
		Resolver:  r.TokenService,
		AccessTTL: accessTTL,
		Secure:    secureCookies,
	}

	r.registerCredentials()
	r.registerTokens()
	r.registerQrCode()
	r.registerSystem()

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.interceptor.Middleware(r.Mux),
	}
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// action registers a handler under pattern, records its auth requirement in
// the interceptor's table, and applies the route's rate limit profile.
func (r *Router) action(pattern, name string, requiresAuth bool, h http.Handler, limit httpx.RateLimitConfig) {
	r.interceptor.Actions[pattern] = ActionMeta{Name: name, RequiresAuth: requiresAuth}
	r.Mux.Handle(pattern, httpx.Chain(h, httpx.RateLimitByIP(limit)))
}

func (r *Router) registerCredentials() {
	// Brute-force surfaces get the strict profile.
	r.action("POST /v1/verifyCode", "verifyCode", false,
		&VerifyCodeHandler{Codes: r.VerifyCodeService}, httpx.StrictLimit)
	r.action("POST /v1/register", "register", false,
		&RegisterHandler{Credentials: r.CredentialService}, httpx.StrictLimit)
	r.action("POST /v1/login", "login", false,
		&LoginHandler{Credentials: r.CredentialService}, httpx.StrictLimit)
	r.action("POST /v1/forgetPassword", "forgetPassword", false,
		&ForgetPasswordHandler{Credentials: r.CredentialService}, httpx.StrictLimit)
	r.action("POST /v1/updatePassword", "updatePassword", true,
		&UpdatePasswordHandler{Credentials: r.CredentialService}, httpx.StrictLimit)
}

func (r *Router) registerTokens() {
	r.action("POST /v1/refreshToken", "refreshToken", false,
		&RefreshTokenHandler{Tokens: r.TokenService}, httpx.ModerateLimit)
	r.action("POST /v1/logout", "logout", true,
		&LogoutHandler{Tokens: r.TokenService}, httpx.ModerateLimit)
	r.action("POST /v1/resolveToken", "resolveToken", false,
		&ResolveTokenHandler{Tokens: r.TokenService}, httpx.LenientLimit)
}

func (r *Router) registerQrCode() {
	// Session creation is additionally bounded by the per-IP cache counter
	// inside the service; the transport limit here is the first gate.
	r.action("POST /v1/qrcode/getKey", "qrcode.getKey", false,
		&QrGetKeyHandler{Qr: r.QrSessionService}, httpx.ModerateLimit)
	r.action("POST /v1/qrcode/status", "qrcode.status", false,
		&QrStatusHandler{Qr: r.QrSessionService}, httpx.LenientLimit)
	r.action("POST /v1/qrcode/scan", "qrcode.scan", true,
		&QrScanHandler{Qr: r.QrSessionService}, httpx.ModerateLimit)
	r.action("POST /v1/qrcode/confirm", "qrcode.confirm", true,
		&QrConfirmHandler{Qr: r.QrSessionService}, httpx.ModerateLimit)
	r.action("POST /v1/qrcode/cancel", "qrcode.cancel", true,
		&QrCancelHandler{Qr: r.QrSessionService}, httpx.ModerateLimit)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit)))

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit)))

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit)))
}
