package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openbarn/authgate/internal/auth/cache"
	"github.com/openbarn/authgate/internal/auth/cache/drivers/memory"
	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/service"
	"github.com/openbarn/authgate/internal/auth/store/drivers/sqlite"
	"github.com/openbarn/authgate/pkg/cryptox"
	"github.com/openbarn/authgate/pkg/jwtx"
)

const (
	testTransportSecret = "test-transport-secret"
	testAccessTTL       = 2 * time.Hour

	// Stable client identities for requests that must share (or must not
	// share) a fingerprint.
	browserIP = "203.0.113.10"
	browserUA = "test-browser/1.0"
	mobileIP  = "203.0.113.20"
	mobileUA  = "test-mobile/1.0"
)

// dropMail accepts every dispatch so handler tests never touch SMTP.
type dropMail struct {
	mu   sync.Mutex
	sent int
}

func (m *dropMail) Send(ctx context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	return nil
}

func (m *dropMail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// testRig assembles the full router the way the app does at startup, on a
// memory cache and an in-memory sqlite store.
type testRig struct {
	Router *Router
	Cache  *memory.Cache
	Store  *sqlite.Store
	Mail   *dropMail
	Signer jwtx.Signer

	Codes       *service.VerifyCodeService
	Tokens      *service.TokenService
	Credentials *service.CredentialService
	Qr          *service.QrSessionService
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	pem, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test-key", pem)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := jwtx.NewCommonEdDSA(keys, "authgate-test")

	mem := memory.New()
	mailbox := &dropMail{}

	codes := &service.VerifyCodeService{Cache: mem, Mail: mailbox}
	tokens := &service.TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Store:      st,
		Issuer:     "authgate-test",
		AccessTTL:  testAccessTTL,
		RefreshTTL: 30 * 24 * time.Hour,
	}
	creds := &service.CredentialService{
		Store:           st,
		Codes:           codes,
		Directory:       &service.StoreDirectory{Store: st},
		Tokens:          tokens,
		TransportSecret: testTransportSecret,
	}
	qr := &service.QrSessionService{Cache: mem, Store: st, Tokens: tokens}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(keys, "test", st, mem, logger)
	router.VerifyCodeService = codes
	router.CredentialService = creds
	router.QrSessionService = qr
	router.TokenService = tokens
	router.ApplyRoutes(testAccessTTL, false)

	return &testRig{
		Router:      router,
		Cache:       mem,
		Store:       st,
		Mail:        mailbox,
		Signer:      signer,
		Codes:       codes,
		Tokens:      tokens,
		Credentials: creds,
		Qr:          qr,
	}
}

// envelope mirrors the response body shape with the content left raw so
// each test can decode it into its own type.
type envelope struct {
	Status int `json:"status"`
	Data   struct {
		Content json.RawMessage `json:"content"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	} `json:"data"`
}

// asBrowser pins the request to the web client fingerprint.
func asBrowser(r *http.Request) {
	r.Header.Set("X-Forwarded-For", browserIP)
	r.Header.Set("User-Agent", browserUA)
}

// asMobile pins the request to the mobile client fingerprint.
func asMobile(r *http.Request) {
	r.Header.Set("X-Forwarded-For", mobileIP)
	r.Header.Set("User-Agent", mobileUA)
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// post runs a JSON action against the router and decodes the envelope.
func (rig *testRig) post(t *testing.T, path string, body any, mods ...func(*http.Request)) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, mod := range mods {
		mod(req)
	}

	rr := httptest.NewRecorder()
	rig.Router.ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	return rr, env
}

func (rig *testRig) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	rig.Router.ServeHTTP(rr, req)
	return rr
}

func decodeContent(t *testing.T, env envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data.Content, v))
}

// responseCookies parses the Set-Cookie headers of a recorded response.
func responseCookies(rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range (&http.Response{Header: rr.Header()}).Cookies() {
		out[c.Name] = c
	}
	return out
}

// liveCode reads the code currently cached for the pair.
func (rig *testRig) liveCode(t *testing.T, email string, purpose domain.Purpose) string {
	t.Helper()
	code, err := rig.Cache.Get(context.Background(), cache.VerifyCodeKey(email, purpose))
	require.NoError(t, err)
	return code
}

// issueCode issues a code through the service, bypassing the transport
// rate limits so tests spend their request budget on the action under test.
func (rig *testRig) issueCode(t *testing.T, email string, purpose domain.Purpose) string {
	t.Helper()
	require.NoError(t, rig.Codes.Issue(context.Background(), email, purpose))
	return rig.liveCode(t, email, purpose)
}

func encryptPassword(t *testing.T, password string) string {
	t.Helper()
	blob, err := cryptox.EncryptPassword(password, testTransportSecret)
	require.NoError(t, err)
	return blob
}

// registerUser provisions a credential directly through the service layer.
func (rig *testRig) registerUser(t *testing.T, email, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	code := rig.issueCode(t, email, domain.PurposeRegister)
	require.NoError(t, rig.Credentials.Register(ctx, email, code, encryptPassword(t, password), "tester"))

	u, err := rig.Store.Users().GetUserByEmail(ctx, email)
	require.NoError(t, err)
	return u
}

// loginPair runs a service-level login and returns the issued pair, for
// tests that need valid tokens without spending HTTP requests.
func (rig *testRig) loginPair(t *testing.T, email, password string) *domain.TokenPair {
	t.Helper()
	ctx := context.Background()

	code := rig.issueCode(t, email, domain.PurposeLogin)
	pair, err := rig.Credentials.Login(ctx, email, code, encryptPassword(t, password))
	require.NoError(t, err)
	return pair
}

// expiredAccessToken signs a structurally valid token whose expiry is in
// the past.
func (rig *testRig) expiredAccessToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwtx.NewAccessClaims(userID, "sess-expired", "old@example.com",
		-time.Minute, "authgate-test", time.Now().Add(-time.Hour))
	token, err := rig.Signer.Sign(claims)
	require.NoError(t, err)
	return token
}
