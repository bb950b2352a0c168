package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openbarn/authgate/internal/auth/cache"
	"github.com/openbarn/authgate/internal/auth/cache/drivers/memory"
	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/store/drivers/sqlite"
	"github.com/openbarn/authgate/pkg/cryptox"
	"github.com/openbarn/authgate/pkg/jwtx"
)

const testTransportSecret = "test-transport-secret"

// fakeMail records dispatched messages and can be told to fail.
type fakeMail struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  error
	delay time.Duration
}

type sentMail struct {
	Recipient string
	Subject   string
	Body      string
}

func (m *fakeMail) Send(ctx context.Context, recipient, subject, body string) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (m *fakeMail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// failingDirectory always refuses to create an identity.
type failingDirectory struct{}

func (failingDirectory) CreateIdentity(ctx context.Context, email, nickname string) (domain.User, error) {
	return domain.User{}, errors.New("directory down")
}

// testEnv wires the full service graph on a memory cache and an in-memory
// sqlite store, the same shape the app assembles at startup.
type testEnv struct {
	Cache       *memory.Cache
	Store       *sqlite.Store
	Mail        *fakeMail
	Codes       *VerifyCodeService
	Tokens      *TokenService
	Credentials *CredentialService
	Qr          *QrSessionService

	now time.Time // cache clock, moved by advance()
}

// advance moves the cache clock forward so TTL behaviour can be exercised
// without sleeping.
func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
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
	mailbox := &fakeMail{}

	codes := &VerifyCodeService{Cache: mem, Mail: mailbox}
	tokens := &TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Store:      st,
		Issuer:     "authgate-test",
		AccessTTL:  2 * time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
	}
	creds := &CredentialService{
		Store:           st,
		Codes:           codes,
		Directory:       &StoreDirectory{Store: st},
		Tokens:          tokens,
		TransportSecret: testTransportSecret,
	}
	qr := &QrSessionService{Cache: mem, Store: st, Tokens: tokens}

	env := &testEnv{
		Cache:       mem,
		Store:       st,
		Mail:        mailbox,
		Codes:       codes,
		Tokens:      tokens,
		Credentials: creds,
		Qr:          qr,
		now:         time.Unix(1700000000, 0).UTC(),
	}
	mem.SetClock(func() time.Time { return env.now })
	return env
}

// liveCode reads the code currently cached for the pair.
func (e *testEnv) liveCode(t *testing.T, email string, purpose domain.Purpose) string {
	t.Helper()
	code, err := e.Cache.Get(context.Background(), cache.VerifyCodeKey(email, purpose))
	require.NoError(t, err)
	return code
}

// issueCode issues and returns a code for the pair.
func (e *testEnv) issueCode(t *testing.T, email string, purpose domain.Purpose) string {
	t.Helper()
	require.NoError(t, e.Codes.Issue(context.Background(), email, purpose))
	return e.liveCode(t, email, purpose)
}

// encryptPassword produces the transport blob a client would submit.
func encryptPassword(t *testing.T, password string) string {
	t.Helper()
	blob, err := cryptox.EncryptPassword(password, testTransportSecret)
	require.NoError(t, err)
	return blob
}

// registerUser runs the full registration flow and returns the user.
func (e *testEnv) registerUser(t *testing.T, email, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	code := e.issueCode(t, email, domain.PurposeRegister)
	require.NoError(t, e.Credentials.Register(ctx, email, code, encryptPassword(t, password), "tester"))

	u, err := e.Store.Users().GetUserByEmail(ctx, email)
	require.NoError(t, err)
	return u
}
