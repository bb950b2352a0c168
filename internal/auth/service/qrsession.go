package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openbarn/authgate/internal/auth/cache"
	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/store"
	"github.com/openbarn/authgate/pkg/cryptox"
	"github.com/openbarn/authgate/pkg/idx"
	"github.com/openbarn/authgate/pkg/slogx"
)

const (
	// DefaultSessionTTL is the life of a QR session from creation.
	DefaultSessionTTL = 120 * time.Second

	// DefaultConfirmTTL is the retention window after a terminal
	// transition: long enough for one poll round-trip, short enough that
	// a confirmed login cannot be harvested later.
	DefaultConfirmTTL = 30 * time.Second

	// DefaultCreateLimit is how many sessions one IP may create per
	// rolling window.
	DefaultCreateLimit = 5

	// DefaultCreateWindow is that rolling window.
	DefaultCreateWindow = time.Hour
)

// QrSessionService drives the cross-device login state machine:
// PENDING -> SCANNED -> CONFIRMED, with PENDING|SCANNED -> CANCELLED.
// Sessions live entirely in the cache; a missing entry reads as EXPIRED.
// Every transition is a compare-and-swap on the status key so racing
// mutations cannot both win.
type QrSessionService struct {
	Cache  cache.Cache
	Store  store.Store
	Tokens *TokenService

	SessionTTL   time.Duration
	ConfirmTTL   time.Duration
	CreateLimit  int64
	CreateWindow time.Duration
}

// QrCreateResult is returned by Create: the opaque session id the browser
// renders as a QR code, and its lifetime.
type QrCreateResult struct {
	ID        string `json:"key"`
	ExpiresIn int    `json:"expire"`
}

// QrPollResult carries the observed status, and on CONFIRMED the bound
// user plus a freshly issued token pair.
type QrPollResult struct {
	Status domain.QrStatus
	UserID string
	Tokens *domain.TokenPair
}

// Create opens a PENDING session bound to the creating browser. Rate
// limited per originating IP before any state is written.
func (s *QrSessionService) Create(ctx context.Context, fp domain.ClientFingerprint) (*QrCreateResult, error) {
	l := slogx.FromContext(ctx)

	n, err := s.Cache.Incr(ctx, cache.ScanAttemptsKey(fp.IP), s.createWindow())
	if err != nil {
		return nil, fmt.Errorf("%w: rate counter: %w", domain.ErrTransient, err)
	}
	if n > s.createLimit() {
		l.Warn("qr session creation rate limited", "ip", fp.IP, "count", n)
		return nil, fmt.Errorf("%w: too many qr sessions", domain.ErrRateLimited)
	}

	id, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("%w: generate session id: %w", domain.ErrTransient, err)
	}

	client, err := json.Marshal(fp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	ttl := s.sessionTTL()
	if err := s.Cache.Set(ctx, cache.QrStatusKey(id), string(domain.StatusPending), ttl); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	if err := s.Cache.Set(ctx, cache.QrClientKey(id), string(client), ttl); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	return &QrCreateResult{ID: id, ExpiresIn: int(ttl.Seconds())}, nil
}

// Poll reports the session status to the creating browser. The stored
// client fingerprint must match the polling request, otherwise status leaks
// to a different browser. On CONFIRMED exactly one poll wins the user
// payload (GetDel), issues the token pair, and clears the session; a
// slightly late concurrent poll observes EXPIRED.
func (s *QrSessionService) Poll(ctx context.Context, id string, fp domain.ClientFingerprint) (*QrPollResult, error) {
	l := slogx.FromContext(ctx)

	status, err := s.Cache.Get(ctx, cache.QrStatusKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return &QrPollResult{Status: domain.StatusExpired}, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	stored, err := s.clientFingerprint(ctx, id)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			// The binding outlived nothing: a session without its creating
			// browser on record is elapsed, whatever the status key says.
			return &QrPollResult{Status: domain.StatusExpired}, nil
		}
		return nil, err
	}
	if stored.IP != fp.IP || stored.UserAgent != fp.UserAgent {
		l.Warn("qr poll fingerprint mismatch", "session", id)
		return nil, fmt.Errorf("%w: client fingerprint mismatch", domain.ErrSecurityBinding)
	}

	if domain.QrStatus(status) != domain.StatusConfirmed {
		return &QrPollResult{Status: domain.QrStatus(status)}, nil
	}

	userID, err := s.Cache.GetDel(ctx, cache.QrUserKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			// Another poll already claimed the payload.
			return &QrPollResult{Status: domain.StatusExpired}, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	// The payload is consumed; a failure from here on would lose the
	// confirmed login, so put it back and let the browser retry.
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		s.restoreUserBinding(ctx, id, userID)
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	pair, err := s.Tokens.Issue(ctx, user.ID, user.Email)
	if err != nil {
		s.restoreUserBinding(ctx, id, userID)
		return nil, err
	}

	// Idempotent cleanup; a concurrent poll deleting the same keys is fine.
	if err := s.Cache.Delete(ctx, cache.QrStatusKey(id), cache.QrClientKey(id), cache.QrDeviceKey(id)); err != nil {
		l.Warn("qr session cleanup failed", "session", id, "err", err)
	}

	l.Info("qr login confirmed and collected", "user_id", user.ID)
	return &QrPollResult{Status: domain.StatusConfirmed, UserID: user.ID, Tokens: pair}, nil
}

// Scan moves PENDING to SCANNED and records the scanning device. A replay
// of the same scan within the TTL succeeds without effect; any other source
// state is an illegal transition.
func (s *QrSessionService) Scan(ctx context.Context, id string, fp domain.DeviceFingerprint, scanningUserID string) error {
	ttl := s.sessionTTL()

	ok, err := s.Cache.CompareAndSwap(ctx,
		cache.QrStatusKey(id), string(domain.StatusPending), string(domain.StatusScanned), ttl)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	if !ok {
		return s.scanReplayOrIllegal(ctx, id, fp, scanningUserID)
	}

	binding, err := json.Marshal(domain.DeviceBinding{DeviceFingerprint: fp, UserID: scanningUserID})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	if err := s.Cache.Set(ctx, cache.QrDeviceKey(id), string(binding), ttl); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	s.touchClientBinding(ctx, id, ttl)
	return nil
}

// Confirm moves SCANNED to CONFIRMED after verifying the confirming device
// is the one that scanned. Binds the user for one poll round-trip, drops
// the device record, and leaves a durable audit row.
func (s *QrSessionService) Confirm(ctx context.Context, id string, fp domain.DeviceFingerprint, confirmingUserID string) error {
	l := slogx.FromContext(ctx)

	binding, err := s.deviceBinding(ctx, id)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			// Device record gone: either expired or already confirmed.
			// A replayed confirm of a CONFIRMED session is a no-op.
			if s.statusIs(ctx, id, domain.StatusConfirmed) {
				return nil
			}
			return fmt.Errorf("%w: no scanned session", domain.ErrIllegalTransition)
		}
		return err
	}

	// Field-by-field: deviceId against deviceId, deviceType against
	// deviceType. Crossing them would let any device of the right model
	// confirm someone else's session.
	if binding.DeviceID != fp.DeviceID || binding.DeviceType != fp.DeviceType {
		l.Warn("qr confirm device mismatch", "session", id)
		return fmt.Errorf("%w: device fingerprint mismatch", domain.ErrSecurityBinding)
	}

	ok, err := s.Cache.CompareAndSwap(ctx,
		cache.QrStatusKey(id), string(domain.StatusScanned), string(domain.StatusConfirmed), s.confirmTTL())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	if !ok {
		if s.statusIs(ctx, id, domain.StatusConfirmed) {
			return nil
		}
		return fmt.Errorf("%w: session not in SCANNED", domain.ErrIllegalTransition)
	}

	if err := s.Cache.Set(ctx, cache.QrUserKey(id), confirmingUserID, s.confirmTTL()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	s.touchClientBinding(ctx, id, s.confirmTTL())
	if err := s.Cache.Delete(ctx, cache.QrDeviceKey(id)); err != nil {
		l.Warn("qr device record cleanup failed", "session", id, "err", err)
	}

	s.writeAudit(ctx, id, *binding, confirmingUserID)

	l.Info("qr session confirmed", "session", id, "user_id", confirmingUserID)
	return nil
}

// Cancel aborts a PENDING or SCANNED session. From SCANNED, only the
// device that scanned may cancel.
func (s *QrSessionService) Cancel(ctx context.Context, id string, fp domain.DeviceFingerprint, cancellingUserID string) error {
	l := slogx.FromContext(ctx)

	status, err := s.Cache.Get(ctx, cache.QrStatusKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return fmt.Errorf("%w: session expired", domain.ErrIllegalTransition)
		}
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	switch domain.QrStatus(status) {
	case domain.StatusCancelled:
		return nil // replay
	case domain.StatusPending:
		// No device bound yet; nothing to verify against.
	case domain.StatusScanned:
		binding, err := s.deviceBinding(ctx, id)
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			return err
		}
		if binding != nil && (binding.DeviceID != fp.DeviceID || binding.DeviceType != fp.DeviceType) {
			l.Warn("qr cancel device mismatch", "session", id)
			return fmt.Errorf("%w: device fingerprint mismatch", domain.ErrSecurityBinding)
		}
	default:
		return fmt.Errorf("%w: cannot cancel from %s", domain.ErrIllegalTransition, status)
	}

	ok, err := s.Cache.CompareAndSwap(ctx,
		cache.QrStatusKey(id), status, string(domain.StatusCancelled), s.confirmTTL())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	if !ok {
		// Lost the race to another transition; re-check for a cancel replay.
		if s.statusIs(ctx, id, domain.StatusCancelled) {
			return nil
		}
		return fmt.Errorf("%w: session moved on", domain.ErrIllegalTransition)
	}

	s.touchClientBinding(ctx, id, s.confirmTTL())
	if err := s.Cache.Delete(ctx, cache.QrDeviceKey(id)); err != nil {
		l.Warn("qr device record cleanup failed", "session", id, "err", err)
	}
	return nil
}

func (s *QrSessionService) clientFingerprint(ctx context.Context, id string) (domain.ClientFingerprint, error) {
	raw, err := s.Cache.Get(ctx, cache.QrClientKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return domain.ClientFingerprint{}, cache.ErrMiss
		}
		return domain.ClientFingerprint{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	var fp domain.ClientFingerprint
	if err := json.Unmarshal([]byte(raw), &fp); err != nil {
		return domain.ClientFingerprint{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return fp, nil
}

func (s *QrSessionService) deviceBinding(ctx context.Context, id string) (*domain.DeviceBinding, error) {
	raw, err := s.Cache.Get(ctx, cache.QrDeviceKey(id))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	var b domain.DeviceBinding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return &b, nil
}

// touchClientBinding gives the client fingerprint the same remaining life
// as the status key it sits next to. Status transitions reset the status
// TTL; without this the binding written at Create could expire first and a
// live session would become unreadable to its own browser.
func (s *QrSessionService) touchClientBinding(ctx context.Context, id string, ttl time.Duration) {
	l := slogx.FromContext(ctx)

	raw, err := s.Cache.Get(ctx, cache.QrClientKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			l.Warn("qr client binding refresh failed", "session", id, "err", err)
		}
		return
	}
	if err := s.Cache.Set(ctx, cache.QrClientKey(id), raw, ttl); err != nil {
		l.Warn("qr client binding refresh failed", "session", id, "err", err)
	}
}

// restoreUserBinding puts a consumed confirmed-user payload back so the
// browser can poll again after a transient failure.
func (s *QrSessionService) restoreUserBinding(ctx context.Context, id, userID string) {
	if err := s.Cache.Set(ctx, cache.QrUserKey(id), userID, s.confirmTTL()); err != nil {
		slogx.FromContext(ctx).Warn("qr user binding restore failed", "session", id, "err", err)
	}
}

func (s *QrSessionService) scanReplayOrIllegal(ctx context.Context, id string, fp domain.DeviceFingerprint, userID string) error {
	if !s.statusIs(ctx, id, domain.StatusScanned) {
		return fmt.Errorf("%w: session not in PENDING", domain.ErrIllegalTransition)
	}
	binding, err := s.deviceBinding(ctx, id)
	if err != nil || binding.DeviceID != fp.DeviceID || binding.DeviceType != fp.DeviceType || binding.UserID != userID {
		return fmt.Errorf("%w: session already scanned", domain.ErrIllegalTransition)
	}
	return nil // same device replaying its own scan
}

func (s *QrSessionService) statusIs(ctx context.Context, id string, want domain.QrStatus) bool {
	status, err := s.Cache.Get(ctx, cache.QrStatusKey(id))
	return err == nil && domain.QrStatus(status) == want
}

// writeAudit records the confirmation durably. Best effort: the login is
// already confirmed, so an audit failure is logged rather than surfaced.
func (s *QrSessionService) writeAudit(ctx context.Context, id string, binding domain.DeviceBinding, userID string) {
	l := slogx.FromContext(ctx)

	clientIP := ""
	if fp, err := s.clientFingerprint(ctx, id); err == nil {
		clientIP = fp.IP
	}

	audit := domain.ScanAudit{
		ID:          idx.New().String(),
		SessionID:   id,
		UserID:      userID,
		DeviceID:    binding.DeviceID,
		DeviceType:  binding.DeviceType,
		ClientIP:    clientIP,
		ConfirmedAt: time.Now().UTC(),
	}
	if err := s.Store.ScanAudits().CreateScanAudit(ctx, audit); err != nil {
		l.Error("scan audit write failed", "session", id, "err", err)
	}
}

func (s *QrSessionService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

func (s *QrSessionService) confirmTTL() time.Duration {
	if s.ConfirmTTL > 0 {
		return s.ConfirmTTL
	}
	return DefaultConfirmTTL
}

func (s *QrSessionService) createLimit() int64 {
	if s.CreateLimit > 0 {
		return s.CreateLimit
	}
	return DefaultCreateLimit
}

func (s *QrSessionService) createWindow() time.Duration {
	if s.CreateWindow > 0 {
		return s.CreateWindow
	}
	return DefaultCreateWindow
}
