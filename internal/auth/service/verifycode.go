package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/openbarn/authgate/internal/auth/cache"
	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/mail"
	"github.com/openbarn/authgate/pkg/slogx"
)

const (
	// DefaultCodeTTL is how long an issued verification code stays live.
	DefaultCodeTTL = 5 * time.Minute

	// DefaultMailTimeout bounds the wait on mail dispatch so a slow SMTP
	// hop never blocks code issuance past it.
	DefaultMailTimeout = 10 * time.Second
)

// VerifyCodeService issues, checks, and consumes one-time codes tied to an
// (email, purpose) pair. At most one code is live per pair at a time.
type VerifyCodeService struct {
	Cache cache.Cache
	Mail  mail.Dispatcher

	CodeTTL     time.Duration
	MailTimeout time.Duration
}

// Issue generates and mails a 6-digit code. A still-live code for the same
// pair is an idempotent success: nothing is resent and its TTL is untouched,
// which keeps a retry-happy client from flooding the mailbox.
func (s *VerifyCodeService) Issue(ctx context.Context, email string, purpose domain.Purpose) error {
	l := slogx.FromContext(ctx)

	if !purpose.Valid() {
		return fmt.Errorf("%w: unknown purpose %q", domain.ErrValidation, purpose)
	}
	if !domain.ValidEmail(email) {
		return fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}

	code, err := randomCode()
	if err != nil {
		return fmt.Errorf("%w: generate code: %w", domain.ErrTransient, err)
	}

	// SetNX makes "already pending" detection race-free: two concurrent
	// issues for the same pair agree on a single stored code.
	stored, err := s.Cache.SetNX(ctx, cache.VerifyCodeKey(email, purpose), code, s.codeTTL())
	if err != nil {
		return fmt.Errorf("%w: cache write: %w", domain.ErrTransient, err)
	}
	if !stored {
		l.Debug("verification code still pending, not resending", "purpose", purpose)
		return nil
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout())
	defer cancel()

	subject, body := codeMessage(purpose, code)
	if err := s.Mail.Send(mailCtx, email, subject, body); err != nil {
		// The cached code stays valid; the client may retry issue and the
		// idempotent path keeps the same code while mail recovers.
		l.Warn("verification mail dispatch failed", "purpose", purpose, "err", err)
		return fmt.Errorf("%w: mail dispatch: %w", domain.ErrTransient, err)
	}

	l.Info("verification code issued", "purpose", purpose)
	return nil
}

// Verify compares candidate against the live code. It never deletes: the
// caller consumes the code only after its dependent write succeeded, so a
// failed downstream write preserves the code for retry.
func (s *VerifyCodeService) Verify(ctx context.Context, email string, purpose domain.Purpose, candidate string) error {
	stored, err := s.Cache.Get(ctx, cache.VerifyCodeKey(email, purpose))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return fmt.Errorf("%w: no live code", domain.ErrCodeMismatch)
		}
		return fmt.Errorf("%w: cache read: %w", domain.ErrTransient, err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) != 1 {
		return domain.ErrCodeMismatch
	}
	return nil
}

// Consume deletes the code after a successful dependent state change.
func (s *VerifyCodeService) Consume(ctx context.Context, email string, purpose domain.Purpose) error {
	return s.Cache.Delete(ctx, cache.VerifyCodeKey(email, purpose))
}

func (s *VerifyCodeService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

func (s *VerifyCodeService) mailTimeout() time.Duration {
	if s.MailTimeout > 0 {
		return s.MailTimeout
	}
	return DefaultMailTimeout
}

// randomCode returns a uniformly random 6-digit numeric string.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func codeMessage(purpose domain.Purpose, code string) (subject, body string) {
	switch purpose {
	case domain.PurposeRegister:
		subject = "Your registration code"
	case domain.PurposeLogin:
		subject = "Your login code"
	case domain.PurposeForget:
		subject = "Your password reset code"
	case domain.PurposeUpdate:
		subject = "Your password change code"
	default:
		subject = "Your verification code"
	}
	body = fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 5 minutes. If you did not request it, ignore this email.</p>",
		code)
	return subject, body
}
