package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/store"
	"github.com/openbarn/authgate/pkg/cryptox"
	"github.com/openbarn/authgate/pkg/idx"
	"github.com/openbarn/authgate/pkg/slogx"
)

// Directory creates and looks up user identities. Backed by the user store
// here; kept as an interface because registration must survive the
// directory failing independently of the credential write.
type Directory interface {
	CreateIdentity(ctx context.Context, email, nickname string) (domain.User, error)
}

// StoreDirectory implements Directory on the durable user store.
type StoreDirectory struct {
	Store store.Store
}

func (d *StoreDirectory) CreateIdentity(ctx context.Context, email, nickname string) (domain.User, error) {
	now := time.Now().UTC()
	u := domain.User{
		ID:        idx.New().String(),
		Email:     email,
		Nickname:  nickname,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// CredentialService owns the password flows: register, login, forgot
// password, and authenticated password update. It is state-free; every flow
// composes the code service, the credential store, and the directory.
type CredentialService struct {
	Store     store.Store
	Codes     *VerifyCodeService
	Directory Directory
	Tokens    *TokenService

	// TransportSecret decrypts the password blob clients submit. Shared
	// with the frontend build.
	TransportSecret string
}

// Register creates a directory identity and its credential. The
// verification code survives a directory failure so the client can retry
// without requesting a new code.
func (s *CredentialService) Register(ctx context.Context, email, code, passwordBlob, nickname string) error {
	l := slogx.FromContext(ctx)

	if email == "" || code == "" || passwordBlob == "" {
		return fmt.Errorf("%w: missing parameters", domain.ErrValidation)
	}
	if !domain.ValidEmail(email) {
		return fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}

	exists, err := s.Store.Credentials().CredentialExists(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	if exists {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}

	if err := s.Codes.Verify(ctx, email, domain.PurposeRegister, code); err != nil {
		return err
	}

	password, err := cryptox.DecryptPassword(passwordBlob, s.TransportSecret)
	if err != nil {
		return fmt.Errorf("%w: undecodable password blob", domain.ErrValidation)
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	hash, err := cryptox.DeriveHash(password, salt)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	user, err := s.Directory.CreateIdentity(ctx, email, nickname)
	if err != nil {
		// Code stays live so the retry can reuse it.
		l.Error("directory identity creation failed", "err", err)
		return fmt.Errorf("%w: directory create: %w", domain.ErrTransient, err)
	}

	now := time.Now().UTC()
	cred := domain.Credential{
		UserID:       user.ID,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Credentials().CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if err := s.Codes.Consume(ctx, email, domain.PurposeRegister); err != nil {
		l.Warn("failed to consume registration code", "err", err)
	}

	l.Info("credential registered", "user_id", user.ID)
	return nil
}

// Login verifies the code and password and issues a token pair.
func (s *CredentialService) Login(ctx context.Context, email, code, passwordBlob string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if email == "" || code == "" || passwordBlob == "" {
		return nil, fmt.Errorf("%w: missing parameters", domain.ErrValidation)
	}

	cred, err := s.Store.Credentials().GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: email not registered", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if err := s.Codes.Verify(ctx, email, domain.PurposeLogin, code); err != nil {
		return nil, err
	}

	password, err := cryptox.DecryptPassword(passwordBlob, s.TransportSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable password blob", domain.ErrValidation)
	}
	if err := cryptox.VerifyHash(password, cred.Salt, cred.PasswordHash); err != nil {
		l.Info("password mismatch on login")
		return nil, fmt.Errorf("%w: password mismatch", domain.ErrCredentialMismatch)
	}

	if err := s.Codes.Consume(ctx, email, domain.PurposeLogin); err != nil {
		l.Warn("failed to consume login code", "err", err)
	}

	return s.Tokens.Issue(ctx, cred.UserID, cred.Email)
}

// ForgotPassword resets the hash using the existing salt after code
// verification. No authentication required: possession of the mailbox is
// the proof.
func (s *CredentialService) ForgotPassword(ctx context.Context, email, code, passwordBlob string) error {
	if email == "" || code == "" || passwordBlob == "" {
		return fmt.Errorf("%w: missing parameters", domain.ErrValidation)
	}

	cred, err := s.Store.Credentials().GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: email not registered", domain.ErrNotFound)
		}
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if err := s.Codes.Verify(ctx, email, domain.PurposeForget, code); err != nil {
		return err
	}

	return s.rewritePassword(ctx, cred, domain.PurposeForget, passwordBlob)
}

// UpdatePassword is the authenticated variant: the gateway has already
// resolved the caller, and the change applies to that identity's email.
func (s *CredentialService) UpdatePassword(ctx context.Context, identity domain.Identity, code, passwordBlob string) error {
	if identity.UserID == "" || identity.Email == "" {
		return fmt.Errorf("%w", domain.ErrNotLoggedIn)
	}
	if code == "" || passwordBlob == "" {
		return fmt.Errorf("%w: missing parameters", domain.ErrValidation)
	}

	cred, err := s.Store.Credentials().GetCredentialByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: email not registered", domain.ErrNotFound)
		}
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if err := s.Codes.Verify(ctx, identity.Email, domain.PurposeUpdate, code); err != nil {
		return err
	}

	return s.rewritePassword(ctx, cred, domain.PurposeUpdate, passwordBlob)
}

// rewritePassword derives a new hash with the credential's existing salt,
// persists it, and consumes the code only after the write succeeded.
func (s *CredentialService) rewritePassword(ctx context.Context, cred domain.Credential, purpose domain.Purpose, passwordBlob string) error {
	l := slogx.FromContext(ctx)

	password, err := cryptox.DecryptPassword(passwordBlob, s.TransportSecret)
	if err != nil {
		return fmt.Errorf("%w: undecodable password blob", domain.ErrValidation)
	}

	hash, err := cryptox.DeriveHash(password, cred.Salt)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if err := s.Store.Credentials().UpdatePasswordHash(ctx, cred.Email, hash); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if err := s.Codes.Consume(ctx, cred.Email, purpose); err != nil {
		l.Warn("failed to consume code after password rewrite", "purpose", purpose, "err", err)
	}

	l.Info("password rewritten", "user_id", cred.UserID, "purpose", purpose)
	return nil
}
