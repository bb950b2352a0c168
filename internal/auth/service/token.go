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
	"github.com/openbarn/authgate/pkg/jwtx"
	"github.com/openbarn/authgate/pkg/slogx"
)

// TokenService mints, resolves, and rotates access/refresh token pairs. The
// access token is a signed Ed25519 JWT; the refresh token is an opaque
// random value stored only as a SHA-256 fingerprint.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Store    store.Store

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue mints a fresh pair for the user. Purely local apart from the
// refresh row insert.
func (s *TokenService) Issue(ctx context.Context, userID, email string) (*domain.TokenPair, error) {
	now := time.Now()
	sessionID := idx.New().String()

	access, err := s.Signer.Sign(jwtx.NewAccessClaims(userID, sessionID, email, s.AccessTTL, s.Issuer, now))
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %w", domain.ErrTransient, err)
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %w", domain.ErrTransient, err)
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, fmt.Errorf("%w: persist refresh token: %w", domain.ErrTransient, err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshOpaque,
		UserID:       userID,
		IssuedAt:     now,
		AccessTTL:    s.AccessTTL,
		RefreshTTL:   s.RefreshTTL,
	}, nil
}

// Resolve verifies an access token and returns the identity it carries.
// A structurally valid token past its exp maps to ErrTokenExpired, which is
// distinct from ErrUnauthorized so the client can attempt a refresh before
// being forced to re-login.
func (s *TokenService) Resolve(token string) (domain.Identity, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
		}
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	return domain.Identity{
		UserID:    claims.Subject,
		SessionID: claims.SID,
		Email:     claims.Email,
	}, nil
}

// Refresh exchanges a live refresh token for a new pair. Rotate-on-use: the
// old token is revoked and the replacement created in one transaction, so a
// leaked refresh token stops working the moment its legitimate holder uses
// it. The session ID carries over.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown refresh token", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	if rt.Revoked {
		l.Warn("refresh attempted with revoked token", "user_id", rt.UserID)
		return nil, fmt.Errorf("%w: refresh token revoked", domain.ErrUnauthorized)
	}
	if now.After(rt.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", domain.ErrTokenExpired)
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: user gone", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	access, err := s.Signer.Sign(jwtx.NewAccessClaims(u.ID, rt.SessionID, u.Email, s.AccessTTL, s.Issuer, now))
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %w", domain.ErrTransient, err)
	}

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %w", domain.ErrTransient, err)
	}

	newRT := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(newOpaque),
		SessionID: rt.SessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRT)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rotate refresh token: %w", domain.ErrTransient, err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: newOpaque,
		UserID:       u.ID,
		IssuedAt:     now,
		AccessTTL:    s.AccessTTL,
		RefreshTTL:   s.RefreshTTL,
	}, nil
}

// Revoke invalidates a refresh token by its opaque value. Used by logout.
// Unknown tokens are not an error so logout stays idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshOpaque string) error {
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(refreshOpaque))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return nil
}
