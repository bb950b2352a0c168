package store

import (
	"context"
	"errors"
	"time"

	"github.com/openbarn/authgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. Sub-repositories are exposed as methods so the
// transactional variant can hand back the same surface scoped to its Tx.
type Store interface {
	Credentials() Credentials
	Users() Users
	RefreshTokens() RefreshTokens
	ScanAudits() ScanAudits

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. fn returning an error rolls
	// back; nil commits. Preferred over Tx for multi-step operations that
	// must be atomic, e.g. refresh token rotation.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Credentials holds login secrets keyed by email.
type Credentials interface {
	// GetCredentialByEmail returns the credential for an address.
	GetCredentialByEmail(ctx context.Context, email string) (domain.Credential, error)

	// CredentialExists reports whether the address already has a credential.
	CredentialExists(ctx context.Context, email string) (bool, error)

	// CreateCredential inserts a new credential. ErrAlreadyExists when the
	// email is taken.
	CreateCredential(ctx context.Context, c domain.Credential) error

	// UpdatePasswordHash replaces the hash and bumps updated_at. The salt
	// never changes after creation.
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
}

// Users is the user directory: the identity record a credential points at.
type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
}

// RefreshTokens stores refresh token records by fingerprint.
type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken marks the token revoked; revoked tokens fail
	// refresh but are kept until housekeeping deletes them.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// DeleteExpiredRefreshTokens removes tokens past expiry or revoked.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

// ScanAudits is the durable trail of confirmed QR logins.
type ScanAudits interface {
	CreateScanAudit(ctx context.Context, a domain.ScanAudit) error
	ListScanAuditsByUser(ctx context.Context, userID string, limit int) ([]domain.ScanAudit, error)

	// DeleteScanAuditsBefore purges audit rows older than cutoff.
	DeleteScanAuditsBefore(ctx context.Context, cutoff time.Time) error
}
