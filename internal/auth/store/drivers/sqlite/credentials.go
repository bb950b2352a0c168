package sqlite

import (
	"context"
	"time"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/store"
)

type credentialsRepo struct {
	db dbtx
}

func (r *credentialsRepo) GetCredentialByEmail(ctx context.Context, email string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, salt, verified, created_at, updated_at
		FROM credentials WHERE email = ?`, email)

	var c domain.Credential
	err := row.Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.Salt, &c.Verified, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	return c, nil
}

func (r *credentialsRepo) CredentialExists(ctx context.Context, email string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM credentials WHERE email = ?`, email)

	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, email, password_hash, salt, verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Email, c.PasswordHash, c.Salt, c.Verified, c.CreatedAt, c.UpdatedAt)
	return mapConflict(err)
}

func (r *credentialsRepo) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now().UTC(), email)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
