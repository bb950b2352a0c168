package domain

import "time"

// Credential is the stored login secret for an email address. The hash is
// PBKDF2-SHA512 over the transport-decrypted password, hex encoded.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	Salt         string // hex encoded, fixed per credential
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
