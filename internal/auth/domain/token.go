package domain

import "time"

// TokenPair is what a successful login, QR confirmation, or refresh returns:
// the short-lived JWT access token plus the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	UserID       string        `json:"userId"`
	IssuedAt     time.Time     `json:"issuedAt"`
	AccessTTL    time.Duration `json:"accessTtl"`
	RefreshTTL   time.Duration `json:"refreshTtl"`
}

// RefreshToken models the stored refresh token record. The opaque value
// itself is never stored, only its deterministic fingerprint.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the opaque token
	SessionID string // persists across rotations
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the resolved caller attached to a request after token
// verification.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
}
