package cryptox

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters for credential hashing.
const (
	kdfIterations = 1000
	kdfKeyLength  = 64 // bytes
	saltLength    = 16 // bytes
)

// ErrHashMismatch is returned by VerifyHash when the derived hash does not
// match the stored one.
var ErrHashMismatch = errors.New("cryptox: password hash mismatch")

// NewSalt returns a fresh random salt, hex encoded.
func NewSalt() (string, error) {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// DeriveHash derives a hex-encoded PBKDF2-SHA512 hash of password using the
// hex-encoded salt. Salts are reused across password resets so stored hashes
// stay comparable.
func DeriveHash(password, saltHex string) (string, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("cryptox: invalid salt encoding: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, kdfKeyLength, sha512.New)
	return hex.EncodeToString(key), nil
}

// VerifyHash re-derives the hash for password with the stored salt and
// compares it against expectedHex in constant time.
func VerifyHash(password, saltHex, expectedHex string) error {
	derived, err := DeriveHash(password, saltHex)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(derived), []byte(expectedHex)) != 1 {
		return ErrHashMismatch
	}
	return nil
}
