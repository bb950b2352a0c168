package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Clients never send passwords in the clear: the transmitted blob is
// AES-256-GCM encrypted with a secret shared between the web client and this
// service. The wire format is base64url([12-byte nonce][ciphertext][tag]).

// ErrTransportDecrypt is returned when a password blob cannot be decrypted,
// either because it is malformed or was sealed with a different secret.
var ErrTransportDecrypt = errors.New("cryptox: transport decryption failed")

func transportGCM(secret string) (cipher.AEAD, error) {
	// Derive a proper 32-byte key regardless of secret length.
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptPassword seals a plaintext password with the shared transport
// secret. Used by tests and client tooling.
func EncryptPassword(password, secret string) (string, error) {
	gcm, err := transportGCM(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(password), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptPassword opens a password blob produced by EncryptPassword.
func DecryptPassword(blob, secret string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrTransportDecrypt
	}

	gcm, err := transportGCM(secret)
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", ErrTransportDecrypt
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrTransportDecrypt
	}
	return string(plaintext), nil
}
