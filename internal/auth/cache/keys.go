package cache

import (
	"fmt"

	"github.com/openbarn/authgate/internal/auth/domain"
)

// Key shapes shared across services. Centralised so the wire format of the
// cache namespace lives in exactly one place.

// VerifyCodeKey keys a verification code by address and purpose.
func VerifyCodeKey(email string, purpose domain.Purpose) string {
	return fmt.Sprintf("verifyCode:%s;type:%s", email, purpose)
}

// QrStatusKey holds the session's current QrStatus.
func QrStatusKey(id string) string {
	return fmt.Sprintf("qr_code:%s:status", id)
}

// QrClientKey holds the JSON client fingerprint recorded at creation.
func QrClientKey(id string) string {
	return fmt.Sprintf("qr_code:%s:client", id)
}

// QrDeviceKey holds the JSON device binding recorded at scan.
func QrDeviceKey(id string) string {
	return fmt.Sprintf("qr_code:%s:device", id)
}

// QrUserKey holds the confirmed user id for one poll round-trip.
func QrUserKey(id string) string {
	return fmt.Sprintf("qr_code:%s:user", id)
}

// ScanAttemptsKey counts QR session creations per originating IP.
func ScanAttemptsKey(ip string) string {
	return fmt.Sprintf("scan_attempts:%s", ip)
}
