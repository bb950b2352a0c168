package domain

import "time"

// QrStatus is the state of a cross-device QR login session. The session
// lives entirely in the cache; a missing entry reads as StatusExpired.
type QrStatus string

const (
	StatusPending   QrStatus = "PENDING"
	StatusScanned   QrStatus = "SCANNED"
	StatusConfirmed QrStatus = "CONFIRMED"
	StatusCancelled QrStatus = "CANCELLED"
	StatusExpired   QrStatus = "EXPIRED"
)

// ClientFingerprint binds a session to the browser that created it.
type ClientFingerprint struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}

// DeviceFingerprint binds a session to the mobile device that scanned it.
type DeviceFingerprint struct {
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
}

// DeviceBinding is the cached record written at scan time.
type DeviceBinding struct {
	DeviceFingerprint
	UserID string `json:"userId"`
}

// ScanAudit is the durable record written when a session is confirmed.
type ScanAudit struct {
	ID          string
	SessionID   string
	UserID      string
	DeviceID    string
	DeviceType  string
	ClientIP    string
	ConfirmedAt time.Time
}
