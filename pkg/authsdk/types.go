package authsdk

import "time"

// TokenPair is the credential set returned by login, refresh, and the QR
// confirmed handoff.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	UserID       string        `json:"userId"`
	IssuedAt     time.Time     `json:"issuedAt"`
	AccessTTL    time.Duration `json:"accessTtl"`
	RefreshTTL   time.Duration `json:"refreshTtl"`
}

// Identity is the result of resolving an access token.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
}

// QrSession is a freshly opened cross-device login session.
type QrSession struct {
	Key       string `json:"key"`
	ExpiresIn int    `json:"expire"`
}

// QrStatus is the browser's view of a session poll.
type QrStatus struct {
	Status   string `json:"status"`
	UserInfo *struct {
		UserID string `json:"userId"`
	} `json:"userInfo,omitempty"`
}

// Device identifies the mobile client acting on a QR session. Scan and
// confirm must present the same fingerprint.
type Device struct {
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
}
