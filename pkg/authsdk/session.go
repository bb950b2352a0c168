package authsdk

import (
	"context"
	"sync"
	"time"
)

// refreshBuffer is how early a session refreshes before the access token
// actually expires, so in-flight requests don't race the deadline.
const refreshBuffer = 30 * time.Second

// Session is an authenticated view of the service. Safe for concurrent
// use; the access token is refreshed lazily when it nears expiry.
type Session struct {
	client *Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	userID       string
	expiresAt    time.Time
}

func newSession(c *Client, pair TokenPair) *Session {
	s := &Session{client: c}
	s.adopt(pair)
	return s
}

func (s *Session) adopt(pair TokenPair) {
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	s.userID = pair.UserID

	issued := pair.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	s.expiresAt = issued.Add(pair.AccessTTL - refreshBuffer)
}

// UserID returns the authenticated user's id.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// RefreshToken returns the current refresh token, e.g. for persisting the
// session across restarts. It changes on every refresh.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// AccessToken returns a valid access token, refreshing first if the
// current one is about to expire.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	pair, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", err
	}
	s.adopt(*pair)
	return s.accessToken, nil
}

func (s *Session) post(ctx context.Context, path string, body, out any) error {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return err
	}
	return s.client.post(ctx, path, body, out, token)
}

// UpdatePassword changes the caller's own password. password must be
// transport encrypted; verifyCode must have been issued for "update".
func (s *Session) UpdatePassword(ctx context.Context, verifyCode, password string) error {
	return s.post(ctx, "/v1/updatePassword", map[string]string{
		"verifyCode": verifyCode,
		"password":   password,
	}, nil)
}

// Logout revokes the refresh token. The session is unusable afterwards.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	accessToken := s.accessToken
	s.mu.Unlock()

	err := s.client.post(ctx, "/v1/logout", map[string]string{
		"refreshToken": refreshToken,
	}, nil, accessToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

// QrScan marks a session as seen by this user's device.
func (s *Session) QrScan(ctx context.Context, key string, device Device) error {
	return s.post(ctx, "/v1/qrcode/scan", qrMutation(key, device), nil)
}

// QrConfirm approves the login from the device that scanned.
func (s *Session) QrConfirm(ctx context.Context, key string, device Device) error {
	return s.post(ctx, "/v1/qrcode/confirm", qrMutation(key, device), nil)
}

// QrCancel aborts a pending or scanned session.
func (s *Session) QrCancel(ctx context.Context, key string, device Device) error {
	return s.post(ctx, "/v1/qrcode/cancel", qrMutation(key, device), nil)
}

func qrMutation(key string, device Device) map[string]string {
	return map[string]string{
		"key":        key,
		"deviceId":   device.DeviceID,
		"deviceType": device.DeviceType,
	}
}
