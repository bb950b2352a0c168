package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to an authgate instance. It covers the unauthenticated
// actions directly and creates Sessions for the rest.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a sane default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type envelope struct {
	Status int `json:"status"`
	Data   struct {
		Content json.RawMessage `json:"content"`
		Message string          `json:"message"`
		Code    string          `json:"code"`
	} `json:"data"`
}

// post runs one action. out may be nil for actions without content. A
// bearer token is attached when token is non-empty.
func (c *Client) post(ctx context.Context, path string, body, out any, token string) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("authsdk: failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("authsdk: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("authsdk: request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("authsdk: failed to decode response: %w", err)
	}

	if env.Data.Code != CodeOK {
		return &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.Data.Code,
			Message:    env.Data.Message,
		}
	}

	if out != nil && len(env.Data.Content) > 0 {
		if err := json.Unmarshal(env.Data.Content, out); err != nil {
			return fmt.Errorf("authsdk: failed to decode content: %w", err)
		}
	}
	return nil
}

// RequestVerifyCode asks the service to mail a verification code. purpose
// is one of "login", "register", "forget", "update". Requesting while a
// code is still live succeeds without resending.
func (c *Client) RequestVerifyCode(ctx context.Context, email, purpose string) error {
	return c.post(ctx, "/v1/verifyCode", map[string]string{
		"email": email,
		"type":  purpose,
	}, nil, "")
}

// Register creates an account. password must already be transport
// encrypted with the shared frontend secret.
func (c *Client) Register(ctx context.Context, email, verifyCode, password, nickname string) error {
	return c.post(ctx, "/v1/register", map[string]string{
		"email":      email,
		"verifyCode": verifyCode,
		"password":   password,
		"nickname":   nickname,
	}, nil, "")
}

// Login authenticates and returns an authenticated Session.
func (c *Client) Login(ctx context.Context, email, verifyCode, password string) (*Session, error) {
	var pair TokenPair
	err := c.post(ctx, "/v1/login", map[string]string{
		"email":      email,
		"verifyCode": verifyCode,
		"password":   password,
	}, &pair, "")
	if err != nil {
		return nil, err
	}
	return newSession(c, pair), nil
}

// ForgetPassword resets a password via mailbox proof. password must be
// transport encrypted.
func (c *Client) ForgetPassword(ctx context.Context, email, verifyCode, password string) error {
	return c.post(ctx, "/v1/forgetPassword", map[string]string{
		"email":      email,
		"verifyCode": verifyCode,
		"password":   password,
	}, nil, "")
}

// Refresh exchanges a refresh token for a fresh pair. The presented token
// is spent by a successful exchange.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	err := c.post(ctx, "/v1/refreshToken", map[string]string{
		"refreshToken": refreshToken,
	}, &pair, "")
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// ResolveToken verifies an access token and returns the identity behind
// it. This is the call other services make to authenticate requests.
func (c *Client) ResolveToken(ctx context.Context, accessToken string) (*Identity, error) {
	var identity Identity
	err := c.post(ctx, "/v1/resolveToken", map[string]string{
		"token": accessToken,
	}, &identity, "")
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// QrCreate opens a cross-device login session. The returned key is what
// the browser renders as a QR code.
func (c *Client) QrCreate(ctx context.Context) (*QrSession, error) {
	var session QrSession
	if err := c.post(ctx, "/v1/qrcode/getKey", nil, &session, ""); err != nil {
		return nil, err
	}
	return &session, nil
}

// QrPoll reads the session status. On CONFIRMED the winning poll also
// receives the user; the session is gone afterwards.
func (c *Client) QrPoll(ctx context.Context, key string) (*QrStatus, error) {
	var status QrStatus
	err := c.post(ctx, "/v1/qrcode/status", map[string]string{"key": key}, &status, "")
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// NewSessionFromTokens rebuilds a Session from stored tokens, e.g. after a
// process restart. The session still refreshes itself when the access
// token expires.
func (c *Client) NewSessionFromTokens(pair TokenPair) *Session {
	return newSession(c, pair)
}
