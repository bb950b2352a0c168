package http

import (
	"net/http"

	"github.com/openbarn/authgate/internal/auth/domain"
	"github.com/openbarn/authgate/internal/auth/service"
)

// QrGetKeyHandler serves POST /v1/qrcode/getKey: opens a PENDING session
// bound to the requesting browser and returns {key, expire}.
type QrGetKeyHandler struct {
	Qr *service.QrSessionService
}

func (h *QrGetKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.Qr.Create(r.Context(), clientFingerprint(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, res, "qr session created")
}

// QrStatusHandler serves POST /v1/qrcode/status: the browser's poll. On
// CONFIRMED the winning poll receives the bound user and a session cookie
// pair; later polls observe EXPIRED.
type QrStatusHandler struct {
	Qr *service.QrSessionService
}

type qrStatusRequest struct {
	Key string `json:"key"`
}

type qrStatusResponse struct {
	Status   string      `json:"status"`
	UserInfo *qrUserInfo `json:"userInfo,omitempty"`
}

type qrUserInfo struct {
	UserID string `json:"userId"`
}

func (h *QrStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req qrStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	res, err := h.Qr.Poll(r.Context(), req.Key, clientFingerprint(r))
	if err != nil {
		writeErr(w, err)
		return
	}

	body := qrStatusResponse{Status: string(res.Status)}
	if res.Status == domain.StatusConfirmed {
		body.UserInfo = &qrUserInfo{UserID: res.UserID}
		SetSessionTokens(r.Context(), res.Tokens)
	}
	writeOK(w, body, "qr status")
}

// qrMutationRequest is shared by scan, confirm, and cancel: the session key
// plus the device fingerprint of the acting mobile client.
type qrMutationRequest struct {
	Key        string `json:"key"`
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
}

func (q qrMutationRequest) fingerprint() domain.DeviceFingerprint {
	return domain.DeviceFingerprint{DeviceID: q.DeviceID, DeviceType: q.DeviceType}
}

// QrScanHandler serves POST /v1/qrcode/scan (authenticated mobile).
type QrScanHandler struct {
	Qr *service.QrSessionService
}

func (h *QrScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, domain.ErrNotLoggedIn)
		return
	}

	var req qrMutationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Qr.Scan(r.Context(), req.Key, req.fingerprint(), identity.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil, "scanned")
}

// QrConfirmHandler serves POST /v1/qrcode/confirm (authenticated mobile).
type QrConfirmHandler struct {
	Qr *service.QrSessionService
}

func (h *QrConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, domain.ErrNotLoggedIn)
		return
	}

	var req qrMutationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Qr.Confirm(r.Context(), req.Key, req.fingerprint(), identity.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil, "confirmed")
}

// QrCancelHandler serves POST /v1/qrcode/cancel (authenticated mobile).
type QrCancelHandler struct {
	Qr *service.QrSessionService
}

func (h *QrCancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, domain.ErrNotLoggedIn)
		return
	}

	var req qrMutationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Qr.Cancel(r.Context(), req.Key, req.fingerprint(), identity.UserID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, nil, "cancelled")
}
