package sqlite

import (
	"context"
	"time"

	"github.com/openbarn/authgate/internal/auth/domain"
)

type scanAuditsRepo struct {
	db dbtx
}

func (r *scanAuditsRepo) CreateScanAudit(ctx context.Context, a domain.ScanAudit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_audits (id, session_id, user_id, device_id, device_type, client_ip, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.UserID, a.DeviceID, a.DeviceType, a.ClientIP, a.ConfirmedAt)
	return mapConflict(err)
}

func (r *scanAuditsRepo) ListScanAuditsByUser(ctx context.Context, userID string, limit int) ([]domain.ScanAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, device_id, device_type, client_ip, confirmed_at
		FROM scan_audits WHERE user_id = ?
		ORDER BY confirmed_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []domain.ScanAudit
	for rows.Next() {
		var a domain.ScanAudit
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.DeviceID, &a.DeviceType, &a.ClientIP, &a.ConfirmedAt); err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

func (r *scanAuditsRepo) DeleteScanAuditsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scan_audits WHERE confirmed_at < ?`, cutoff)
	return err
}
