package pgparcel

import (
	"context"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) AppendEventLog(ctx context.Context, entry models.ParcelEventLogEntry) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO parcel_event_log (tracking_number, updated_by, from_status, new_status, created_at)
VALUES ($1,$2,$3,$4,$5)
`, entry.TrackingNumber, entry.UpdatedBy, entry.FromStatus, entry.NewStatus, time.Now().UTC())
	return errors.Wrap(err, "insert event log entry")
}

func (s *Storage) ListEventLog(ctx context.Context, trackingNumber string, limit, offset int) ([]*models.ParcelEventLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, tracking_number, updated_by, from_status, new_status, created_at
FROM parcel_event_log
WHERE tracking_number = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, trackingNumber, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select event log")
	}
	defer rows.Close()

	var out []*models.ParcelEventLogEntry
	for rows.Next() {
		var e models.ParcelEventLogEntry
		if err := rows.Scan(&e.ID, &e.TrackingNumber, &e.UpdatedBy, &e.FromStatus, &e.NewStatus, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event log entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
