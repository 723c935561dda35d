package pgparcel

import (
	"context"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateHandover(ctx context.Context, h *models.Handover) error {
	now := time.Now().UTC()
	err := s.db.QueryRow(ctx, `
INSERT INTO handovers (file_name, handover_date, status, platform, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, h.FileName, h.HandoverDate, models.HandoverStatusPending, h.Platform, now).Scan(&h.ID)
	if err != nil {
		return errors.Wrap(err, "insert handover")
	}
	h.Status = models.HandoverStatusPending
	h.CreatedAt = now
	return nil
}

func (s *Storage) GetHandover(ctx context.Context, id uint64) (*models.Handover, error) {
	var h models.Handover
	err := s.db.QueryRow(ctx, `
SELECT id, file_name, handover_date, status, platform, created_at
FROM handovers
WHERE id = $1
`, id).Scan(&h.ID, &h.FileName, &h.HandoverDate, &h.Status, &h.Platform, &h.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select handover")
	}
	return &h, nil
}

func (s *Storage) SetHandoverStatus(ctx context.Context, id uint64, status string) error {
	tag, err := s.db.Exec(ctx, `UPDATE handovers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "update handover status")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("handover %d not found", id)
	}
	return nil
}

func (s *Storage) ListHandovers(ctx context.Context, since time.Time, limit int) ([]*models.Handover, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id, file_name, handover_date, status, platform, created_at
FROM handovers
WHERE handover_date >= $1
ORDER BY handover_date DESC, id DESC
LIMIT $2
`, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select handovers")
	}
	defer rows.Close()

	var out []*models.Handover
	for rows.Next() {
		var h models.Handover
		if err := rows.Scan(&h.ID, &h.FileName, &h.HandoverDate, &h.Status, &h.Platform, &h.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan handover")
		}
		out = append(out, &h)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
