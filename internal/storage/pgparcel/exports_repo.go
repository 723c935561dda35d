package pgparcel

import (
	"context"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) CreateExport(ctx context.Context, exp *models.Export) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO exports (id, file_name, handover_id, row_count, created_at)
VALUES ($1,$2,$3,$4,$5)
`, exp.ID, exp.FileName, exp.HandoverID, exp.RowCount, now)
	if err != nil {
		return errors.Wrap(err, "insert export")
	}
	exp.CreatedAt = now
	return nil
}
