package pgparcel

import (
	"context"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const parcelColumns = `
  id, tracking_number, status, direction,
  updated_by, updated_at, port_code, package_type,
  handover_id, created_at
`

// FindParcelsByTrackingNumber returns every stored row sharing a tracking
// number. A non-nil handoverID restricts the search to that handover,
// otherwise the lookup is global. Zero rows is not an error.
func (s *Storage) FindParcelsByTrackingNumber(ctx context.Context, trackingNumber string, handoverID *uint64) ([]*models.Parcel, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if handoverID != nil {
		rows, err = s.db.Query(ctx, `
SELECT `+parcelColumns+`
FROM parcels
WHERE tracking_number = $1 AND handover_id = $2
ORDER BY id
`, trackingNumber, *handoverID)
	} else {
		rows, err = s.db.Query(ctx, `
SELECT `+parcelColumns+`
FROM parcels
WHERE tracking_number = $1
ORDER BY id
`, trackingNumber)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select parcels")
	}
	defer rows.Close()

	var out []*models.Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpdateParcels applies a partial update to the given rows. Nil patch
// fields leave the stored column untouched. Returns the number of rows
// actually changed.
func (s *Storage) UpdateParcels(ctx context.Context, ids []uint64, patch models.ParcelPatch) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, `
UPDATE parcels
SET
  status = COALESCE($2, status),
  direction = COALESCE($3, direction),
  port_code = COALESCE($4, port_code),
  package_type = COALESCE($5, package_type),
  updated_by = $6,
  updated_at = $7
WHERE id = ANY($1)
`, ids, patch.Status, patch.Direction, patch.PortCode, patch.PackageType, patch.UpdatedBy, patch.UpdatedAt.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "update parcels")
	}
	return tag.RowsAffected(), nil
}

// CreateParcels inserts parcels in one transaction, normally when a
// handover manifest is registered.
func (s *Storage) CreateParcels(ctx context.Context, parcels []*models.Parcel) error {
	if len(parcels) == 0 {
		return nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range parcels {
		err := tx.QueryRow(ctx, `
INSERT INTO parcels (
  tracking_number, status, direction, updated_by, updated_at,
  port_code, package_type, handover_id, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id
`, p.TrackingNumber, p.Status, p.Direction, p.UpdatedBy, p.UpdatedAt,
			p.PortCode, p.PackageType, p.HandoverID, now).Scan(&p.ID)
		if err != nil {
			return errors.Wrap(err, "insert parcel")
		}
		p.CreatedAt = now
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func scanParcel(rows pgx.Rows) (*models.Parcel, error) {
	var p models.Parcel
	if err := rows.Scan(
		&p.ID, &p.TrackingNumber, &p.Status, &p.Direction,
		&p.UpdatedBy, &p.UpdatedAt, &p.PortCode, &p.PackageType,
		&p.HandoverID, &p.CreatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan parcel")
	}
	return &p, nil
}
