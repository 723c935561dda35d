package pgparcel

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS handovers (
  id BIGSERIAL PRIMARY KEY,
  file_name TEXT NOT NULL,
  handover_date DATE NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  platform TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS parcels (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  status TEXT NULL,
  direction TEXT NULL,
  updated_by TEXT NULL,
  updated_at TIMESTAMPTZ NULL,
  port_code TEXT NULL,
  package_type TEXT NULL,
  handover_id BIGINT NULL REFERENCES handovers(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_parcels_tracking_number ON parcels(tracking_number)`,
		`CREATE INDEX IF NOT EXISTS idx_parcels_handover_id ON parcels(handover_id)`,
		`
CREATE TABLE IF NOT EXISTS parcel_event_log (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  updated_by TEXT NOT NULL,
  from_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_parcel_event_log_tracking_number ON parcel_event_log(tracking_number, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS exports (
  id TEXT PRIMARY KEY,
  file_name TEXT NOT NULL,
  handover_id BIGINT NULL,
  row_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
