package recon

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/broker/messages"
	"github.com/LoadBay/HandoverDesk/internal/ingest"
	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/pkg/errors"
)

// DefaultActor is recorded as updated_by when the source row carries no
// actor column.
const DefaultActor = "CSV Upload"

type Repository interface {
	FindParcelsByTrackingNumber(ctx context.Context, trackingNumber string, handoverID *uint64) ([]*models.Parcel, error)
	UpdateParcels(ctx context.Context, ids []uint64, patch models.ParcelPatch) (int64, error)
	AppendEventLog(ctx context.Context, entry models.ParcelEventLogEntry) error
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Result reports what one record did against the store.
type Result struct {
	Skipped     bool
	Matched     bool
	RowsUpdated int64
	Logged      bool
}

// Engine applies one incoming update record to the parcel store. The
// producer is optional; status-change events are published best effort.
type Engine struct {
	repo     Repository
	producer Publisher
}

func New(repo Repository, producer Publisher) *Engine {
	return &Engine{repo: repo, producer: producer}
}

// ApplyRecord reconciles one record against the store, scoped to a
// handover when handoverID is non-nil. Safe to call repeatedly with the
// same input: a true repeat finds from_status == new_status and appends
// nothing to the event log.
func (e *Engine) ApplyRecord(ctx context.Context, rec models.UpdateRecord, handoverID *uint64) (Result, error) {
	trackingNumber := ingest.NormalizeTrackingNumber(rec.TrackingNumber)
	if trackingNumber == "" {
		return Result{Skipped: true}, nil
	}

	parcels, err := e.repo.FindParcelsByTrackingNumber(ctx, trackingNumber, handoverID)
	if err != nil {
		return Result{}, errors.Wrap(err, "find parcels")
	}
	if len(parcels) == 0 {
		return Result{}, nil
	}

	patch := buildPatch(rec)

	ids := make([]uint64, 0, len(parcels))
	for _, p := range parcels {
		ids = append(ids, p.ID)
	}

	n, err := e.repo.UpdateParcels(ctx, ids, patch)
	if err != nil {
		return Result{Matched: true}, errors.Wrap(err, "update parcels")
	}

	res := Result{Matched: true, RowsUpdated: n}

	// Audit at most once per record, keyed off the first matched row's
	// pre-update status. Nothing is logged when the row had no status yet
	// or the status did not actually change.
	first := parcels[0]
	if patch.Status != nil && first.Status != nil && *first.Status != *patch.Status {
		entry := models.ParcelEventLogEntry{
			TrackingNumber: trackingNumber,
			UpdatedBy:      patch.UpdatedBy,
			FromStatus:     *first.Status,
			NewStatus:      *patch.Status,
		}
		if err := e.repo.AppendEventLog(ctx, entry); err != nil {
			return res, errors.Wrap(err, "append event log")
		}
		res.Logged = true
		e.publishStatusChanged(ctx, entry, handoverID)
	}

	return res, nil
}

func buildPatch(rec models.UpdateRecord) models.ParcelPatch {
	patch := models.ParcelPatch{
		Status:      rec.Status,
		Direction:   MapDirection(rec.Direction),
		PortCode:    rec.PortCode,
		PackageType: rec.PackageType,
		UpdatedBy:   DefaultActor,
		UpdatedAt:   time.Now().UTC(),
	}
	if rec.UpdatedBy != nil && *rec.UpdatedBy != "" {
		patch.UpdatedBy = *rec.UpdatedBy
	}
	if rec.UpdatedAt != nil {
		patch.UpdatedAt = *rec.UpdatedAt
	}
	return patch
}

// MapDirection maps an incoming direction token to a stored value.
// "forward" maps forward, "reverse" and "backward" map reverse; any other
// token returns nil so the stored direction is never clobbered by
// ambiguous input.
func MapDirection(raw *string) *string {
	if raw == nil {
		return nil
	}
	var mapped string
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "forward":
		mapped = models.DirectionForward
	case "reverse", "backward":
		mapped = models.DirectionReverse
	default:
		return nil
	}
	return &mapped
}

func (e *Engine) publishStatusChanged(ctx context.Context, entry models.ParcelEventLogEntry, handoverID *uint64) {
	if e.producer == nil {
		return
	}
	msg := messages.ParcelStatusChanged{
		TrackingNumber: entry.TrackingNumber,
		FromStatus:     entry.FromStatus,
		NewStatus:      entry.NewStatus,
		UpdatedBy:      entry.UpdatedBy,
		HandoverID:     handoverID,
		ChangedAt:      time.Now().UTC(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := e.producer.Publish(ctx, []byte(entry.TrackingNumber), b); err != nil {
		slog.Warn("publish status change", "tracking_number", entry.TrackingNumber, "error", err.Error())
	}
}
