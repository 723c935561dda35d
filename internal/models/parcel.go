package models

import "time"

// Parcel direction values. Anything else coming from an upload is ignored
// and never overwrites the stored value.
const (
	DirectionForward = "forward"
	DirectionReverse = "reverse"
)

const (
	HandoverStatusPending = "pending"
	HandoverStatusDone    = "done"
)

type Parcel struct {
	ID             uint64
	TrackingNumber string
	Status         *string
	Direction      *string
	UpdatedBy      *string
	UpdatedAt      *time.Time
	PortCode       *string
	PackageType    *string
	HandoverID     *uint64
	CreatedAt      time.Time
}

// ParcelEventLogEntry is the append-only audit trail: one entry per observed
// status transition, never for updates that leave status untouched.
type ParcelEventLogEntry struct {
	ID             uint64
	TrackingNumber string
	UpdatedBy      string
	FromStatus     string
	NewStatus      string
	CreatedAt      time.Time
}

type Handover struct {
	ID           uint64
	FileName     string
	HandoverDate time.Time
	Status       string
	Platform     string
	CreatedAt    time.Time
}

// Export marks that a bulk upload ran against the store.
type Export struct {
	ID         string
	FileName   string
	HandoverID *uint64
	RowCount   int
	CreatedAt  time.Time
}

// UpdateRecord is one incoming row from any source (CSV, XLSX, pasted text,
// Shopee API). Nil fields were absent from the source and must not be
// written to the parcel.
type UpdateRecord struct {
	TrackingNumber string
	Status         *string
	UpdatedBy      *string
	UpdatedAt      *time.Time
	Direction      *string
	PortCode       *string
	PackageType    *string
}

// ParcelPatch is the partial update the reconciliation engine applies.
// Only non-nil fields reach the store.
type ParcelPatch struct {
	Status      *string
	Direction   *string
	UpdatedBy   string
	UpdatedAt   time.Time
	PortCode    *string
	PackageType *string
}
