package messages

import "time"

// ParcelStatusChanged is published once per audit-log entry so downstream
// dashboards can follow status transitions without polling the store.
type ParcelStatusChanged struct {
	TrackingNumber string    `json:"tracking_number"`
	FromStatus     string    `json:"from_status"`
	NewStatus      string    `json:"new_status"`
	UpdatedBy      string    `json:"updated_by"`
	HandoverID     *uint64   `json:"handover_id,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}

// ParcelUpdateRequested carries a single update record submitted through
// the broker instead of a file upload. Consumed by the API process and
// applied globally (no handover scope).
type ParcelUpdateRequested struct {
	TrackingNumber string     `json:"tracking_number"`
	Status         *string    `json:"status,omitempty"`
	Direction      *string    `json:"direction,omitempty"`
	UpdatedBy      *string    `json:"updated_by,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	PortCode       *string    `json:"port_code,omitempty"`
	PackageType    *string    `json:"package_type,omitempty"`
}
