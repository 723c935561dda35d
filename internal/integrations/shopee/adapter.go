package shopee

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/LoadBay/HandoverDesk/internal/services/recon"
)

// DefaultActor is recorded as updated_by when the platform reports no
// driver for a shipment.
const DefaultActor = "Shopee Sync"

// statusNames is the fixed order_status code table. Codes outside the
// table are surfaced as Unknown_Status_<code> so new platform codes show
// up in the data instead of disappearing.
var statusNames = map[int]string{
	0:  "Pending_Pickup",
	1:  "LMHub_Received",
	2:  "LMHub_Packed",
	3:  "OnVehicle_Delivery",
	4:  "Delivered",
	5:  "Delivery_Failed",
	6:  "Returning_SOC",
	7:  "Returned",
	10: "Cancelled",
}

var bulkyNames = map[int]string{
	1: "Bulky",
	2: "Pouch",
}

func StatusName(code int) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown_Status_%d", code)
}

type Reconciler interface {
	ApplyRecord(ctx context.Context, rec models.UpdateRecord, handoverID *uint64) (recon.Result, error)
}

type ProcessedParcel struct {
	TrackingNumber string `json:"trackingNumber"`
	Status         string `json:"status"`
	Found          bool   `json:"found"`
	RowsUpdated    int64  `json:"rowsUpdated"`
	Error          string `json:"error,omitempty"`
}

type SyncResult struct {
	UpdatedCount     int64             `json:"updatedCount"`
	TotalFound       int               `json:"totalFound"`
	ProcessedParcels []ProcessedParcel `json:"processedParcels"`
	APIResponse      json.RawMessage   `json:"apiResponse,omitempty"`
}

// Adapter translates Shopee status payloads into update records and
// drives them through the reconciliation engine in global scope.
type Adapter struct {
	client *Client
	engine Reconciler
	log    *slog.Logger
}

func NewAdapter(client *Client, engine Reconciler, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{client: client, engine: engine, log: log}
}

// SyncFromAPI fetches shipment statuses with the caller's session
// credentials and applies them. The raw platform response is carried
// through on the result for operator diagnostics.
func (a *Adapter) SyncFromAPI(ctx context.Context, credentials map[string]string, trackingNumbers []string) (SyncResult, error) {
	payload, raw, err := a.client.FetchStatuses(ctx, credentials, trackingNumbers)
	if err != nil {
		return SyncResult{APIResponse: raw}, err
	}
	res := a.Apply(ctx, payload)
	res.APIResponse = raw
	return res, nil
}

// Apply maps every shipment item to an update record and reconciles it.
// Item failures are logged and reported per item without aborting the
// rest of the batch.
func (a *Adapter) Apply(ctx context.Context, payload *StatusResponse) SyncResult {
	res := SyncResult{ProcessedParcels: make([]ProcessedParcel, 0, len(payload.Data.List))}
	for _, item := range payload.Data.List {
		rec := toUpdateRecord(item)
		processed := ProcessedParcel{
			TrackingNumber: rec.TrackingNumber,
			Status:         *rec.Status,
		}
		out, err := a.engine.ApplyRecord(ctx, rec, nil)
		if err != nil {
			a.log.Error("shopee item reconcile failed",
				"tracking_number", processed.TrackingNumber, "error", err)
			processed.Error = err.Error()
			res.ProcessedParcels = append(res.ProcessedParcels, processed)
			continue
		}
		processed.Found = out.Matched
		processed.RowsUpdated = out.RowsUpdated
		if out.Matched {
			res.TotalFound++
			res.UpdatedCount += out.RowsUpdated
		}
		res.ProcessedParcels = append(res.ProcessedParcels, processed)
	}
	return res
}

func toUpdateRecord(item ShipmentItem) models.UpdateRecord {
	tracking := strings.ToUpper(strings.TrimSpace(item.ShipmentID))
	status := StatusName(item.OrderStatus)
	actor := strings.TrimSpace(item.DriverName)
	if actor == "" {
		actor = DefaultActor
	}
	now := time.Now().UTC()

	rec := models.UpdateRecord{
		TrackingNumber: tracking,
		Status:         &status,
		UpdatedBy:      &actor,
		UpdatedAt:      &now,
	}
	if station := strings.TrimSpace(item.CurrentStationName); station != "" {
		rec.PortCode = &station
	}
	if pkg, ok := bulkyNames[item.BulkyType]; ok {
		rec.PackageType = &pkg
	}
	return rec
}
