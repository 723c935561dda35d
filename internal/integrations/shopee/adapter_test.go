package shopee

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/LoadBay/HandoverDesk/internal/services/recon"
)

type fakeReconciler struct {
	records []models.UpdateRecord
	results map[string]recon.Result
	errs    map[string]error
}

func (f *fakeReconciler) ApplyRecord(_ context.Context, rec models.UpdateRecord, handoverID *uint64) (recon.Result, error) {
	if handoverID != nil {
		return recon.Result{}, errors.New("expected global scope")
	}
	f.records = append(f.records, rec)
	if err, ok := f.errs[rec.TrackingNumber]; ok {
		return recon.Result{}, err
	}
	return f.results[rec.TrackingNumber], nil
}

func TestAdapter_Apply(t *testing.T) {
	rc := &fakeReconciler{
		results: map[string]recon.Result{
			"ABC123": {Matched: true, RowsUpdated: 2, Logged: true},
			"DEF456": {},
		},
	}
	a := NewAdapter(nil, rc, nil)

	var payload StatusResponse
	payload.Data.List = []ShipmentItem{
		{ShipmentID: "abc123", OrderStatus: 1, DriverName: "Ken", BulkyType: 1, CurrentStationName: "SOC-North"},
		{ShipmentID: "def456", OrderStatus: 4},
	}

	res := a.Apply(context.Background(), &payload)
	require.Equal(t, int64(2), res.UpdatedCount)
	require.Equal(t, 1, res.TotalFound)
	require.Len(t, res.ProcessedParcels, 2)

	require.Equal(t, "ABC123", res.ProcessedParcels[0].TrackingNumber)
	require.Equal(t, "LMHub_Received", res.ProcessedParcels[0].Status)
	require.True(t, res.ProcessedParcels[0].Found)
	require.Equal(t, int64(2), res.ProcessedParcels[0].RowsUpdated)

	require.Equal(t, "DEF456", res.ProcessedParcels[1].TrackingNumber)
	require.Equal(t, "Delivered", res.ProcessedParcels[1].Status)
	require.False(t, res.ProcessedParcels[1].Found)

	require.Len(t, rc.records, 2)
	first := rc.records[0]
	require.Equal(t, "Ken", *first.UpdatedBy)
	require.Equal(t, "Bulky", *first.PackageType)
	require.Equal(t, "SOC-North", *first.PortCode)
	require.NotNil(t, first.UpdatedAt)
	require.Nil(t, first.Direction)
}

func TestAdapter_Apply_ItemErrorDoesNotAbortBatch(t *testing.T) {
	rc := &fakeReconciler{
		results: map[string]recon.Result{
			"B2": {Matched: true, RowsUpdated: 1},
		},
		errs: map[string]error{"A1": errors.New("db down")},
	}
	a := NewAdapter(nil, rc, nil)

	var payload StatusResponse
	payload.Data.List = []ShipmentItem{
		{ShipmentID: "a1", OrderStatus: 1},
		{ShipmentID: "b2", OrderStatus: 4},
	}

	res := a.Apply(context.Background(), &payload)
	require.Len(t, res.ProcessedParcels, 2)
	require.Equal(t, "db down", res.ProcessedParcels[0].Error)
	require.False(t, res.ProcessedParcels[0].Found)
	require.True(t, res.ProcessedParcels[1].Found)
	require.Equal(t, int64(1), res.UpdatedCount)
	require.Equal(t, 1, res.TotalFound)
}

func TestAdapter_Apply_Defaults(t *testing.T) {
	rc := &fakeReconciler{results: map[string]recon.Result{}}
	a := NewAdapter(nil, rc, nil)

	var payload StatusResponse
	payload.Data.List = []ShipmentItem{
		{ShipmentID: " xy-9 ", OrderStatus: 99, BulkyType: 7},
	}

	res := a.Apply(context.Background(), &payload)
	require.Equal(t, "XY-9", res.ProcessedParcels[0].TrackingNumber)
	require.Equal(t, "Unknown_Status_99", res.ProcessedParcels[0].Status)

	rec := rc.records[0]
	require.Equal(t, DefaultActor, *rec.UpdatedBy)
	require.Nil(t, rec.PackageType)
	require.Nil(t, rec.PortCode)
}
