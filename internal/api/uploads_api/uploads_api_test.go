package uploads_api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LoadBay/HandoverDesk/internal/integrations/shopee"
	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/LoadBay/HandoverDesk/internal/services/uploads"
)

type fakeUploader struct {
	submitted  []string
	handoverID *uint64
	job        *uploads.Job
	submitErr  error

	jobs map[string]*uploads.Job
}

func (f *fakeUploader) Submit(_ context.Context, fileName string, content []byte, handoverID *uint64) (*uploads.Job, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, fileName+":"+string(content))
	f.handoverID = handoverID
	return f.job, nil
}

func (f *fakeUploader) Get(_ context.Context, id string) (*uploads.Job, bool, error) {
	j, ok := f.jobs[id]
	return j, ok, nil
}

type fakeSyncer struct {
	res shopee.SyncResult
	err error

	gotCredentials map[string]string
	gotTracking    []string
}

func (f *fakeSyncer) SyncFromAPI(_ context.Context, credentials map[string]string, trackingNumbers []string) (shopee.SyncResult, error) {
	f.gotCredentials = credentials
	f.gotTracking = trackingNumbers
	return f.res, f.err
}

type fakeHandovers struct {
	created  []*models.Handover
	byID     map[uint64]*models.Handover
	statuses map[uint64]string
}

func (f *fakeHandovers) CreateHandover(_ context.Context, h *models.Handover) error {
	h.ID = uint64(len(f.created) + 1)
	h.Status = models.HandoverStatusPending
	h.CreatedAt = time.Now().UTC()
	f.created = append(f.created, h)
	return nil
}

func (f *fakeHandovers) GetHandover(_ context.Context, id uint64) (*models.Handover, error) {
	return f.byID[id], nil
}

func (f *fakeHandovers) SetHandoverStatus(_ context.Context, id uint64, status string) error {
	if f.statuses == nil {
		f.statuses = map[uint64]string{}
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeHandovers) ListHandovers(_ context.Context, _ time.Time, _ int) ([]*models.Handover, error) {
	return f.created, nil
}

type fakeEvents struct {
	entries []*models.ParcelEventLogEntry
	gotTN   string
}

func (f *fakeEvents) ListEventLog(_ context.Context, trackingNumber string, _, _ int) ([]*models.ParcelEventLogEntry, error) {
	f.gotTN = trackingNumber
	return f.entries, nil
}

func newTestServer(t *testing.T, up Uploader, sync ShopeeSyncer, h HandoversRepo, ev EventsRepo) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(up, sync, h, ev).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitUpload_RawBody(t *testing.T) {
	up := &fakeUploader{job: &uploads.Job{ID: "job-1", Status: uploads.JobStatusProcessing}}
	srv := newTestServer(t, up, nil, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/uploads?handoverId=7", "text/csv",
		strings.NewReader("TrackingNumber,TplStatus\nABC123,Delivered\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "job-1", body["jobId"])
	require.Equal(t, "processing", body["status"])

	require.NotNil(t, up.handoverID)
	require.Equal(t, uint64(7), *up.handoverID)
}

func TestSubmitUpload_Multipart(t *testing.T) {
	up := &fakeUploader{job: &uploads.Job{ID: "job-2", Status: uploads.JobStatusProcessing}}
	srv := newTestServer(t, up, nil, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "handover.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("workbook-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/uploads", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, up.submitted, 1)
	require.Equal(t, "handover.xlsx:workbook-bytes", up.submitted[0])
	require.Nil(t, up.handoverID)
}

func TestSubmitUpload_InvalidInput(t *testing.T) {
	up := &fakeUploader{submitErr: errors.Wrap(uploads.ErrInvalidUpload, "empty upload body")}
	srv := newTestServer(t, up, nil, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/uploads", "text/csv", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitUpload_BadHandoverID(t *testing.T) {
	up := &fakeUploader{job: &uploads.Job{ID: "x"}}
	srv := newTestServer(t, up, nil, nil, nil)

	resp, err := http.Post(srv.URL+"/v1/uploads?handoverId=nope", "text/csv",
		strings.NewReader("TrackingNumber\nA\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUpload(t *testing.T) {
	result := &uploads.JobResult{UpdatedCount: 3, NotFoundCount: 1, TotalProcessed: 4}
	up := &fakeUploader{jobs: map[string]*uploads.Job{
		"done-job": {ID: "done-job", Status: uploads.JobStatusCompleted, Progress: 100, Result: result},
		"running":  {ID: "running", Status: uploads.JobStatusProcessing, Progress: 40},
	}}
	srv := newTestServer(t, up, nil, nil, nil)

	resp, err := http.Get(srv.URL + "/v1/uploads/done-job")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job uploads.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	require.Equal(t, uploads.JobStatusCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Result)
	require.Equal(t, 3, job.Result.UpdatedCount)

	resp2, err := http.Get(srv.URL + "/v1/uploads/running")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/v1/uploads/ghost")
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestTripsSummary(t *testing.T) {
	srv := newTestServer(t, &fakeUploader{}, nil, nil, nil)

	text := strings.Join([]string{
		"Budi Santoso", "AT1234XYZ", "2024-03-01", "extra", "10", "8", "2",
	}, "\n")
	body := map[string]any{
		"text":   text,
		"source": "courier",
		"roster": []map[string]string{{"name": "Budi Santoso", "vehicleType": "2W"}},
	}
	raw, _ := json.Marshal(body)

	resp, err := http.Post(srv.URL+"/v1/trips/summary", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Couriers []struct {
			Name  string `json:"name"`
			Trips int    `json:"trips"`
			Total int    `json:"total"`
		} `json:"couriers"`
		MissingCouriers []string `json:"missingCouriers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Couriers, 1)
	require.Equal(t, "Budi Santoso", out.Couriers[0].Name)
	require.Equal(t, 10, out.Couriers[0].Total)
	require.Empty(t, out.MissingCouriers)
}

func TestTripsSummary_BadSource(t *testing.T) {
	srv := newTestServer(t, &fakeUploader{}, nil, nil, nil)

	raw, _ := json.Marshal(map[string]any{"text": "something", "source": "tiktok"})
	resp, err := http.Post(srv.URL+"/v1/trips/summary", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestShopeeSync(t *testing.T) {
	syncer := &fakeSyncer{res: shopee.SyncResult{
		UpdatedCount: 2,
		TotalFound:   2,
		ProcessedParcels: []shopee.ProcessedParcel{
			{TrackingNumber: "ABC123", Status: "LMHub_Received", Found: true, RowsUpdated: 2},
		},
	}}
	srv := newTestServer(t, &fakeUploader{}, syncer, nil, nil)

	raw, _ := json.Marshal(map[string]any{
		"trackingNumbers": []string{"abc123"},
		"credentials":     map[string]string{"X-Sap-Access-Token": "tok"},
	})
	resp, err := http.Post(srv.URL+"/v1/shopee/sync", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out shopee.SyncResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, int64(2), out.UpdatedCount)
	require.Equal(t, []string{"abc123"}, syncer.gotTracking)
	require.Equal(t, "tok", syncer.gotCredentials["X-Sap-Access-Token"])
}

func TestShopeeSync_AuthFailure(t *testing.T) {
	syncer := &fakeSyncer{err: shopee.ErrAuthentication}
	srv := newTestServer(t, &fakeUploader{}, syncer, nil, nil)

	raw, _ := json.Marshal(map[string]any{"trackingNumbers": []string{"A"}})
	resp, err := http.Post(srv.URL+"/v1/shopee/sync", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandoverLifecycle(t *testing.T) {
	h := &fakeHandovers{byID: map[uint64]*models.Handover{}}
	srv := newTestServer(t, &fakeUploader{}, nil, h, nil)

	raw, _ := json.Marshal(map[string]any{"fileName": "monday.xlsx", "platform": "shopee"})
	resp, err := http.Post(srv.URL+"/v1/handovers", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Equal(t, float64(1), created["id"])
	require.Equal(t, models.HandoverStatusPending, created["status"])

	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/v1/handovers/1/status",
		strings.NewReader(`{"status":"done"}`))
	req.Header.Set("Content-Type", "application/json")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	require.Equal(t, models.HandoverStatusDone, h.statuses[1])

	req3, _ := http.NewRequest(http.MethodPatch, srv.URL+"/v1/handovers/1/status",
		strings.NewReader(`{"status":"archived"}`))
	req3.Header.Set("Content-Type", "application/json")
	resp3, err := http.DefaultClient.Do(req3)
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestGetHandover_NotFound(t *testing.T) {
	h := &fakeHandovers{byID: map[uint64]*models.Handover{}}
	srv := newTestServer(t, &fakeUploader{}, nil, h, nil)

	resp, err := http.Get(srv.URL + "/v1/handovers/99")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListParcelEvents(t *testing.T) {
	ev := &fakeEvents{entries: []*models.ParcelEventLogEntry{
		{TrackingNumber: "ABC123", UpdatedBy: "Jane", FromStatus: "Pending", NewStatus: "Delivered"},
	}}
	srv := newTestServer(t, &fakeUploader{}, nil, nil, ev)

	resp, err := http.Get(srv.URL + "/v1/parcels/abc123/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Tracking numbers are upper-cased before the lookup.
	require.Equal(t, "ABC123", ev.gotTN)

	var out struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Events, 1)
	require.Equal(t, "Delivered", out.Events[0]["newStatus"])
}
