package uploads_api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/LoadBay/HandoverDesk/internal/ingest"
	"github.com/LoadBay/HandoverDesk/internal/integrations/shopee"
	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/LoadBay/HandoverDesk/internal/services/trips"
	"github.com/LoadBay/HandoverDesk/internal/services/uploads"
)

// maxUploadBytes bounds a single upload request body.
const maxUploadBytes = 32 << 20

type Uploader interface {
	Submit(ctx context.Context, fileName string, content []byte, handoverID *uint64) (*uploads.Job, error)
	Get(ctx context.Context, id string) (*uploads.Job, bool, error)
}

type ShopeeSyncer interface {
	SyncFromAPI(ctx context.Context, credentials map[string]string, trackingNumbers []string) (shopee.SyncResult, error)
}

type HandoversRepo interface {
	CreateHandover(ctx context.Context, h *models.Handover) error
	GetHandover(ctx context.Context, id uint64) (*models.Handover, error)
	SetHandoverStatus(ctx context.Context, id uint64, status string) error
	ListHandovers(ctx context.Context, since time.Time, limit int) ([]*models.Handover, error)
}

type EventsRepo interface {
	ListEventLog(ctx context.Context, trackingNumber string, limit, offset int) ([]*models.ParcelEventLogEntry, error)
}

type UploadsAPI struct {
	uploads   Uploader
	syncer    ShopeeSyncer
	handovers HandoversRepo
	events    EventsRepo
}

func New(up Uploader, syncer ShopeeSyncer, handovers HandoversRepo, events EventsRepo) *UploadsAPI {
	return &UploadsAPI{uploads: up, syncer: syncer, handovers: handovers, events: events}
}

func (a *UploadsAPI) Routes(r chi.Router) {
	r.Post("/v1/uploads", a.SubmitUpload)
	r.Get("/v1/uploads/{jobID}", a.GetUpload)
	r.Post("/v1/trips/summary", a.TripsSummary)
	r.Post("/v1/shopee/sync", a.ShopeeSync)
	r.Post("/v1/handovers", a.CreateHandover)
	r.Get("/v1/handovers", a.ListHandovers)
	r.Get("/v1/handovers/{handoverID}", a.GetHandover)
	r.Patch("/v1/handovers/{handoverID}/status", a.SetHandoverStatus)
	r.Get("/v1/parcels/{trackingNumber}/events", a.ListParcelEvents)
}

// SubmitUpload accepts a multipart "file" part (CSV or XLSX) or a raw
// CSV body, registers a background job and returns its id immediately.
// An optional handoverId scopes reconciliation to one handover.
func (a *UploadsAPI) SubmitUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	fileName, content, err := readUploadBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	handoverID, err := optionalHandoverID(r.URL.Query().Get("handoverId"), r.FormValue("handoverId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "handoverId must be a positive integer")
		return
	}

	job, err := a.uploads.Submit(r.Context(), fileName, content, handoverID)
	if err != nil {
		if errors.Is(err, uploads.ErrInvalidUpload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("upload submit failed", "file", fileName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start upload job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// GetUpload is the poll endpoint. Unknown and expired ids both answer
// 404, distinct from a still-processing job.
func (a *UploadsAPI) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, ok, err := a.uploads.Get(r.Context(), id)
	if err != nil {
		slog.Error("job lookup failed", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type tripsSummaryRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Roster []struct {
		Name        string `json:"name"`
		VehicleType string `json:"vehicleType"`
	} `json:"roster"`
}

// TripsSummary parses pasted trip text and rolls it up per courier and
// per day. Nothing is persisted.
func (a *UploadsAPI) TripsSummary(w http.ResponseWriter, r *http.Request) {
	var req tripsSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	roster := make([]trips.RosterEntry, 0, len(req.Roster))
	rosterNames := make([]string, 0, len(req.Roster))
	for _, e := range req.Roster {
		roster = append(roster, trips.RosterEntry{
			Name:        e.Name,
			VehicleType: trips.VehicleType(e.VehicleType),
		})
		rosterNames = append(rosterNames, e.Name)
	}

	var extractor ingest.TripExtractor
	switch strings.ToLower(req.Source) {
	case "", "courier":
		extractor = ingest.NewCourierTripExtractor(rosterNames)
	case "shopee":
		extractor = ingest.ShopeeTripExtractor{}
	default:
		writeError(w, http.StatusBadRequest, "source must be courier or shopee")
		return
	}

	records := extractor.Extract(req.Text)
	writeJSON(w, http.StatusOK, trips.BuildSummary(records, roster))
}

type shopeeSyncRequest struct {
	TrackingNumbers []string          `json:"trackingNumbers"`
	Credentials     map[string]string `json:"credentials"`
}

// ShopeeSync pulls platform statuses for the given shipments and applies
// them through the reconciliation engine in global scope.
func (a *UploadsAPI) ShopeeSync(w http.ResponseWriter, r *http.Request) {
	var req shopeeSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.TrackingNumbers) == 0 {
		writeError(w, http.StatusBadRequest, "trackingNumbers is required")
		return
	}

	res, err := a.syncer.SyncFromAPI(r.Context(), req.Credentials, req.TrackingNumbers)
	if err != nil {
		if errors.Is(err, shopee.ErrAuthentication) {
			writeError(w, http.StatusUnauthorized, "platform session rejected, re-authenticate")
			return
		}
		slog.Error("shopee sync failed", "error", err)
		writeError(w, http.StatusBadGateway, "platform sync failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createHandoverRequest struct {
	FileName     string    `json:"fileName"`
	HandoverDate time.Time `json:"handoverDate"`
	Platform     string    `json:"platform"`
}

func (a *UploadsAPI) CreateHandover(w http.ResponseWriter, r *http.Request) {
	var req createHandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	if req.HandoverDate.IsZero() {
		req.HandoverDate = time.Now().UTC()
	}

	h := &models.Handover{
		FileName:     req.FileName,
		HandoverDate: req.HandoverDate,
		Platform:     req.Platform,
	}
	if err := a.handovers.CreateHandover(r.Context(), h); err != nil {
		slog.Error("create handover failed", "file", req.FileName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create handover")
		return
	}
	writeJSON(w, http.StatusCreated, toHandoverResponse(h))
}

func (a *UploadsAPI) GetHandover(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "handoverID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "handover id must be a positive integer")
		return
	}
	h, err := a.handovers.GetHandover(r.Context(), id)
	if err != nil {
		slog.Error("get handover failed", "handover_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "handover lookup failed")
		return
	}
	if h == nil {
		writeError(w, http.StatusNotFound, "handover not found")
		return
	}
	writeJSON(w, http.StatusOK, toHandoverResponse(h))
}

func (a *UploadsAPI) ListHandovers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	since := time.Now().UTC().AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}

	hs, err := a.handovers.ListHandovers(r.Context(), since, limit)
	if err != nil {
		slog.Error("list handovers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "handover listing failed")
		return
	}
	out := make([]map[string]any, 0, len(hs))
	for _, h := range hs {
		out = append(out, toHandoverResponse(h))
	}
	writeJSON(w, http.StatusOK, map[string]any{"handovers": out})
}

type setHandoverStatusRequest struct {
	Status string `json:"status"`
}

func (a *UploadsAPI) SetHandoverStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "handoverID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "handover id must be a positive integer")
		return
	}
	var req setHandoverStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch req.Status {
	case models.HandoverStatusPending, models.HandoverStatusDone:
	default:
		writeError(w, http.StatusBadRequest, "status must be pending or done")
		return
	}

	if err := a.handovers.SetHandoverStatus(r.Context(), id, req.Status); err != nil {
		slog.Error("set handover status failed", "handover_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update handover")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

func (a *UploadsAPI) ListParcelEvents(w http.ResponseWriter, r *http.Request) {
	trackingNumber := ingest.NormalizeTrackingNumber(chi.URLParam(r, "trackingNumber"))
	if trackingNumber == "" {
		writeError(w, http.StatusBadRequest, "tracking number is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := a.events.ListEventLog(r.Context(), trackingNumber, limit, offset)
	if err != nil {
		slog.Error("event log lookup failed", "tracking_number", trackingNumber, "error", err)
		writeError(w, http.StatusInternalServerError, "event log lookup failed")
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"trackingNumber": e.TrackingNumber,
			"updatedBy":      e.UpdatedBy,
			"fromStatus":     e.FromStatus,
			"newStatus":      e.NewStatus,
			"createdAt":      e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// readUploadBody accepts either multipart/form-data with a "file" part
// or a raw body, returning the file name and content.
func readUploadBody(r *http.Request) (string, []byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errors.New("multipart upload needs a file part")
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, errors.Wrap(err, "read file part")
		}
		return header.Filename, content, nil
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, errors.Wrap(err, "read request body")
	}
	name := r.URL.Query().Get("fileName")
	if name == "" {
		name = "upload.csv"
	}
	return name, content, nil
}

func optionalHandoverID(values ...string) (*uint64, error) {
	for _, v := range values {
		if v == "" {
			continue
		}
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return nil, errors.New("bad handover id")
		}
		return &id, nil
	}
	return nil, nil
}

func toHandoverResponse(h *models.Handover) map[string]any {
	return map[string]any{
		"id":           h.ID,
		"fileName":     h.FileName,
		"handoverDate": h.HandoverDate,
		"status":       h.Status,
		"platform":     h.Platform,
		"createdAt":    h.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
