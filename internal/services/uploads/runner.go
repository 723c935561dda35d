package uploads

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/LoadBay/HandoverDesk/internal/ingest"
	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/LoadBay/HandoverDesk/internal/services/recon"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const sampleNotFoundLimit = 5

// ErrInvalidUpload marks input-shape rejections made before a job is
// created. Callers can map it to a client error.
var ErrInvalidUpload = errors.New("invalid upload")

// progressSteps tunes how often a running job reports progress: roughly
// this many updates over the whole run, plus always on the final record.
const progressSteps = 15

type Reconciler interface {
	ApplyRecord(ctx context.Context, rec models.UpdateRecord, handoverID *uint64) (recon.Result, error)
}

type ExportsRepo interface {
	CreateExport(ctx context.Context, exp *models.Export) error
}

type Metrics interface {
	JobStarted()
	JobFinished(status string)
	RecordsProcessed(n int)
}

// Service turns an uploaded file into a tracked background job that
// reconciles every row sequentially. Submission returns immediately; the
// caller polls the store.
type Service struct {
	store      JobStore
	reconciler Reconciler
	exports    ExportsRepo
	metrics    Metrics
}

func New(store JobStore, reconciler Reconciler, exports ExportsRepo, metrics Metrics) *Service {
	return &Service{store: store, reconciler: reconciler, exports: exports, metrics: metrics}
}

// Submit validates the input shape, registers a processing job and spawns
// the batch run. handoverID scopes every lookup to that handover; nil
// means global.
func (s *Service) Submit(ctx context.Context, fileName string, content []byte, handoverID *uint64) (*Job, error) {
	if len(content) == 0 {
		return nil, errors.Wrap(ErrInvalidUpload, "empty upload body")
	}
	isXLSX := strings.HasSuffix(strings.ToLower(fileName), ".xlsx")
	if !isXLSX && countLines(string(content)) < 2 {
		return nil, errors.Wrap(ErrInvalidUpload, "upload needs a header row and at least one data row")
	}

	job := &Job{
		ID:         NewJobID(),
		Status:     JobStatusProcessing,
		Progress:   0,
		HandoverID: handoverID,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, errors.Wrap(err, "create job")
	}

	if s.metrics != nil {
		s.metrics.JobStarted()
	}

	// Fire and forget: the run outlives the submitting request, so it
	// gets its own context. The store is the only channel back to pollers.
	go s.run(context.Background(), job.ID, fileName, content, handoverID, isXLSX)

	return job, nil
}

// Get returns the job snapshot, reporting ok=false for unknown or
// expired ids.
func (s *Service) Get(ctx context.Context, id string) (*Job, bool, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) run(ctx context.Context, jobID, fileName string, content []byte, handoverID *uint64, isXLSX bool) {
	records, err := s.parse(fileName, content, isXLSX)
	if err != nil {
		slog.Error("upload parse failed", "job_id", jobID, "file", fileName, "error", err.Error())
		s.fail(ctx, jobID, "could not parse uploaded file")
		return
	}
	if len(records) == 0 {
		s.fail(ctx, jobID, "upload needs a header row and at least one data row")
		return
	}

	total := len(records)
	step := total / progressSteps
	if step < 1 {
		step = 1
	}

	result := JobResult{
		SampleNotFound: []string{},
		TotalProcessed: total,
		ExportName:     fileName,
		HandoverID:     handoverID,
	}

	for i, rec := range records {
		res, err := s.reconciler.ApplyRecord(ctx, rec, handoverID)
		switch {
		case err != nil:
			// One bad row never aborts the batch; it is counted and the
			// loop moves on.
			result.ErrorCount++
			slog.Warn("reconcile record", "job_id", jobID, "tracking_number", rec.TrackingNumber, "error", err.Error())
		case res.Skipped:
			// Empty tracking number: neither found nor not-found.
		case !res.Matched:
			result.NotFoundCount++
			if len(result.SampleNotFound) < sampleNotFoundLimit {
				result.SampleNotFound = append(result.SampleNotFound, ingest.NormalizeTrackingNumber(rec.TrackingNumber))
			}
		default:
			result.UpdatedCount += int(res.RowsUpdated)
		}

		if (i+1)%step == 0 || i == total-1 {
			pct := (i + 1) * 100 / total
			if pct > 99 {
				pct = 99 // 100 is reserved for the terminal state
			}
			if err := s.store.UpdateProgress(ctx, jobID, pct); err != nil {
				slog.Warn("update job progress", "job_id", jobID, "error", err.Error())
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordsProcessed(total)
	}

	exp := &models.Export{
		ID:         uuid.NewString(),
		FileName:   fileName,
		HandoverID: handoverID,
		RowCount:   total,
	}
	if err := s.exports.CreateExport(ctx, exp); err != nil {
		slog.Error("create export marker", "job_id", jobID, "error", err.Error())
		s.fail(ctx, jobID, "upload processed but could not be recorded")
		return
	}
	result.ExportID = exp.ID

	if err := s.store.SetCompleted(ctx, jobID, result); err != nil {
		slog.Error("complete job", "job_id", jobID, "error", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.JobFinished(string(JobStatusCompleted))
	}
	slog.Info("upload job completed",
		"job_id", jobID,
		"file", fileName,
		"updated", result.UpdatedCount,
		"not_found", result.NotFoundCount,
		"errors", result.ErrorCount,
		"total", result.TotalProcessed,
	)
}

func (s *Service) parse(fileName string, content []byte, isXLSX bool) ([]models.UpdateRecord, error) {
	if isXLSX {
		return ingest.ParseUpdateXLSX(content)
	}
	return ingest.ParseUpdateCSV(string(content)), nil
}

func (s *Service) fail(ctx context.Context, jobID, msg string) {
	if err := s.store.SetFailed(ctx, jobID, msg); err != nil {
		slog.Error("fail job", "job_id", jobID, "error", err.Error())
	}
	if s.metrics != nil {
		s.metrics.JobFinished(string(JobStatusFailed))
	}
}

func countLines(text string) int {
	n := 0
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
