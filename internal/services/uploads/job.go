package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultRetention is how long a terminal job stays queryable.
const DefaultRetention = time.Hour

// JobResult is the summary attached to a completed job.
type JobResult struct {
	UpdatedCount   int      `json:"updatedCount"`
	NotFoundCount  int      `json:"notFoundCount"`
	ErrorCount     int      `json:"errorCount"`
	TotalProcessed int      `json:"totalProcessed"`
	SampleNotFound []string `json:"sampleNotFound"`
	ExportID       string   `json:"exportId"`
	ExportName     string   `json:"exportName"`
	HandoverID     *uint64  `json:"handoverId,omitempty"`
}

// Job is the process-lifetime record of one batch upload. Only the
// goroutine that owns the job mutates it (via the store); pollers only
// observe. Terminal jobs are immutable.
type Job struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	Progress   int        `json:"progress"`
	Result     *JobResult `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	HandoverID *uint64    `json:"handoverId,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (j *Job) terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// NewJobID builds an identifier unique with high probability across
// concurrent submissions.
func NewJobID() string {
	return fmt.Sprintf("%d-%s", time.Now().UTC().UnixMilli(), uuid.NewString()[:8])
}

// JobStore tracks upload jobs. The in-memory implementation is the
// default; the Redis one lets several instances share state without
// changing callers.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	// Get returns (nil, false, nil) for unknown or expired job ids.
	Get(ctx context.Context, id string) (*Job, bool, error)
	// UpdateProgress never moves progress backwards and is a no-op on
	// terminal jobs.
	UpdateProgress(ctx context.Context, id string, progress int) error
	SetCompleted(ctx context.Context, id string, result JobResult) error
	SetFailed(ctx context.Context, id string, msg string) error
	// SweepExpired drops terminal jobs past the retention window.
	SweepExpired(ctx context.Context, now time.Time) error
}
