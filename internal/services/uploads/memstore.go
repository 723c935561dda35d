package uploads

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemStore keeps jobs in a process-local map guarded by a mutex. Jobs
// vanish on restart; that matches the contract (clients re-submit on an
// unknown job id).
type MemStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
}

func NewMemStore(retention time.Duration) *MemStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemStore{
		jobs:      make(map[string]*Job),
		retention: retention,
	}
}

func (s *MemStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return errors.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *j
	return &cp, true, nil
}

func (s *MemStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.Errorf("job %s not found", id)
	}
	if j.terminal() {
		return nil
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

func (s *MemStore) SetCompleted(ctx context.Context, id string, result JobResult) error {
	return s.finish(id, func(j *Job) {
		j.Status = JobStatusCompleted
		j.Progress = 100
		j.Result = &result
	})
}

func (s *MemStore) SetFailed(ctx context.Context, id string, msg string) error {
	return s.finish(id, func(j *Job) {
		j.Status = JobStatusFailed
		j.Error = msg
	})
}

func (s *MemStore) finish(id string, apply func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.Errorf("job %s not found", id)
	}
	if j.terminal() {
		return errors.Errorf("job %s already terminal", id)
	}
	apply(j)
	now := time.Now().UTC()
	j.FinishedAt = &now
	return nil
}

func (s *MemStore) SweepExpired(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.FinishedAt != nil && now.Sub(*j.FinishedAt) >= s.retention {
			delete(s.jobs, id)
		}
	}
	return nil
}

// RunSweeper periodically drops expired jobs until the context ends.
func (s *MemStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = s.SweepExpired(ctx, time.Now().UTC())
		}
	}
}
