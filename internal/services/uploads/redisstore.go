package uploads

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// BytesCache is the slice of the Redis client the job store needs.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// processingTTL bounds how long a non-terminal snapshot can linger if the
// owning process dies mid-run.
const processingTTL = 24 * time.Hour

// RedisStore keeps job snapshots in Redis with the retention window as
// TTL, so expiry needs no sweeper and multiple instances can serve polls.
type RedisStore struct {
	cache     BytesCache
	retention time.Duration
}

func NewRedisStore(cache BytesCache, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{cache: cache, retention: retention}
}

func jobKey(id string) string {
	return "upload:job:" + id
}

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	return s.put(ctx, job)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, bool, error) {
	b, ok, err := s.cache.Get(ctx, jobKey(id))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal job")
	}
	return &j, true, nil
}

func (s *RedisStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	j, ok, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("job %s not found", id)
	}
	if j.terminal() || progress <= j.Progress {
		return nil
	}
	j.Progress = progress
	return s.put(ctx, j)
}

func (s *RedisStore) SetCompleted(ctx context.Context, id string, result JobResult) error {
	return s.finish(ctx, id, func(j *Job) {
		j.Status = JobStatusCompleted
		j.Progress = 100
		j.Result = &result
	})
}

func (s *RedisStore) SetFailed(ctx context.Context, id string, msg string) error {
	return s.finish(ctx, id, func(j *Job) {
		j.Status = JobStatusFailed
		j.Error = msg
	})
}

func (s *RedisStore) finish(ctx context.Context, id string, apply func(*Job)) error {
	j, ok, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("job %s not found", id)
	}
	if j.terminal() {
		return errors.Errorf("job %s already terminal", id)
	}
	apply(j)
	now := time.Now().UTC()
	j.FinishedAt = &now
	return s.put(ctx, j)
}

// SweepExpired is a no-op: Redis TTLs expire terminal jobs on their own.
func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) error {
	return nil
}

func (s *RedisStore) put(ctx context.Context, j *Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}
	ttl := processingTTL
	if j.terminal() {
		ttl = s.retention
	}
	return s.cache.Set(ctx, jobKey(j.ID), b, ttl)
}
