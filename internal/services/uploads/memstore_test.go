package uploads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemStore_Lifecycle(t *testing.T) {
	s := NewMemStore(time.Hour)
	ctx := context.Background()

	job := &Job{ID: "j1", Status: JobStatusProcessing, StartedAt: time.Now().UTC()}
	require.NoError(t, s.Create(ctx, job))
	require.Error(t, s.Create(ctx, job)) // duplicate id

	got, ok, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, JobStatusProcessing, got.Status)
	require.Zero(t, got.Progress)

	require.NoError(t, s.UpdateProgress(ctx, "j1", 40))
	// Progress never moves backwards.
	require.NoError(t, s.UpdateProgress(ctx, "j1", 10))
	got, _, _ = s.Get(ctx, "j1")
	require.Equal(t, 40, got.Progress)

	require.NoError(t, s.SetCompleted(ctx, "j1", JobResult{UpdatedCount: 3, TotalProcessed: 5}))
	got, _, _ = s.Get(ctx, "j1")
	require.Equal(t, JobStatusCompleted, got.Status)
	require.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	require.Equal(t, 3, got.Result.UpdatedCount)
	require.NotNil(t, got.FinishedAt)

	// Terminal jobs are immutable.
	require.NoError(t, s.UpdateProgress(ctx, "j1", 50))
	require.Error(t, s.SetFailed(ctx, "j1", "late"))
	got, _, _ = s.Get(ctx, "j1")
	require.Equal(t, 100, got.Progress)
	require.Equal(t, JobStatusCompleted, got.Status)
}

func TestMemStore_UnknownJob(t *testing.T) {
	s := NewMemStore(time.Hour)
	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, s.UpdateProgress(context.Background(), "nope", 10))
	require.Error(t, s.SetCompleted(context.Background(), "nope", JobResult{}))
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	s := NewMemStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &Job{ID: "j1", Status: JobStatusProcessing}))

	got, _, _ := s.Get(ctx, "j1")
	got.Progress = 77

	again, _, _ := s.Get(ctx, "j1")
	require.Zero(t, again.Progress)
}

func TestMemStore_SweepExpired(t *testing.T) {
	s := NewMemStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &Job{ID: "done", Status: JobStatusProcessing}))
	require.NoError(t, s.SetFailed(ctx, "done", "boom"))
	require.NoError(t, s.Create(ctx, &Job{ID: "running", Status: JobStatusProcessing}))

	// Before the window: both still visible.
	require.NoError(t, s.SweepExpired(ctx, time.Now().UTC()))
	_, ok, _ := s.Get(ctx, "done")
	require.True(t, ok)

	// Past the window: terminal job gone, running job kept.
	require.NoError(t, s.SweepExpired(ctx, time.Now().UTC().Add(2*time.Hour)))
	_, ok, _ = s.Get(ctx, "done")
	require.False(t, ok)
	_, ok, _ = s.Get(ctx, "running")
	require.True(t, ok)
}

func TestNewJobID_Unique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		id := NewJobID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
