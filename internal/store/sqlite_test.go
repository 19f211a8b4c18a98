package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundline/pricesync/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_JobLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestSQLite(t)

	job := testJob("job-1", model.JobStatusProcessing, time.Now().UTC())
	job.Errors = []string{"parse warning"}
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	assert.Equal(t, []string{"parse warning"}, got.Errors)

	job.Status = model.JobStatusCompleted
	job.CurrentStep = model.StepComplete
	job.Report = &model.Report{Success: true, Summary: model.ReportSummary{Total: 5, ExactMatches: 5}}
	require.NoError(t, s.UpdateJob(ctx, job))

	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Report)
	assert.Equal(t, 5, got.Report.Summary.ExactMatches)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestSQLite(t)

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateJob(ctx, testJob("missing", model.JobStatusFailed, time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListJobsByStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestSQLite(t)

	base := time.Now().UTC()
	require.NoError(t, s.CreateJob(ctx, testJob("a", model.JobStatusCompleted, base.Add(-time.Hour))))
	require.NoError(t, s.CreateJob(ctx, testJob("b", model.JobStatusFailed, base)))

	failed, err := s.ListJobs(ctx, JobFilter{Status: model.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)

	all, err := s.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "newest first")
}

func TestSQLiteStore_ReportCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestSQLite(t)

	report := &model.Report{Success: true, Method: "fast", Approximate: true, Summary: model.ReportSummary{Total: 20}}
	require.NoError(t, s.SetCachedReport(ctx, "last", report, time.Hour))

	got, err := s.GetCachedReport(ctx, "last")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Approximate)
	assert.Equal(t, 20, got.Summary.Total)

	// Overwrite on the same key.
	report.Summary.Total = 25
	require.NoError(t, s.SetCachedReport(ctx, "last", report, time.Hour))
	got, err = s.GetCachedReport(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, 25, got.Summary.Total)

	// Already-expired entries are invisible and reaped.
	require.NoError(t, s.SetCachedReport(ctx, "stale", report, -time.Minute))
	gone, err := s.GetCachedReport(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, gone)

	deleted, err := s.DeleteExpiredReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}
