// Package store persists workflow jobs and caches reconciliation reports.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

// ErrNotFound is returned when a requested job does not exist.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines persistence for the reconciliation pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job model.Job) error
	UpdateJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.JobSummary, error)

	// Report cache. A missing or expired entry yields (nil, nil), not an
	// error.
	SetCachedReport(ctx context.Context, key string, report *model.Report, ttl time.Duration) error
	GetCachedReport(ctx context.Context, key string) (*model.Report, error)
	DeleteExpiredReports(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New creates a Store for the configured driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "pricesync.db"
		}
		return NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
