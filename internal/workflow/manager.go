// Package workflow runs the end-to-end pricelist pipeline as a tracked job:
// upload, extract, parse, validate, compare, automation, complete. Job state
// is persisted after every stage so callers can poll progress by id.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/automation"
	"github.com/soundline/pricesync/internal/extract"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/internal/parser"
	"github.com/soundline/pricesync/internal/reconcile"
	"github.com/soundline/pricesync/internal/store"
	"github.com/soundline/pricesync/internal/validate"
)

// reportCacheKey is where the most recent report is cached for quick
// re-reads.
const reportCacheKey = "last_report"

// Deps are the collaborators a Manager drives. Automator is optional; when
// nil the automation stage is skipped.
type Deps struct {
	Store        store.Store
	Extractor    extract.Extractor
	Parser       *parser.Parser
	Validator    *validate.Validator
	Orchestrator *reconcile.Orchestrator
	Automator    *automation.Automator
	CacheTTL     time.Duration

	// Fast switches the compare stage to sampled reconciliation with
	// extrapolated totals.
	Fast bool
}

// Manager owns job lifecycle: starting runs, tracking status, and
// cancelling in-flight work between stages.
type Manager struct {
	deps Deps

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewManager creates a Manager. A zero cache TTL defaults to 30 minutes.
func NewManager(deps Deps) *Manager {
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 30 * time.Minute
	}
	return &Manager{
		deps:    deps,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Run processes one pricelist synchronously and returns the finished job.
func (m *Manager) Run(ctx context.Context, path string) (*model.Job, error) {
	job, err := m.createJob(ctx, path)
	if err != nil {
		return nil, err
	}
	m.process(ctx, job, path)
	return m.Status(ctx, job.ID)
}

// Start kicks off a background run and returns the pending job immediately.
// Progress is polled via Status.
func (m *Manager) Start(ctx context.Context, path string) (*model.Job, error) {
	job, err := m.createJob(ctx, path)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.cancels, job.ID)
			m.mu.Unlock()
			cancel()
		}()
		m.process(runCtx, job, path)
	}()

	return job, nil
}

// Cancel requests cancellation of a running job. The job stops at the next
// stage boundary.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[jobID]
	m.mu.Unlock()
	if !ok {
		return eris.Errorf("workflow: job %s is not running", jobID)
	}
	cancel()
	return nil
}

// Status returns the current state of a job.
func (m *Manager) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return m.deps.Store.GetJob(ctx, jobID)
}

// List returns job summaries matching the filter.
func (m *Manager) List(ctx context.Context, filter store.JobFilter) ([]model.JobSummary, error) {
	return m.deps.Store.ListJobs(ctx, filter)
}

// LastReport returns the most recently cached reconciliation report, or nil
// when none is cached.
func (m *Manager) LastReport(ctx context.Context) (*model.Report, error) {
	return m.deps.Store.GetCachedReport(ctx, reportCacheKey)
}

func (m *Manager) createJob(ctx context.Context, path string) (*model.Job, error) {
	job := &model.Job{
		ID:          uuid.New().String(),
		Filename:    filepath.Base(path),
		Status:      model.JobStatusPending,
		CurrentStep: model.StepUpload,
		StartedAt:   time.Now().UTC(),
	}
	if err := m.deps.Store.CreateJob(ctx, *job); err != nil {
		return nil, eris.Wrap(err, "workflow: create job")
	}
	return job, nil
}

// process walks the job through every stage. It never panics out; an
// internal panic fails the job instead.
func (m *Manager) process(ctx context.Context, job *model.Job, path string) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("workflow: job panicked", zap.String("job_id", job.ID), zap.Any("panic", r))
			m.fail(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job.Status = model.JobStatusProcessing
	m.persist(ctx, job)

	// Extract.
	if !m.advance(ctx, job, model.StepExtract) {
		return
	}
	extraction := m.deps.Extractor.Extract(ctx, path)
	if !extraction.Success {
		m.fail(ctx, job, "extraction failed: "+extraction.Error)
		return
	}

	// Parse.
	if !m.advance(ctx, job, model.StepParse) {
		return
	}
	parsed := m.deps.Parser.Parse(extraction.Text)
	if !parsed.Success {
		m.fail(ctx, job, "parsing failed: "+parsed.Error)
		return
	}
	job.ProductsExtracted = len(parsed.Products)
	if len(parsed.Products) == 0 {
		job.Warnings = append(job.Warnings, "no products found in document")
	}

	// Validate: clean every record, drop invalid ones. Rejection is a
	// data-quality outcome, not an error.
	if !m.advance(ctx, job, model.StepValidate) {
		return
	}
	cleaned := make([]model.ProductRecord, len(parsed.Products))
	for i, rec := range parsed.Products {
		cleaned[i] = m.deps.Validator.Clean(rec)
	}
	batch := m.deps.Validator.ValidateBatch(cleaned)
	var valid []model.ProductRecord
	for i, rec := range cleaned {
		if batch.Results[i].IsValid {
			valid = append(valid, rec)
		}
	}
	if batch.InvalidCount > 0 {
		job.Warnings = append(job.Warnings,
			fmt.Sprintf("%d of %d records rejected by validation (quality: %s)",
				batch.InvalidCount, batch.Total, batch.QualityRating))
	}

	// Compare.
	if !m.advance(ctx, job, model.StepCompare) {
		return
	}
	var report model.Report
	if m.deps.Fast {
		report = m.deps.Orchestrator.RunFast(ctx, valid)
	} else {
		report = m.deps.Orchestrator.Run(ctx, valid)
	}
	job.Report = &report
	job.ProductsMissing = report.Summary.Missing
	if err := m.deps.Store.SetCachedReport(ctx, reportCacheKey, &report, m.deps.CacheTTL); err != nil {
		zap.L().Warn("workflow: cache report", zap.Error(err))
	}

	// Automation.
	if m.deps.Automator != nil && len(report.MissingProducts) > 0 {
		if !m.advance(ctx, job, model.StepAutomation) {
			return
		}
		summary := m.deps.Automator.CreateMissing(ctx, report.MissingProducts)
		job.ProductsCreated = summary.Created
		if summary.Failed > 0 {
			job.Warnings = append(job.Warnings,
				fmt.Sprintf("%d of %d product creations failed", summary.Failed, summary.Attempted))
		}
	}

	// Complete.
	if !m.advance(ctx, job, model.StepComplete) {
		return
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	m.persist(ctx, job)

	zap.L().Info("workflow: job completed",
		zap.String("job_id", job.ID),
		zap.String("filename", job.Filename),
		zap.Int("extracted", job.ProductsExtracted),
		zap.Int("missing", job.ProductsMissing),
		zap.Int("created", job.ProductsCreated),
	)
}

// advance moves the job to the next stage, honoring cancellation at the
// boundary.
func (m *Manager) advance(ctx context.Context, job *model.Job, step model.JobStep) bool {
	if ctx.Err() != nil {
		now := time.Now().UTC()
		job.Status = model.JobStatusCancelled
		job.CompletedAt = &now
		m.persist(ctx, job)
		zap.L().Info("workflow: job cancelled",
			zap.String("job_id", job.ID),
			zap.String("at_step", string(job.CurrentStep)),
		)
		return false
	}
	job.CurrentStep = step
	m.persist(ctx, job)
	return true
}

func (m *Manager) fail(ctx context.Context, job *model.Job, msg string) {
	now := time.Now().UTC()
	job.Status = model.JobStatusFailed
	job.CompletedAt = &now
	job.Errors = append(job.Errors, msg)
	m.persist(ctx, job)
	zap.L().Error("workflow: job failed",
		zap.String("job_id", job.ID),
		zap.String("reason", msg),
	)
}

// persist writes job state; persistence problems are logged, never allowed
// to kill a run mid-flight.
func (m *Manager) persist(ctx context.Context, job *model.Job) {
	if err := m.deps.Store.UpdateJob(context.WithoutCancel(ctx), *job); err != nil {
		zap.L().Warn("workflow: persist job",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}
