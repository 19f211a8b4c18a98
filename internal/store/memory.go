package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soundline/pricesync/internal/model"
)

// MemoryStore is an in-process Store used for tests and single-shot CLI
// runs. The clock is injectable so cache expiry is testable.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]model.Job
	reports map[string]cachedReport
	now     func() time.Time
}

type cachedReport struct {
	report    model.Report
	expiresAt time.Time
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the store's time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		jobs:    make(map[string]model.Job),
		reports: make(map[string]cachedReport),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) CreateJob(_ context.Context, job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) UpdateJob(_ context.Context, job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]model.JobSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []model.Job
	for _, job := range m.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[filter.Offset:]
	}
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}

	summaries := make([]model.JobSummary, 0, len(jobs))
	for i := range jobs {
		summaries = append(summaries, jobs[i].Summary())
	}
	return summaries, nil
}

func (m *MemoryStore) SetCachedReport(_ context.Context, key string, report *model.Report, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[key] = cachedReport{
		report:    *report,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) GetCachedReport(_ context.Context, key string) (*model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cached, ok := m.reports[key]
	if !ok || !cached.expiresAt.After(m.now()) {
		return nil, nil
	}
	report := cached.report
	return &report, nil
}

func (m *MemoryStore) DeleteExpiredReports(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, cached := range m.reports {
		if !cached.expiresAt.After(m.now()) {
			delete(m.reports, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
