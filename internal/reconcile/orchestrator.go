package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

// Orchestrator runs reconciliation across a batch of records, strictly in
// sequence with a fixed delay between records. The pacing is a politeness
// mechanism toward the remote catalog, not a performance knob.
type Orchestrator struct {
	engine     *Engine
	delay      time.Duration
	fastDelay  time.Duration
	fastSample int
	sleep      func(time.Duration)
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSleep replaces the inter-record sleep function. Tests use this to run
// batches without real pacing delays.
func WithSleep(sleep func(time.Duration)) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// NewOrchestrator creates an Orchestrator around an engine. Zero-valued
// pacing knobs fall back to the defaults (200ms delay, 50ms fast delay,
// sample size 10).
func NewOrchestrator(engine *Engine, cfg config.ReconcileConfig, opts ...OrchestratorOption) *Orchestrator {
	if cfg.RequestDelayMs <= 0 {
		cfg.RequestDelayMs = 200
	}
	if cfg.FastDelayMs <= 0 {
		cfg.FastDelayMs = 50
	}
	if cfg.FastSampleSize <= 0 {
		cfg.FastSampleSize = 10
	}
	o := &Orchestrator{
		engine:     engine,
		delay:      time.Duration(cfg.RequestDelayMs) * time.Millisecond,
		fastDelay:  time.Duration(cfg.FastDelayMs) * time.Millisecond,
		fastSample: cfg.FastSampleSize,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run reconciles every record in order and returns the full report. A
// record-level failure becomes a missing outcome plus a batch error; the
// batch itself never aborts early except on context cancellation.
func (o *Orchestrator) Run(ctx context.Context, recs []model.ProductRecord) model.Report {
	report := o.run(ctx, recs, o.delay)
	report.Method = "full"
	return report
}

// RunFast reconciles only a fixed-size prefix of the batch and linearly
// extrapolates the summary counts to the full batch size. The report is
// marked approximate; detailed results cover only the sampled prefix.
func (o *Orchestrator) RunFast(ctx context.Context, recs []model.ProductRecord) model.Report {
	sample := recs
	if len(sample) > o.fastSample {
		sample = sample[:o.fastSample]
	}

	report := o.run(ctx, sample, o.fastDelay)
	report.Method = "fast"

	if len(sample) < len(recs) {
		report.Approximate = true
		report.Summary = extrapolate(report.Summary, len(recs))
		zap.L().Info("reconcile: fast mode extrapolated summary",
			zap.Int("sampled", len(sample)),
			zap.Int("total", len(recs)),
		)
	}
	return report
}

func (o *Orchestrator) run(ctx context.Context, recs []model.ProductRecord, delay time.Duration) model.Report {
	report := model.Report{
		Success: true,
		Summary: model.ReportSummary{Total: len(recs)},
	}

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("reconcile: batch cancelled",
				zap.Int("processed", i),
				zap.Int("total", len(recs)),
			)
			report.Success = false
			report.SearchErrors = append(report.SearchErrors, "batch cancelled: "+err.Error())
			report.Summary.Total = i
			break
		}

		outcome, searchErrors := o.engine.Reconcile(ctx, rec)
		report.SearchErrors = append(report.SearchErrors, searchErrors...)
		report.Summary.SearchErrors += len(searchErrors)
		report.DetailedResults = append(report.DetailedResults, outcome)

		switch outcome.Status {
		case model.StatusMatchFound:
			report.Summary.ExactMatches++
			report.ExactMatches = append(report.ExactMatches, outcome)
		case model.StatusPriceDifferent:
			report.Summary.PriceDifferences++
			report.PriceDifferences = append(report.PriceDifferences, outcome)
		case model.StatusMissing:
			report.Summary.Missing++
			report.MissingProducts = append(report.MissingProducts, outcome.Record)
		}

		// Pace between records, never after the last one.
		if i < len(recs)-1 {
			o.sleep(delay)
		}
	}
	return report
}

// extrapolate scales sampled counts up to the full batch size. Missing is
// derived from the other two so total always equals the sum of the three
// classifications.
func extrapolate(sampled model.ReportSummary, total int) model.ReportSummary {
	if sampled.Total == 0 {
		return model.ReportSummary{Total: total}
	}
	factor := float64(total) / float64(sampled.Total)
	out := model.ReportSummary{
		Total:            total,
		ExactMatches:     int(float64(sampled.ExactMatches)*factor + 0.5),
		PriceDifferences: int(float64(sampled.PriceDifferences)*factor + 0.5),
		SearchErrors:     sampled.SearchErrors,
	}
	out.Missing = total - out.ExactMatches - out.PriceDifferences
	return out
}
