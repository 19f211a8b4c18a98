// Package automation pushes missing products from a reconciliation report
// into the store catalog.
package automation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/pkg/opencart"
)

// categoryIDs maps detected categories to the store's category ids.
var categoryIDs = map[string]string{
	"Speakers":        "20",
	"AV Receivers":    "24",
	"Amplifiers":      "25",
	"Microphones":     "26",
	"Mixers":          "27",
	"Headphones":      "28",
	"Turntables":      "29",
	"Studio Monitors": "30",
	"Audio Equipment": "18",
}

// brandIDs maps brand names to the store's manufacturer ids.
var brandIDs = map[string]string{
	"JBL":            "1",
	"Denon":          "2",
	"Marantz":        "3",
	"Yamaha":         "4",
	"Behringer":      "5",
	"Shure":          "6",
	"Sennheiser":     "7",
	"Pioneer":        "8",
	"Allen & Heath":  "9",
	"QSC":            "10",
	"Mackie":         "11",
	"Audio-Technica": "12",
	"Sony":           "13",
	"Bose":           "14",
	"Polk":           "15",
}

const defaultQuantity = 10

// Result records one creation attempt.
type Result struct {
	Record    model.ProductRecord `json:"record"`
	ProductID string              `json:"product_id,omitempty"`
	Created   bool                `json:"created"`
	Skipped   bool                `json:"skipped,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Summary aggregates a creation run.
type Summary struct {
	Attempted   int      `json:"attempted"`
	Created     int      `json:"created"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	SuccessRate float64  `json:"success_rate"`
	DryRun      bool     `json:"dry_run,omitempty"`
	Results     []Result `json:"results"`
}

// Automator creates catalog products, paced one request at a time.
type Automator struct {
	client opencart.Client
	cfg    config.AutomationConfig
	sleep  func(time.Duration)
}

// Option customizes an Automator.
type Option func(*Automator)

// WithSleep replaces the pacing sleep function (for testing).
func WithSleep(sleep func(time.Duration)) Option {
	return func(a *Automator) { a.sleep = sleep }
}

// New creates an Automator. A zero request delay falls back to one second;
// a zero batch size means no cap per run.
func New(client opencart.Client, cfg config.AutomationConfig, opts ...Option) *Automator {
	if cfg.RequestDelayMs <= 0 {
		cfg.RequestDelayMs = 1000
	}
	a := &Automator{
		client: client,
		cfg:    cfg,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateMissing attempts to create each record in the catalog, in order,
// with a delay between requests (never after the last). Records without a
// usable name or price are skipped, and a single failure never aborts the
// run. In dry-run mode nothing is sent; the summary reports what would have
// been created.
func (a *Automator) CreateMissing(ctx context.Context, records []model.ProductRecord) Summary {
	if a.cfg.BatchSize > 0 && len(records) > a.cfg.BatchSize {
		zap.L().Info("automation: capping run to batch size",
			zap.Int("records", len(records)),
			zap.Int("batch_size", a.cfg.BatchSize),
		)
		records = records[:a.cfg.BatchSize]
	}

	summary := Summary{DryRun: a.cfg.DryRun}
	delay := time.Duration(a.cfg.RequestDelayMs) * time.Millisecond

	for i, rec := range records {
		result := a.createOne(ctx, rec)
		summary.Results = append(summary.Results, result)

		switch {
		case result.Skipped:
			summary.Skipped++
		case result.Created:
			summary.Attempted++
			summary.Created++
		default:
			summary.Attempted++
			summary.Failed++
		}

		if i < len(records)-1 && !result.Skipped && !a.cfg.DryRun {
			a.sleep(delay)
		}
	}

	if summary.Attempted > 0 {
		summary.SuccessRate = float64(summary.Created) / float64(summary.Attempted) * 100
	}
	return summary
}

func (a *Automator) createOne(ctx context.Context, rec model.ProductRecord) Result {
	if rec.Name == "" || !rec.Price.IsPositive() {
		return Result{Record: rec, Skipped: true, Error: "record has no usable name or price"}
	}

	if a.cfg.DryRun {
		zap.L().Info("automation: dry run, would create product",
			zap.String("name", rec.Name),
			zap.String("model", rec.Model),
		)
		return Result{Record: rec, Created: true}
	}

	payload := opencart.NewProduct{
		Name:           rec.Name,
		Model:          rec.Model,
		Price:          rec.Price.StringFixed(2),
		Quantity:       defaultQuantity,
		Status:         1,
		CategoryID:     categoryIDs[rec.Category],
		ManufacturerID: brandIDs[rec.Brand],
		Description:    rec.Specifications,
	}

	id, err := a.client.Create(ctx, payload)
	if err != nil {
		zap.L().Warn("automation: create failed",
			zap.String("name", rec.Name),
			zap.Error(err),
		)
		return Result{Record: rec, Error: err.Error()}
	}

	zap.L().Info("automation: product created",
		zap.String("name", rec.Name),
		zap.String("product_id", id),
	)
	return Result{Record: rec, ProductID: id, Created: true}
}
