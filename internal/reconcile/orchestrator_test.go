package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

// catalogStub serves a fixed catalog keyed on the bare model term.
func catalogStub(entries map[string]model.CatalogEntry) Searcher {
	return SearcherFunc(func(_ context.Context, term string) ([]model.CatalogEntry, error) {
		if entry, ok := entries[term]; ok {
			return []model.CatalogEntry{entry}, nil
		}
		return nil, nil
	})
}

func testOrchestrator(s Searcher, opts ...OrchestratorOption) *Orchestrator {
	cfg := config.ReconcileConfig{
		MatchThreshold:        0.7,
		PriceTolerancePercent: 5.0,
		RequestDelayMs:        200,
		FastDelayMs:           50,
		FastSampleSize:        10,
	}
	return NewOrchestrator(NewEngine(s, cfg), cfg, opts...)
}

func record(name, modelNo, price string) model.ProductRecord {
	return model.ProductRecord{Name: name, Model: modelNo, Price: decimal.RequireFromString(price)}
}

func entry(id, name, modelNo, price string) model.CatalogEntry {
	return model.CatalogEntry{ID: id, Name: name, Model: modelNo, Price: decimal.RequireFromString(price)}
}

func TestRun_MixedBatch(t *testing.T) {
	t.Parallel()

	searcher := catalogStub(map[string]model.CatalogEntry{
		"AVR-X1800H": entry("1", "Denon AVR-X1800H AV Receiver", "AVR-X1800H", "15990.00"),
		"RX-V6A":     entry("2", "Yamaha RX-V6A AV Receiver", "RX-V6A", "13999.00"),
	})

	var delays []time.Duration
	o := testOrchestrator(searcher, WithSleep(func(d time.Duration) { delays = append(delays, d) }))

	report := o.Run(context.Background(), []model.ProductRecord{
		record("Denon AVR-X1800H AV Receiver", "AVR-X1800H", "15990.00"),
		record("Yamaha RX-V6A AV Receiver", "RX-V6A", "12499.00"),
		record("Mackie CR5-X Studio Monitors", "CR5-X", "3499.00"),
	})

	assert.True(t, report.Success)
	assert.Equal(t, "full", report.Method)
	assert.False(t, report.Approximate)

	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.ExactMatches)
	assert.Equal(t, 1, report.Summary.PriceDifferences)
	assert.Equal(t, 1, report.Summary.Missing)
	assert.Equal(t, report.Summary.Total,
		report.Summary.ExactMatches+report.Summary.PriceDifferences+report.Summary.Missing)

	assert.Len(t, report.DetailedResults, 3)
	assert.Len(t, report.MissingProducts, 1)
	assert.Equal(t, "Mackie CR5-X Studio Monitors", report.MissingProducts[0].Name)

	// One pacing delay between each pair of records, none after the last.
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestRun_EmptyBatch(t *testing.T) {
	t.Parallel()

	o := testOrchestrator(catalogStub(nil), WithSleep(func(time.Duration) {}))
	report := o.Run(context.Background(), nil)
	assert.True(t, report.Success)
	assert.Equal(t, 0, report.Summary.Total)
	assert.Empty(t, report.DetailedResults)
}

func TestRun_SearchErrorsAreInformational(t *testing.T) {
	t.Parallel()

	searcher := SearcherFunc(func(_ context.Context, _ string) ([]model.CatalogEntry, error) {
		return nil, fmt.Errorf("catalog unreachable")
	})
	o := testOrchestrator(searcher, WithSleep(func(time.Duration) {}))

	report := o.Run(context.Background(), []model.ProductRecord{
		record("Denon AVR-X1800H AV Receiver", "AVR-X1800H", "15990.00"),
		record("Yamaha RX-V6A AV Receiver", "RX-V6A", "12499.00"),
	})

	// A fully unreachable catalog still yields a structured report: all
	// missing, with the error list populated for the caller to notice.
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Summary.Missing)
	assert.Equal(t, report.Summary.Total,
		report.Summary.ExactMatches+report.Summary.PriceDifferences+report.Summary.Missing)
	assert.NotEmpty(t, report.SearchErrors)
	assert.Equal(t, len(report.SearchErrors), report.Summary.SearchErrors)
}

func TestRunFast_ExtrapolatesAndLabels(t *testing.T) {
	t.Parallel()

	searcher := catalogStub(nil) // everything missing
	o := testOrchestrator(searcher, WithSleep(func(time.Duration) {}))

	recs := make([]model.ProductRecord, 30)
	for i := range recs {
		recs[i] = record(fmt.Sprintf("Product Number %d Speaker", i), fmt.Sprintf("PN-%d", i), "100.00")
	}

	report := o.RunFast(context.Background(), recs)
	assert.Equal(t, "fast", report.Method)
	assert.True(t, report.Approximate, "extrapolated counts must be labeled")
	assert.Equal(t, 30, report.Summary.Total)
	assert.Equal(t, 30, report.Summary.Missing)
	assert.Len(t, report.DetailedResults, 10, "details cover only the sampled prefix")
	assert.Equal(t, report.Summary.Total,
		report.Summary.ExactMatches+report.Summary.PriceDifferences+report.Summary.Missing)
}

func TestRunFast_SmallBatchIsExact(t *testing.T) {
	t.Parallel()

	searcher := catalogStub(map[string]model.CatalogEntry{
		"AVR-X1800H": entry("1", "Denon AVR-X1800H AV Receiver", "AVR-X1800H", "15990.00"),
	})
	o := testOrchestrator(searcher, WithSleep(func(time.Duration) {}))

	report := o.RunFast(context.Background(), []model.ProductRecord{
		record("Denon AVR-X1800H AV Receiver", "AVR-X1800H", "15990.00"),
	})
	assert.False(t, report.Approximate)
	assert.Equal(t, 1, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.ExactMatches)
}

func TestRun_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := testOrchestrator(catalogStub(nil), WithSleep(func(time.Duration) {}))
	report := o.Run(ctx, []model.ProductRecord{
		record("Denon AVR-X1800H AV Receiver", "AVR-X1800H", "15990.00"),
	})

	assert.False(t, report.Success)
	require.NotEmpty(t, report.SearchErrors)
	assert.Contains(t, report.SearchErrors[0], "cancelled")
}

func TestExtrapolate_PreservesBatchInvariant(t *testing.T) {
	t.Parallel()

	sampled := model.ReportSummary{Total: 10, ExactMatches: 3, PriceDifferences: 2, Missing: 5, SearchErrors: 1}
	out := extrapolate(sampled, 33)

	assert.Equal(t, 33, out.Total)
	assert.Equal(t, out.Total, out.ExactMatches+out.PriceDifferences+out.Missing)
	assert.Equal(t, 1, out.SearchErrors, "error counts are observed, not extrapolated")
}
