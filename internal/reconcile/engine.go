// Package reconcile matches parsed product records against the remote
// catalog and classifies each record as found, priced differently, or
// missing.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

// Searcher is the catalog search boundary the engine depends on. An empty
// result slice is a successful search; a non-nil error means the term could
// not be searched at all.
type Searcher interface {
	Search(ctx context.Context, term string) ([]model.CatalogEntry, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, term string) ([]model.CatalogEntry, error)

func (f SearcherFunc) Search(ctx context.Context, term string) ([]model.CatalogEntry, error) {
	return f(ctx, term)
}

const maxClosestMatches = 3

// Engine reconciles single records against the catalog. It holds no state
// across records.
type Engine struct {
	searcher Searcher
	cfg      config.ReconcileConfig
}

// NewEngine creates an Engine. Zero-valued thresholds fall back to the
// defaults (match threshold 0.7, price tolerance 5%).
func NewEngine(searcher Searcher, cfg config.ReconcileConfig) *Engine {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.7
	}
	if cfg.PriceTolerancePercent <= 0 {
		cfg.PriceTolerancePercent = 5.0
	}
	return &Engine{searcher: searcher, cfg: cfg}
}

// Reconcile classifies one record. It issues one search per generated term,
// collects every returned entry, scores them all, and decides on the
// globally best candidate. Term-level search failures are returned as error
// strings; they never fail the record, which is force-classified missing
// when nothing comes back.
func (e *Engine) Reconcile(ctx context.Context, rec model.ProductRecord) (model.ReconciliationOutcome, []string) {
	terms := GenerateSearchTerms(rec)

	var searchErrors []string
	var entries []model.CatalogEntry
	seen := make(map[string]bool)

	for _, term := range terms {
		results, err := e.searcher.Search(ctx, term)
		if err != nil {
			zap.L().Warn("reconcile: search term failed",
				zap.String("term", term),
				zap.Error(err),
			)
			searchErrors = append(searchErrors, fmt.Sprintf("search %q: %v", term, err))
			continue
		}
		for _, entry := range results {
			if entry.ID != "" && seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true
			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 {
		return e.zeroCandidateOutcome(rec, terms, searchErrors), searchErrors
	}

	candidates := make([]model.MatchCandidate, 0, len(entries))
	for _, entry := range entries {
		candidates = append(candidates, e.Score(rec, entry))
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].OverallSimilarity > candidates[j].OverallSimilarity
	})
	best := candidates[0]

	outcome := model.ReconciliationOutcome{
		Record:     rec,
		Confidence: best.OverallSimilarity,
	}

	switch decide(best, e.cfg.MatchThreshold, e.cfg.PriceTolerancePercent) {
	case model.StatusMissing:
		outcome.Status = model.StatusMissing
		outcome.Closest = topCandidates(candidates, maxClosestMatches)
		outcome.Recommendations = []string{
			"No close match found - likely a new product",
			fmt.Sprintf("Closest match: %s (similarity %.0f%%)", best.Entry.Name, best.OverallSimilarity*100),
		}
	case model.StatusMatchFound:
		outcome.Status = model.StatusMatchFound
		outcome.Matched = &best.Entry
		outcome.Recommendations = []string{"Product found with matching price"}
	default:
		outcome.Status = model.StatusPriceDifferent
		outcome.Matched = &best.Entry
		outcome.Recommendations = []string{
			fmt.Sprintf("Price differs by %.1f%% - supplier %s vs catalog %s",
				best.PriceDiffPercent, rec.Price.StringFixed(2), best.Entry.Price.StringFixed(2)),
			"Consider updating the catalog price",
		}
	}
	return outcome, searchErrors
}

// decide classifies the best-scoring candidate. At or above the match
// threshold, the price tolerance separates a confirmed match from a price
// discrepancy; below it, the record counts as missing no matter how many
// weak candidates were seen.
func decide(best model.MatchCandidate, threshold, tolerancePct float64) model.MatchStatus {
	if best.OverallSimilarity < threshold {
		return model.StatusMissing
	}
	if best.PriceDiffPercent <= tolerancePct {
		return model.StatusMatchFound
	}
	return model.StatusPriceDifferent
}

// zeroCandidateOutcome handles the case where no search term returned any
// entry. The recommendation distinguishes "every search call failed" from
// "searches worked but the catalog has nothing like this".
func (e *Engine) zeroCandidateOutcome(rec model.ProductRecord, terms, searchErrors []string) model.ReconciliationOutcome {
	recommendation := "Product not found in store - consider adding it"
	if len(terms) > 0 && len(searchErrors) == len(terms) {
		recommendation = "All catalog searches failed - result is unreliable, check catalog connectivity"
	}
	return model.ReconciliationOutcome{
		Record:          rec,
		Status:          model.StatusMissing,
		Confidence:      0,
		Recommendations: []string{recommendation},
	}
}

// Score computes the match candidate for one (record, entry) pair.
func (e *Engine) Score(rec model.ProductRecord, entry model.CatalogEntry) model.MatchCandidate {
	nameSim := similarityRatio(rec.Name, entry.Name)
	modelSim := similarityRatio(rec.Model, entry.Model)
	return model.MatchCandidate{
		Entry:             entry,
		NameSimilarity:    nameSim,
		ModelSimilarity:   modelSim,
		OverallSimilarity: overallSimilarity(nameSim, modelSim),
		PriceDiffPercent:  priceDiffPercent(rec.Price, entry.Price),
	}
}

// overallSimilarity blends name and model similarity. A strongly agreeing
// model number dominates; otherwise the name carries more weight.
func overallSimilarity(nameSim, modelSim float64) float64 {
	if modelSim > 0.8 {
		return 0.8*modelSim + 0.2*nameSim
	}
	return 0.7*nameSim + 0.3*modelSim
}

// priceDiffPercent is the absolute price difference relative to the
// record's price. A zero record price yields 0 rather than dividing by zero.
func priceDiffPercent(recordPrice, entryPrice decimal.Decimal) float64 {
	if recordPrice.IsZero() {
		return 0
	}
	diff := recordPrice.Sub(entryPrice).Abs()
	pct, _ := diff.Div(recordPrice).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func topCandidates(sorted []model.MatchCandidate, n int) []model.MatchCandidate {
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]model.MatchCandidate, len(sorted))
	copy(out, sorted)
	return out
}
