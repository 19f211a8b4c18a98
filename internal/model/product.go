// Package model defines the shared data types for the pricelist
// reconciliation pipeline.
package model

import (
	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to records that carry no currency code.
const DefaultCurrency = "ZAR"

// DefaultCategory is applied to records whose category cannot be detected.
const DefaultCategory = "Audio Equipment"

// ProductRecord is a candidate product parsed from pricelist text.
// Once validated it is treated as immutable.
type ProductRecord struct {
	Name           string           `json:"name"`
	Model          string           `json:"model,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	OldPrice       *decimal.Decimal `json:"old_price,omitempty"`
	Currency       string           `json:"currency"`
	Category       string           `json:"category"`
	Brand          string           `json:"brand,omitempty"`
	Specifications string           `json:"specifications,omitempty"`
	Features       []string         `json:"features,omitempty"`
}

// CatalogEntry is a product as it exists in the remote catalog.
// Read-only from the reconciliation core's perspective.
type CatalogEntry struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Model string          `json:"model,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// MatchCandidate scores one (record, entry) pair during a reconciliation
// pass. It is never persisted.
type MatchCandidate struct {
	Entry             CatalogEntry `json:"entry"`
	NameSimilarity    float64      `json:"name_similarity"`
	ModelSimilarity   float64      `json:"model_similarity"`
	OverallSimilarity float64      `json:"overall_similarity"`
	PriceDiffPercent  float64      `json:"price_difference_percent"`
}

// MatchStatus classifies the outcome of reconciling one record.
type MatchStatus string

const (
	StatusMatchFound     MatchStatus = "match_found"
	StatusPriceDifferent MatchStatus = "price_different"
	StatusMissing        MatchStatus = "missing"
)

// ReconciliationOutcome is the terminal result for one ProductRecord in one
// reconciliation run. It is replaced wholesale on the next run.
type ReconciliationOutcome struct {
	Record          ProductRecord    `json:"record"`
	Status          MatchStatus      `json:"status"`
	Matched         *CatalogEntry    `json:"matched_entry,omitempty"`
	Closest         []MatchCandidate `json:"closest_matches,omitempty"`
	Confidence      float64          `json:"confidence"`
	Recommendations []string         `json:"recommendations"`
}

// ReportSummary aggregates outcome counts for a batch.
// SearchErrors is informational and not mutually exclusive with Missing.
type ReportSummary struct {
	Total            int `json:"total"`
	ExactMatches     int `json:"exact_matches"`
	PriceDifferences int `json:"price_differences"`
	Missing          int `json:"missing"`
	SearchErrors     int `json:"search_errors"`
}

// Report is the JSON-serializable output of a batch reconciliation.
// Approximate marks reports whose summary counts were extrapolated from a
// sampled prefix rather than measured over the whole batch.
type Report struct {
	Success          bool                    `json:"success"`
	Method           string                  `json:"method"`
	Approximate      bool                    `json:"approximate,omitempty"`
	Summary          ReportSummary           `json:"summary"`
	MissingProducts  []ProductRecord         `json:"missing_products"`
	PriceDifferences []ReconciliationOutcome `json:"price_differences"`
	ExactMatches     []ReconciliationOutcome `json:"exact_matches"`
	DetailedResults  []ReconciliationOutcome `json:"detailed_results"`
	SearchErrors     []string                `json:"search_errors"`
}
