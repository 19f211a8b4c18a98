// Package validate normalizes parsed product records and scores their data
// quality before they reach reconciliation.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

// Validation is the quality verdict for a single record. IsValid is true iff
// the record carries no hard errors; Confidence is a [0,1] score where each
// defect subtracts a fixed penalty.
type Validation struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence_score"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// BatchReport aggregates per-record validations.
type BatchReport struct {
	Total             int          `json:"total"`
	ValidCount        int          `json:"valid_count"`
	InvalidCount      int          `json:"invalid_count"`
	AverageConfidence float64      `json:"average_confidence"`
	QualityRating     string       `json:"quality_rating"`
	Results           []Validation `json:"per_record_results"`
}

// disallowedRe strips characters outside the allow-listed punctuation set
// from text fields.
var disallowedRe = regexp.MustCompile(`[^A-Za-z0-9\s.,\-&()/+'":#]`)

// nameStopWords stay lowercase in cleaned names unless they lead the name.
var nameStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "for": true,
	"in": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "with": true,
}

// Validator cleans and scores product records.
type Validator struct {
	cfg config.ValidateConfig
}

// New creates a Validator. Zero-valued knobs fall back to defaults (minimum
// name length 3, minimum plausible price 1.00).
func New(cfg config.ValidateConfig) *Validator {
	if cfg.MinNameLength <= 0 {
		cfg.MinNameLength = 3
	}
	if cfg.MinPrice <= 0 {
		cfg.MinPrice = 1.0
	}
	return &Validator{cfg: cfg}
}

// Clean returns a normalized copy of the record: disallowed characters
// stripped, whitespace collapsed, the name title-cased with a stop-word
// exception list, the model uppercased, the price rounded to two decimal
// places, and currency/category defaulted when unset. Clean is idempotent.
func (v *Validator) Clean(rec model.ProductRecord) model.ProductRecord {
	rec.Name = titleName(collapse(disallowedRe.ReplaceAllString(rec.Name, " ")))
	rec.Model = strings.ToUpper(collapse(rec.Model))
	rec.Brand = collapse(disallowedRe.ReplaceAllString(rec.Brand, " "))
	rec.Specifications = collapse(disallowedRe.ReplaceAllString(rec.Specifications, " "))
	rec.Price = rec.Price.Round(2)
	if rec.OldPrice != nil {
		old := rec.OldPrice.Round(2)
		rec.OldPrice = &old
	}
	if rec.Currency == "" {
		rec.Currency = model.DefaultCurrency
	}
	if rec.Category == "" {
		rec.Category = model.DefaultCategory
	}
	return rec
}

// Validate scores a record. Penalties are independent and cumulative, so a
// record missing both a name and a plausible price bottoms out at exactly 0.
func (v *Validator) Validate(rec model.ProductRecord) Validation {
	result := Validation{Confidence: 1.0}

	if rec.Name == "" {
		result.Errors = append(result.Errors, "product name is missing")
		result.Confidence -= 0.3
	}
	if len(rec.Name) < v.cfg.MinNameLength {
		result.Errors = append(result.Errors,
			fmt.Sprintf("product name shorter than %d characters", v.cfg.MinNameLength))
		result.Confidence -= 0.2
	}
	if !rec.Price.IsPositive() {
		result.Errors = append(result.Errors, "price is missing or not positive")
		result.Confidence -= 0.4
	}
	if rec.Price.InexactFloat64() < v.cfg.MinPrice {
		// The hard error above already covers a non-positive price; the
		// warning text is for positive-but-implausible values only.
		if rec.Price.IsPositive() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("price below %.2f looks suspicious", v.cfg.MinPrice))
		}
		result.Confidence -= 0.1
	}

	result.IsValid = len(result.Errors) == 0
	result.Confidence = clamp01(result.Confidence)
	return result
}

// ValidateBatch validates every record and aggregates counts, average
// confidence, and a banded quality rating.
func (v *Validator) ValidateBatch(recs []model.ProductRecord) BatchReport {
	report := BatchReport{Total: len(recs)}

	var sum float64
	for _, rec := range recs {
		result := v.Validate(rec)
		report.Results = append(report.Results, result)
		sum += result.Confidence
		if result.IsValid {
			report.ValidCount++
		} else {
			report.InvalidCount++
		}
	}
	if report.Total > 0 {
		report.AverageConfidence = sum / float64(report.Total)
	}
	report.QualityRating = qualityRating(report.AverageConfidence)
	return report
}

func qualityRating(avg float64) string {
	switch {
	case avg >= 0.9:
		return "Excellent"
	case avg >= 0.8:
		return "Good"
	case avg >= 0.7:
		return "Fair"
	case avg >= 0.6:
		return "Poor"
	default:
		return "Very Poor"
	}
}

// titleName title-cases a product name. Words carrying digits and all-caps
// acronyms are kept verbatim so model tokens inside names survive cleaning.
func titleName(name string) string {
	caser := cases.Title(language.English)
	words := strings.Fields(name)
	for i, w := range words {
		switch {
		case hasDigit(w):
		case isAcronym(w):
		case i > 0 && nameStopWords[strings.ToLower(w)]:
			words[i] = strings.ToLower(w)
		default:
			words[i] = caser.String(w)
		}
	}
	return strings.Join(words, " ")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func isAcronym(s string) bool {
	letters := 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 2
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
