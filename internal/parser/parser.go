// Package parser turns raw pricelist text into candidate product records.
// The input is layout-agnostic: direct PDF text, OCR output, or flattened
// spreadsheet rows all arrive as plain lines.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

// Result is the outcome of one parse invocation. Success is false only on an
// unexpected internal error; zero products is a valid successful result.
type Result struct {
	Success    bool                  `json:"success"`
	Products   []model.ProductRecord `json:"products"`
	Error      string                `json:"error,omitempty"`
	RawPreview string                `json:"raw_text_preview,omitempty"`
}

// Price-looking tokens: currency-prefixed, thousands-separated, or
// two-decimal-suffixed numeric substrings. The currency prefix must sit at
// the start of the line or after a non-identifier character so the R inside
// model codes like XR18 or SR5015 never reads as a rand sign. Group 1 is the
// boundary character, group 2 the numeric value.
var (
	currencyPriceRe  = regexp.MustCompile(`(^|[^A-Za-z0-9-])(?:R|ZAR|\$)\s*([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?)`)
	thousandsPriceRe = regexp.MustCompile(`\b[0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]{2})?\b`)
	twoDecimalRe     = regexp.MustCompile(`\b[0-9]+\.[0-9]{2}\b`)

	// Model-number shapes: a labeled token (Model: X, Part #: X, SKU: X) or a
	// bare hyphenated code like AVR-X1800H. The label matches in any case but
	// the captured token must be uppercase, so prose after the word "model"
	// is not mistaken for a code.
	modelLabelRe = regexp.MustCompile(`(?i:model|part|sku)[\s#:\-]*([A-Z0-9][A-Z0-9\-]{2,})`)
	modelShapeRe = regexp.MustCompile(`\b[A-Z]{2,}[0-9]*-[A-Z0-9][A-Z0-9\-]*\b`)
)

// Parser extracts ProductRecords from pricelist text.
type Parser struct {
	cfg config.ParserConfig
}

// New creates a Parser with the given configuration. Zero-valued knobs fall
// back to the documented defaults (minimum viable count 5, neighborhood 3).
func New(cfg config.ParserConfig) *Parser {
	if cfg.MinViableCount <= 0 {
		cfg.MinViableCount = 5
	}
	if cfg.Neighborhood <= 0 {
		cfg.Neighborhood = 3
	}
	return &Parser{cfg: cfg}
}

// Parse scans the text and returns all product candidates it can recover.
// It never panics past this boundary.
func (p *Parser) Parse(text string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("parser: internal error", zap.Any("panic", r))
			result = Result{
				Success:    false,
				Error:      fmt.Sprintf("parsing failed: %v", r),
				RawPreview: preview(text, 200),
			}
		}
	}()

	lines := collectLines(text)

	products := p.scan(lines, openStrict)

	// Looser second pass when the strict scan comes up short: drop the
	// keyword requirement, accept any line with both a model token and a
	// currency-prefixed price. The pass producing more candidates wins.
	if len(products) < p.cfg.MinViableCount {
		loose := p.scan(lines, openLoose)
		if len(loose) > len(products) {
			zap.L().Debug("parser: loose pass won",
				zap.Int("strict", len(products)),
				zap.Int("loose", len(loose)),
			)
			products = loose
		}
	}

	return Result{
		Success:    true,
		Products:   products,
		RawPreview: preview(text, 500),
	}
}

// candidate accumulates field values for one in-progress product. Fields are
// first-wins; prices collect into a set and are resolved at finalization.
type candidate struct {
	rec      model.ProductRecord
	openLine int
	prices   []decimal.Decimal
	seen     map[string]bool
	features map[string]bool
}

// scan runs one line-scanning pass. opens decides whether a line starts a new
// candidate.
func (p *Parser) scan(lines []string, opens func(string) bool) []model.ProductRecord {
	var out []model.ProductRecord
	var cur *candidate

	finalize := func() {
		if cur == nil {
			return
		}
		if len(cur.prices) == 0 {
			p.harvestNeighborhood(cur, lines)
		}
		if rec, ok := cur.resolve(); ok {
			out = append(out, rec)
		}
		cur = nil
	}

	for i, line := range lines {
		if opens(line) {
			finalize()
			cur = newCandidate(line, i)
			cur.harvestPrices(line)
		}
		if cur == nil {
			continue
		}

		if cur.rec.Model == "" {
			if m := extractModel(line); m != "" {
				cur.rec.Model = m
			}
		}
		if cur.rec.Specifications == "" && len(line) > 50 {
			cur.rec.Specifications = truncate(stripPrices(line), 200)
		}
		cur.harvestFeatures(line)
	}
	finalize()

	return out
}

// harvestNeighborhood looks ±N lines around the candidate's opening line for
// lines that reference its model or a name token, and harvests prices from
// them. This recovers prices typeset in a separate column or row.
func (p *Parser) harvestNeighborhood(c *candidate, lines []string) {
	ref := referenceTokens(c.rec)
	if len(ref) == 0 {
		return
	}

	lo := c.openLine - p.cfg.Neighborhood
	if lo < 0 {
		lo = 0
	}
	hi := c.openLine + p.cfg.Neighborhood
	if hi > len(lines)-1 {
		hi = len(lines) - 1
	}

	for i := lo; i <= hi; i++ {
		if i == c.openLine {
			continue
		}
		upper := strings.ToUpper(lines[i])
		for _, tok := range ref {
			if strings.Contains(upper, tok) {
				c.harvestPrices(lines[i])
				break
			}
		}
	}
}

// referenceTokens returns the uppercase tokens that identify a candidate in
// nearby lines: its model number and any name word longer than 3 characters.
func referenceTokens(rec model.ProductRecord) []string {
	var toks []string
	if rec.Model != "" {
		toks = append(toks, strings.ToUpper(rec.Model))
	}
	for _, w := range strings.Fields(rec.Name) {
		if len(w) > 3 {
			toks = append(toks, strings.ToUpper(w))
		}
	}
	return toks
}

func newCandidate(line string, idx int) *candidate {
	return &candidate{
		rec: model.ProductRecord{
			Name:     cleanName(line),
			Currency: model.DefaultCurrency,
			Category: detectCategory(line),
			Brand:    detectBrand(line),
		},
		openLine: idx,
		seen:     make(map[string]bool),
		features: make(map[string]bool),
	}
}

// harvestPrices collects every price-looking token on the line into the
// candidate's price set, deduplicated by value.
func (c *candidate) harvestPrices(line string) {
	for _, raw := range priceTokens(line) {
		val, err := parsePrice(raw)
		if err != nil || !val.IsPositive() {
			continue
		}
		key := val.String()
		if c.seen[key] {
			continue
		}
		c.seen[key] = true
		c.prices = append(c.prices, val)
	}
}

func (c *candidate) harvestFeatures(line string) {
	upper := strings.ToUpper(line)
	for _, f := range featureTags {
		if !c.features[f] && strings.Contains(upper, f) {
			c.features[f] = true
			c.rec.Features = append(c.rec.Features, f)
		}
	}
}

// resolve finalizes a candidate into a ProductRecord. It requires a non-empty
// name and a positive price. With two or more harvested prices, the set is
// sorted and the smaller becomes the selling price while the larger becomes
// the old price (pricelists list was/now in descending order).
func (c *candidate) resolve() (model.ProductRecord, bool) {
	if c.rec.Name == "" || len(c.prices) == 0 {
		return model.ProductRecord{}, false
	}

	prices := make([]decimal.Decimal, len(c.prices))
	copy(prices, c.prices)
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	c.rec.Price = prices[0]
	if len(prices) > 1 {
		old := prices[len(prices)-1]
		c.rec.OldPrice = &old
	}
	return c.rec, true
}

// openStrict reports whether a line should start a new candidate in the
// primary pass: a model-number shape, a domain keyword, or a
// currency-prefixed numeric token.
func openStrict(line string) bool {
	return hasModelToken(line) || hasDomainKeyword(line) || currencyPriceRe.MatchString(line)
}

// openLoose is the fallback-pass rule: a model token and a currency-prefixed
// numeric token, keywords not required.
func openLoose(line string) bool {
	return hasModelToken(line) && currencyPriceRe.MatchString(line)
}

func hasModelToken(line string) bool {
	return modelShapeRe.MatchString(line) || modelLabelRe.MatchString(line)
}

func hasDomainKeyword(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range domainKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// extractModel pulls a model number out of a line, preferring labeled tokens
// over bare hyphenated shapes.
func extractModel(line string) string {
	if m := modelLabelRe.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := modelShapeRe.FindString(line); m != "" {
		return m
	}
	return ""
}

// priceTokens returns the raw price-looking substrings of a line. Matched
// spans are blanked between passes so a later pattern cannot re-match a
// fragment of an earlier hit, like the ".00" tail of a thousands value.
func priceTokens(line string) []string {
	var toks []string
	rest := currencyPriceRe.ReplaceAllStringFunc(line, func(m string) string {
		toks = append(toks, currencyPriceRe.FindStringSubmatch(m)[2])
		return " "
	})
	rest = thousandsPriceRe.ReplaceAllStringFunc(rest, func(m string) string {
		toks = append(toks, m)
		return " "
	})
	toks = append(toks, twoDecimalRe.FindAllString(rest, -1)...)
	return toks
}

func parsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(raw)
	return decimal.NewFromString(cleaned)
}

// cleanName collapses whitespace and strips price tokens from a candidate's
// opening line.
func cleanName(line string) string {
	name := currencyPriceRe.ReplaceAllString(line, "$1")
	name = strings.Join(strings.Fields(name), " ")
	return strings.TrimSpace(name)
}

func stripPrices(line string) string {
	return strings.TrimSpace(currencyPriceRe.ReplaceAllString(line, "$1"))
}

func collectLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// truncate cuts s to at most n bytes on a rune boundary. OCR text carries
// multibyte characters, so a blind byte slice could split one in half.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func preview(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return truncate(text, n) + "..."
}
