package reconcile

import (
	"strings"

	"github.com/soundline/pricesync/internal/model"
)

const maxSearchTerms = 5

// searchStopWords are filtered out when picking "meaningful" name words for a
// search term.
var searchStopWords = map[string]bool{
	"and": true, "for": true, "from": true, "the": true, "this": true,
	"that": true, "with": true, "channel": true,
}

// GenerateSearchTerms builds an ordered, deduplicated list of at most five
// catalog search terms for a record, most specific first: the bare model
// number, brand plus model, the top meaningful name words, brand plus the
// name's leading words, and finally the brand alone.
func GenerateSearchTerms(rec model.ProductRecord) []string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] || len(terms) >= maxSearchTerms {
			return
		}
		seen[strings.ToLower(t)] = true
		terms = append(terms, t)
	}

	add(rec.Model)
	if rec.Brand != "" && rec.Model != "" {
		add(rec.Brand + " " + rec.Model)
	}
	if meaningful := meaningfulWords(rec.Name, 3); len(meaningful) > 0 {
		add(strings.Join(meaningful, " "))
	}
	if rec.Brand != "" {
		if lead := firstWords(rec.Name, 3); lead != "" {
			add(rec.Brand + " " + lead)
		}
		add(rec.Brand)
	}
	return terms
}

// meaningfulWords returns up to n name words longer than three characters
// that are not stop words, in their original order.
func meaningfulWords(name string, n int) []string {
	var out []string
	for _, w := range strings.Fields(name) {
		if len(w) <= 3 || searchStopWords[strings.ToLower(w)] {
			continue
		}
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return out
}

func firstWords(name string, n int) string {
	words := strings.Fields(name)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
