// Package catalog adapts the OpenCart client to the reconciliation core's
// catalog search boundary.
package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/pkg/opencart"
)

// Adapter translates store products into catalog entries. It satisfies
// reconcile.Searcher.
type Adapter struct {
	client  opencart.Client
	breaker *Breaker
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *Breaker) Option {
	return func(a *Adapter) { a.breaker = b }
}

// NewAdapter wraps an OpenCart client.
func NewAdapter(client opencart.Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:  client,
		breaker: NewBreaker(0, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search issues one store search and converts the results. An empty result
// set is returned as an empty slice, not an error. While the breaker is open
// the search fails immediately with ErrUnavailable.
func (a *Adapter) Search(ctx context.Context, term string) ([]model.CatalogEntry, error) {
	if !a.breaker.allow() {
		return nil, ErrUnavailable
	}

	products, err := a.client.Search(ctx, term)
	a.breaker.record(err)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: search %q", term)
	}

	entries := make([]model.CatalogEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, Entry(p))
	}
	return entries, nil
}

// Entry converts one store product to a catalog entry. The special price,
// when set, is what the storefront actually charges, so it wins over the
// list price.
func Entry(p opencart.Product) model.CatalogEntry {
	price := p.Price.Decimal
	if p.Special.IsPositive() {
		price = p.Special.Decimal
	}
	return model.CatalogEntry{
		ID:    p.ID,
		Name:  p.Name,
		Model: p.Model,
		Price: price,
	}
}
