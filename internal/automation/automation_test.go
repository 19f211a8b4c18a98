package automation

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
	"github.com/soundline/pricesync/pkg/opencart"
)

type fakeStore struct {
	opencart.Client
	created []opencart.NewProduct
	failOn  map[string]bool
}

func (f *fakeStore) Create(_ context.Context, p opencart.NewProduct) (string, error) {
	if f.failOn[p.Name] {
		return "", eris.New("store rejected product")
	}
	f.created = append(f.created, p)
	return strconv.Itoa(100 + len(f.created)), nil
}

func record(name, modelNo, category, brand, price string) model.ProductRecord {
	return model.ProductRecord{
		Name:     name,
		Model:    modelNo,
		Category: category,
		Brand:    brand,
		Price:    decimal.RequireFromString(price),
	}
}

func newAutomator(store opencart.Client, cfg config.AutomationConfig, sleeps *[]time.Duration) *Automator {
	return New(store, cfg, WithSleep(func(d time.Duration) {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
	}))
}

func TestCreateMissing_CreatesAndPaces(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	var sleeps []time.Duration
	a := newAutomator(store, config.AutomationConfig{RequestDelayMs: 1000}, &sleeps)

	summary := a.CreateMissing(context.Background(), []model.ProductRecord{
		record("Denon AVR-X1800H", "AVR-X1800H", "AV Receivers", "Denon", "15990.00"),
		record("JBL EON715", "EON715", "Speakers", "JBL", "12495.00"),
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Failed)
	assert.InDelta(t, 100.0, summary.SuccessRate, 1e-9)

	require.Len(t, store.created, 2)
	assert.Equal(t, "15990.00", store.created[0].Price)
	assert.Equal(t, "24", store.created[0].CategoryID)
	assert.Equal(t, "2", store.created[0].ManufacturerID)
	assert.Equal(t, 1, store.created[0].Status)

	// One delay between the two creates, none after the last.
	assert.Equal(t, []time.Duration{time.Second}, sleeps)
}

func TestCreateMissing_FailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	store := &fakeStore{failOn: map[string]bool{"JBL EON715": true}}
	a := newAutomator(store, config.AutomationConfig{RequestDelayMs: 10}, nil)

	summary := a.CreateMissing(context.Background(), []model.ProductRecord{
		record("JBL EON715", "EON715", "Speakers", "JBL", "12495.00"),
		record("Denon AVR-X1800H", "AVR-X1800H", "AV Receivers", "Denon", "15990.00"),
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 50.0, summary.SuccessRate, 1e-9)
	require.Len(t, store.created, 1)
	assert.Equal(t, "Denon AVR-X1800H", store.created[0].Name)
	assert.NotEmpty(t, summary.Results[0].Error)
}

func TestCreateMissing_SkipsUnusableRecords(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	a := newAutomator(store, config.AutomationConfig{RequestDelayMs: 10}, nil)

	summary := a.CreateMissing(context.Background(), []model.ProductRecord{
		{Name: "No Price Product"},
		record("Denon AVR-X1800H", "AVR-X1800H", "AV Receivers", "Denon", "15990.00"),
	})

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, store.created, 1)
}

func TestCreateMissing_DryRun(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	a := newAutomator(store, config.AutomationConfig{RequestDelayMs: 10, DryRun: true}, nil)

	summary := a.CreateMissing(context.Background(), []model.ProductRecord{
		record("Denon AVR-X1800H", "AVR-X1800H", "AV Receivers", "Denon", "15990.00"),
	})

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Created, "dry run reports what would be created")
	assert.Empty(t, store.created, "dry run must not touch the store")
}

func TestCreateMissing_BatchSizeCap(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	a := newAutomator(store, config.AutomationConfig{RequestDelayMs: 10, BatchSize: 2}, nil)

	summary := a.CreateMissing(context.Background(), []model.ProductRecord{
		record("A Speaker", "A-1", "Speakers", "JBL", "100.00"),
		record("B Speaker", "B-1", "Speakers", "JBL", "200.00"),
		record("C Speaker", "C-1", "Speakers", "JBL", "300.00"),
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Len(t, store.created, 2)
}
