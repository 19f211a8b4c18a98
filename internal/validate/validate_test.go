package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundline/pricesync/internal/config"
	"github.com/soundline/pricesync/internal/model"
)

func newTestValidator() *Validator {
	return New(config.ValidateConfig{MinNameLength: 3, MinPrice: 1.0})
}

func TestClean_Normalizes(t *testing.T) {
	t.Parallel()

	old := decimal.RequireFromString("18990.005")
	rec := model.ProductRecord{
		Name:     "  denon AVR-X1800H av  receiver with heos!!  ",
		Model:    " avr-x1800h ",
		Price:    decimal.RequireFromString("15990.004"),
		OldPrice: &old,
	}

	got := newTestValidator().Clean(rec)
	assert.Equal(t, "Denon AVR-X1800H Av Receiver with Heos", got.Name)
	assert.Equal(t, "AVR-X1800H", got.Model)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("15990.00")))
	require.NotNil(t, got.OldPrice)
	assert.True(t, got.OldPrice.Equal(decimal.RequireFromString("18990.01")))
	assert.Equal(t, model.DefaultCurrency, got.Currency)
	assert.Equal(t, model.DefaultCategory, got.Category)
}

func TestClean_Idempotent(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	records := []model.ProductRecord{
		{Name: "  jbl EON715   powered SPEAKER @ best price!  ", Model: "eon715"},
		{Name: "the sound of music box set", Price: decimal.RequireFromString("199.99")},
		{Name: "Shure SM58 Dynamic Microphone", Model: "SM58", Currency: "USD"},
	}
	for _, rec := range records {
		once := v.Clean(rec)
		twice := v.Clean(once)
		assert.Equal(t, once, twice, "clean must be a fixed point after one pass")
	}
}

func TestClean_StopWordsStayLowercaseUnlessLeading(t *testing.T) {
	t.Parallel()

	v := newTestValidator()
	assert.Equal(t, "The Sound of Music", v.Clean(model.ProductRecord{Name: "the sound of music"}).Name)
	assert.Equal(t, "Stand for Speakers", v.Clean(model.ProductRecord{Name: "stand for speakers"}).Name)
}

func TestValidate_Penalties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rec        model.ProductRecord
		confidence float64
		valid      bool
		warnings   int
	}{
		{
			name:       "fully populated record",
			rec:        model.ProductRecord{Name: "Denon AVR-X1800H", Price: decimal.RequireFromString("15990.00")},
			confidence: 1.0,
			valid:      true,
		},
		{
			name:       "name below minimum length",
			rec:        model.ProductRecord{Name: "TV", Price: decimal.RequireFromString("4999.00")},
			confidence: 0.8,
			valid:      false,
		},
		{
			name:       "missing price",
			rec:        model.ProductRecord{Name: "Denon AVR-X1800H"},
			confidence: 0.5,
			valid:      false,
		},
		{
			name:       "suspiciously low price",
			rec:        model.ProductRecord{Name: "Denon AVR-X1800H", Price: decimal.RequireFromString("0.50")},
			confidence: 0.9,
			valid:      true,
			warnings:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := newTestValidator().Validate(tt.rec)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.valid, got.IsValid)
			assert.Len(t, got.Warnings, tt.warnings)
		})
	}
}

func TestValidate_ConfidenceFloorAndCeiling(t *testing.T) {
	t.Parallel()

	v := newTestValidator()

	// Every penalty fires at once: the score lands on exactly zero, never
	// below.
	worst := v.Validate(model.ProductRecord{})
	assert.Equal(t, 0.0, worst.Confidence)
	assert.False(t, worst.IsValid)

	best := v.Validate(model.ProductRecord{
		Name:  "Yamaha RX-V6A AV Receiver",
		Price: decimal.RequireFromString("12499.00"),
	})
	assert.Equal(t, 1.0, best.Confidence)
	assert.True(t, best.IsValid)
}

func TestValidateBatch(t *testing.T) {
	t.Parallel()

	recs := []model.ProductRecord{
		{Name: "Denon AVR-X1800H", Price: decimal.RequireFromString("15990.00")},
		{Name: "Yamaha RX-V6A", Price: decimal.RequireFromString("12499.00")},
		{Name: "TV", Price: decimal.RequireFromString("4999.00")},
	}

	report := newTestValidator().ValidateBatch(recs)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.ValidCount)
	assert.Equal(t, 1, report.InvalidCount)
	assert.InDelta(t, (1.0+1.0+0.8)/3, report.AverageConfidence, 1e-9)
	assert.Equal(t, "Excellent", report.QualityRating)
	assert.Len(t, report.Results, 3)
}

func TestValidateBatch_Empty(t *testing.T) {
	t.Parallel()

	report := newTestValidator().ValidateBatch(nil)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0.0, report.AverageConfidence)
	assert.Equal(t, "Very Poor", report.QualityRating)
}

func TestQualityRating_Bands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		avg  float64
		want string
	}{
		{0.95, "Excellent"},
		{0.9, "Excellent"},
		{0.89, "Good"},
		{0.8, "Good"},
		{0.79, "Fair"},
		{0.7, "Fair"},
		{0.69, "Poor"},
		{0.6, "Poor"},
		{0.59, "Very Poor"},
		{0.0, "Very Poor"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qualityRating(tt.avg), "avg=%v", tt.avg)
	}
}
