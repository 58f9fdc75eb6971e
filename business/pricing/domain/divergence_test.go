package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateDivergence(t *testing.T) {
	tests := []struct {
		name         string
		venuePrice   string
		refPrice     string
		wantAbsolute string
		wantFraction string
	}{
		{
			name:         "equal_prices_no_divergence",
			venuePrice:   "3400.00",
			refPrice:     "3400.00",
			wantAbsolute: "0",
			wantFraction: "0",
		},
		{
			name:         "venue_higher_1pct",
			venuePrice:   "3434.00",
			refPrice:     "3400.00",
			wantAbsolute: "34",
			wantFraction: "0.01",
		},
		{
			name:         "venue_lower_1pct",
			venuePrice:   "3366.00",
			refPrice:     "3400.00",
			wantAbsolute: "-34",
			wantFraction: "0.01",
		},
		{
			name:         "zero_reference_no_panic",
			venuePrice:   "3400.00",
			refPrice:     "0",
			wantAbsolute: "3400",
			wantFraction: "0",
		},
		{
			name:         "zero_venue_full_divergence",
			venuePrice:   "0",
			refPrice:     "3400.00",
			wantAbsolute: "-3400",
			wantFraction: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			venue := decimal.RequireFromString(tt.venuePrice)
			ref := decimal.RequireFromString(tt.refPrice)

			d := CalculateDivergence(venue, ref)

			if !d.Absolute.Equal(decimal.RequireFromString(tt.wantAbsolute)) {
				t.Errorf("Absolute = %s, want %s", d.Absolute, tt.wantAbsolute)
			}
			if !d.Fraction.Equal(decimal.RequireFromString(tt.wantFraction)) {
				t.Errorf("Fraction = %s, want %s", d.Fraction, tt.wantFraction)
			}
		})
	}
}

func TestDivergence_Exceeds(t *testing.T) {
	tolerance := decimal.NewFromFloat(0.15)

	within := CalculateDivergence(decimal.NewFromInt(110), decimal.NewFromInt(100))
	if within.Exceeds(tolerance) {
		t.Error("10% divergence should not exceed 15% tolerance")
	}

	beyond := CalculateDivergence(decimal.NewFromInt(120), decimal.NewFromInt(100))
	if !beyond.Exceeds(tolerance) {
		t.Error("20% divergence should exceed 15% tolerance")
	}

	exact := CalculateDivergence(decimal.NewFromInt(115), decimal.NewFromInt(100))
	if exact.Exceeds(tolerance) {
		t.Error("divergence exactly at tolerance should not exceed it")
	}
}
