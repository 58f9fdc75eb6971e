package domain

import "github.com/shopspring/decimal"

// Divergence describes how far a venue price sits from the reference.
type Divergence struct {
	VenuePrice     decimal.Decimal
	ReferencePrice decimal.Decimal
	Absolute       decimal.Decimal // venue - reference
	Fraction       decimal.Decimal // |venue - reference| / reference
}

// CalculateDivergence computes the divergence of a venue price from the
// reference. A zero reference yields a zero fraction so callers never gate
// on a division artifact.
func CalculateDivergence(venuePrice, referencePrice decimal.Decimal) Divergence {
	absolute := venuePrice.Sub(referencePrice)
	fraction := decimal.Zero
	if !referencePrice.IsZero() {
		fraction = absolute.Abs().Div(referencePrice)
	}

	return Divergence{
		VenuePrice:     venuePrice,
		ReferencePrice: referencePrice,
		Absolute:       absolute,
		Fraction:       fraction,
	}
}

// Exceeds reports whether the divergence fraction is above tolerance.
func (d Divergence) Exceeds(tolerance decimal.Decimal) bool {
	return d.Fraction.GreaterThan(tolerance)
}
