// Package app contains the arbitrage detection service. Detection is a pure
// computation over one quote snapshot; everything with a side effect lives in
// the engine that calls it.
package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/business/arbitrage/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	pricingDomain "github.com/flowsniper/flowsniper/business/pricing/domain"
)

// DetectorConfig holds the detection thresholds.
type DetectorConfig struct {
	// MinProfitFraction is the minimum net profit as a fraction of the
	// notional for a trade to fire.
	MinProfitFraction decimal.Decimal

	// MaxROIFraction rejects returns above this fraction as quote
	// poisoning rather than profit.
	MaxROIFraction decimal.Decimal

	// DivergenceTolerance is the maximum fraction the venue sell price may
	// stray from an independent reference before the detector abstains.
	DivergenceTolerance decimal.Decimal
}

// DefaultDetectorConfig returns the default thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinProfitFraction:   decimal.RequireFromString("0.001"),
		MaxROIFraction:      decimal.RequireFromString("0.5"),
		DivergenceTolerance: decimal.RequireFromString("0.15"),
	}
}

// DetectInput is everything one detection pass looks at.
type DetectInput struct {
	Quotes *marketDomain.QuoteSet

	// Reference is the independent price used for the sanity cross-check.
	// Nil or Derived references skip the check: a price derived from the
	// venue itself cannot vouch for the venue.
	Reference *pricingDomain.ReferencePrice

	// GasCost is the quote-token cost of one swap; the round trip pays it
	// twice.
	GasCost decimal.Decimal

	// MinProfitFraction, when positive, overrides the configured profit
	// gate. Operators tune it per cycle while the engine runs.
	MinProfitFraction decimal.Decimal
}

// Detector judges quote snapshots against configured thresholds.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect evaluates one snapshot. A non-trade verdict always comes with a nil
// opportunity; the verdict itself names the reason for the audit trail.
func (d *Detector) Detect(in DetectInput) (*domain.Opportunity, domain.Verdict) {
	q := in.Quotes
	if q == nil || !q.HasAnyRoute() {
		return nil, domain.VerdictNoRoute
	}

	notional := q.NotionalIn

	// Gross profit per direction: base bought on one venue, sold at the
	// other venue's unit price.
	var forward, reverse decimal.Decimal
	if q.HasForwardRoute() {
		forward = q.V2BuyOut.Mul(q.V3SellUnit).Sub(notional)
	} else {
		forward = notional.Neg()
	}
	if q.HasReverseRoute() {
		reverse = q.V3BuyOut.Mul(q.V2SellUnit).Sub(notional)
	} else {
		reverse = notional.Neg()
	}

	direction := domain.DirectionForward
	gross := forward
	if reverse.GreaterThan(forward) {
		direction = domain.DirectionReverse
		gross = reverse
	}

	net := gross.Sub(in.GasCost.Mul(decimal.NewFromInt(2)))

	minProfit := d.cfg.MinProfitFraction
	if in.MinProfitFraction.IsPositive() {
		minProfit = in.MinProfitFraction
	}
	if net.LessThanOrEqual(notional.Mul(minProfit)) {
		return nil, domain.VerdictBelowThreshold
	}

	roi := net.Div(notional)
	if roi.GreaterThan(d.cfg.MaxROIFraction) {
		return nil, domain.VerdictROISuspicious
	}

	// The sell leg's unit price is what an inflated pool would distort, so
	// that is what gets checked against the reference.
	sellUnit := q.V3SellUnit
	feeTier := q.V3SellFeeTier
	baseAmount := q.V2BuyOut
	if direction == domain.DirectionReverse {
		sellUnit = q.V2SellUnit
		feeTier = q.V3BuyFeeTier
		baseAmount = q.V3BuyOut
	}

	if in.Reference != nil && !in.Reference.Derived {
		div := pricingDomain.CalculateDivergence(sellUnit, in.Reference.Rate)
		if div.Exceeds(d.cfg.DivergenceTolerance) {
			return nil, domain.VerdictDiverged
		}
	}

	return &domain.Opportunity{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Direction:   direction,
		Quotes:      q,
		Notional:    notional,
		BaseAmount:  baseAmount,
		SellUnit:    sellUnit,
		GrossProfit: gross,
		GasCost:     in.GasCost.Mul(decimal.NewFromInt(2)),
		NetProfit:   net,
		ROI:         roi,
		FeeTier:     feeTier,
	}, domain.VerdictTrade
}
