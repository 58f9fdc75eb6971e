// Package domain contains the core domain types for the market context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/internal/asset"
)

// Venue identifies a DEX venue quotes are taken from.
type Venue string

const (
	VenueV2 Venue = "quickswap_v2"
	VenueV3 Venue = "uniswap_v3"
)

// QuoteSet is one synchronized snapshot of both venues in both directions,
// taken in a single batched call so the legs share a block.
type QuoteSet struct {
	Base  *asset.Asset
	Quote *asset.Asset

	// NotionalIn is the quote-token amount priced through the buy legs.
	NotionalIn decimal.Decimal

	// V2BuyOut is the base amount received for NotionalIn on the V2 router.
	// Zero means the leg had no liquidity.
	V2BuyOut decimal.Decimal

	// V2SellUnit is the quote amount received for one base unit on V2.
	V2SellUnit decimal.Decimal

	// V3BuyOut is the best base amount for NotionalIn across the V3 fee
	// tiers, with the tier that produced it.
	V3BuyOut     decimal.Decimal
	V3BuyFeeTier int

	// V3SellUnit is the best quote amount for one base unit across the V3
	// fee tiers, with the tier that produced it.
	V3SellUnit    decimal.Decimal
	V3SellFeeTier int

	Timestamp time.Time
}

// HasForwardRoute reports whether buying on V2 and selling on V3 is quotable.
func (q *QuoteSet) HasForwardRoute() bool {
	return q.V2BuyOut.IsPositive() && q.V3SellUnit.IsPositive()
}

// HasReverseRoute reports whether buying on V3 and selling on V2 is quotable.
func (q *QuoteSet) HasReverseRoute() bool {
	return q.V3BuyOut.IsPositive() && q.V2SellUnit.IsPositive()
}

// HasAnyRoute reports whether at least one direction is quotable.
func (q *QuoteSet) HasAnyRoute() bool {
	return q.HasForwardRoute() || q.HasReverseRoute()
}

// Age returns how long ago the snapshot was taken.
func (q *QuoteSet) Age() time.Duration {
	return time.Since(q.Timestamp)
}
