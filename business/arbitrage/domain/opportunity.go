// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
)

// Direction represents which venue each side of the round trip uses.
type Direction string

const (
	// DirectionForward buys on the V2 router and sells on V3.
	DirectionForward Direction = "V2_TO_V3"

	// DirectionReverse buys on V3 and sells on the V2 router.
	DirectionReverse Direction = "V3_TO_V2"
)

// String returns a human-readable description of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "buy V2, sell V3"
	case DirectionReverse:
		return "buy V3, sell V2"
	default:
		return "unknown"
	}
}

// Opportunity is a fully costed round trip the detector judged tradeable.
type Opportunity struct {
	ID        string
	Timestamp time.Time

	Direction Direction
	Quotes    *marketDomain.QuoteSet

	// Notional is the quote-token amount committed to the buy leg.
	Notional decimal.Decimal

	// BaseAmount is the base received on the buy leg; SellUnit is the
	// quote-per-base price on the sell leg.
	BaseAmount decimal.Decimal
	SellUnit   decimal.Decimal

	GrossProfit decimal.Decimal
	GasCost     decimal.Decimal // both legs, in quote tokens
	NetProfit   decimal.Decimal
	ROI         decimal.Decimal // NetProfit / Notional

	// FeeTier is the V3 tier of whichever leg touches V3.
	FeeTier int
}

// Pair returns the traded pair as "BASE-QUOTE".
func (o *Opportunity) Pair() string {
	return o.Quotes.Base.Symbol() + "-" + o.Quotes.Quote.Symbol()
}
