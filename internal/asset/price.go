package asset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PricePrecision is the fixed-point precision for rate arithmetic,
// 18 decimals to match wei.
const PricePrecision = 18

var pricePrecisionMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(PricePrecision), nil)

// Price is an exchange rate between two assets at a point in time,
// stored as a fixed-point integer so conversions stay in big.Int all
// the way through. POL/USDT at 0.52 is stored as 52e16.
type Price struct {
	rate      *big.Int
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPrice builds a price from a decimal rate, quote units per one base
// unit. Panics on a negative rate: the oracle rejects non-positive
// source prices before they reach here.
func NewPrice(base, quote *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}

	return Price{
		rate:      rate.Shift(PricePrecision).BigInt(),
		base:      base,
		quote:     quote,
		timestamp: timestamp,
	}
}

// NewPriceNow builds a price stamped with the current time.
func NewPriceNow(base, quote *Asset, rate decimal.Decimal) Price {
	return NewPrice(base, quote, rate, time.Now())
}

// Rate returns the rate in decimal form.
func (p Price) Rate() decimal.Decimal {
	if p.rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.rate, -PricePrecision)
}

// Base returns the asset being priced.
func (p Price) Base() *Asset {
	return p.base
}

// Quote returns the asset the rate is quoted in.
func (p Price) Quote() *Asset {
	return p.quote
}

// Timestamp returns when the price was observed.
func (p Price) Timestamp() time.Time {
	return p.timestamp
}

// IsZero reports whether the rate is zero.
func (p Price) IsZero() bool {
	return p.rate == nil || p.rate.Sign() == 0
}

// Invert flips the pair: WETH/USDT at 2000 becomes USDT/WETH at 0.0005.
// Precision is bounded by the fixed-point width, so a round trip is not
// exact.
func (p Price) Invert() Price {
	if p.IsZero() {
		return Price{
			rate:      big.NewInt(0),
			base:      p.quote,
			quote:     p.base,
			timestamp: p.timestamp,
		}
	}

	precisionSquared := new(big.Int).Mul(pricePrecisionMultiplier, pricePrecisionMultiplier)
	return Price{
		rate:      new(big.Int).Div(precisionSquared, p.rate),
		base:      p.quote,
		quote:     p.base,
		timestamp: p.timestamp,
	}
}

// Convert reprices an amount of the base asset into the quote asset,
// raw in and raw out. The amount is scaled by the fixed-point rate and
// then shifted across the decimal gap between the two assets, so wei of
// POL converts straight to 1e-6 units of USDT.
func (p Price) Convert(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if !amount.Asset().ID().Equals(p.base.ID()) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s",
			ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}

	out := new(big.Int).Mul(amount.Raw(), p.rate)
	out.Div(out, pricePrecisionMultiplier)

	shift := int64(p.quote.Decimals()) - int64(p.base.Decimals())
	switch {
	case shift > 0:
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(shift), nil))
	case shift < 0:
		out.Div(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(-shift), nil))
	}

	return NewAmount(p.quote, out), nil
}

// String renders the rate with its pair, e.g. "2000 WETH/USDT".
func (p Price) String() string {
	if p.base == nil || p.quote == nil {
		return p.Rate().String()
	}
	return fmt.Sprintf("%s %s/%s", p.Rate().String(), p.base.Symbol(), p.quote.Symbol())
}
