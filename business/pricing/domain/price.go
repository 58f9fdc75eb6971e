// Package domain contains the core domain types for the pricing context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/internal/asset"
)

// Pair represents a trading pair using typed assets.
type Pair struct {
	Base  *asset.Asset // e.g., WETH
	Quote *asset.Asset // e.g., USDT
}

// NewPair creates a new trading pair.
func NewPair(base, quote *asset.Asset) Pair {
	if base == nil || quote == nil {
		panic("pricing: nil asset in pair")
	}
	return Pair{Base: base, Quote: quote}
}

// String returns the pair symbol (e.g., "WETH-USDT").
func (p Pair) String() string {
	return p.Base.Symbol() + "-" + p.Quote.Symbol()
}

// TickerSymbol returns the concatenated off-chain ticker for the pair, with
// wrapped tokens mapped to their underlying (e.g., "ETHUSDT" for WETH-USDT).
func (p Pair) TickerSymbol() string {
	return UnwrapSymbol(p.Base.Symbol()) + UnwrapSymbol(p.Quote.Symbol())
}

// unwrapped maps wrapped token symbols to the tickers exchanges quote.
var unwrapped = map[string]string{
	"WETH":   "ETH",
	"WBTC":   "BTC",
	"WPOL":   "POL",
	"WMATIC": "MATIC",
}

// UnwrapSymbol maps a wrapped token symbol to its exchange ticker.
func UnwrapSymbol(symbol string) string {
	if u, ok := unwrapped[symbol]; ok {
		return u
	}
	return symbol
}

// ReferencePrice is an off-venue price used to sanity-check venue quotes.
type ReferencePrice struct {
	Pair      Pair
	Rate      decimal.Decimal // quote units per base unit
	Source    string          // "proxy", "bybit", "binance", "coingecko", "onchain"
	Derived   bool            // true when converted from a USD quote or a venue mid
	Timestamp time.Time
}

// NewReferencePrice creates a ReferencePrice stamped now.
func NewReferencePrice(pair Pair, rate decimal.Decimal, source string, derived bool) *ReferencePrice {
	return &ReferencePrice{
		Pair:      pair,
		Rate:      rate,
		Source:    source,
		Derived:   derived,
		Timestamp: time.Now(),
	}
}

// Age returns how long ago the price was observed.
func (r *ReferencePrice) Age() time.Duration {
	return time.Since(r.Timestamp)
}
