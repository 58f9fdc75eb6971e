// Package domain contains the core domain types for the execution context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	"github.com/flowsniper/flowsniper/internal/asset"
)

// TradeRequest describes one swap to execute.
type TradeRequest struct {
	Venue    marketDomain.Venue
	TokenIn  *asset.Asset
	TokenOut *asset.Asset

	// AmountIn is the human-unit input amount.
	AmountIn decimal.Decimal

	// QuotedOut is the output the aggregator quoted; the slippage bound is
	// applied to it to produce the on-chain minimum.
	QuotedOut decimal.Decimal

	// Slippage, when positive, overrides the executor's configured bound
	// for this trade. The engine passes its live parameters through here.
	Slippage decimal.Decimal

	// FeeTier is required for V3 swaps, ignored for V2.
	FeeTier int

	// PreferredSigner, when non-zero, asks for a specific key.
	PreferredSigner common.Address
}

// TradeResult is the outcome of a submitted (or simulated) swap.
type TradeResult struct {
	Hash      common.Hash
	Signer    common.Address
	MinOut    decimal.Decimal
	Simulated bool
	Submitted time.Time
}
