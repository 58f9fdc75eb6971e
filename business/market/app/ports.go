// Package app contains port definitions for the market context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/business/market/domain"
	"github.com/flowsniper/flowsniper/internal/asset"
)

// QuoteAggregator produces a synchronized quote snapshot across venues.
type QuoteAggregator interface {
	// GetQuotes prices notionalIn quote tokens through every venue leg in
	// one batched call. Individual illiquid legs come back zero; the call
	// errors only when the batch itself cannot be executed.
	GetQuotes(ctx context.Context, base, quote *asset.Asset, notionalIn decimal.Decimal) (*domain.QuoteSet, error)
}
