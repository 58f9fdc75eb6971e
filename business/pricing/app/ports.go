// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/flowsniper/flowsniper/business/pricing/domain"
)

// PriceSource is a single reference price provider. Sources are tried in
// the order the oracle holds them.
type PriceSource interface {
	// Name identifies the source in logs and price metadata.
	Name() string

	// SpotPrice returns the current price for the pair. Sources return a
	// PAIR_UNSUPPORTED error when they cannot quote the pair at all, and
	// other errors for transient failures; the oracle treats both as a
	// signal to try the next source.
	SpotPrice(ctx context.Context, pair domain.Pair) (*domain.ReferencePrice, error)
}
