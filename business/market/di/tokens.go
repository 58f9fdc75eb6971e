// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/flowsniper/flowsniper/business/market/app"
	"github.com/flowsniper/flowsniper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	QuoteAggregator = di.NewToken[app.QuoteAggregator]("market.QuoteAggregator")
)

// Helper functions for type-safe access
func GetQuoteAggregator(c di.ServiceRegistry) app.QuoteAggregator {
	return di.GetToken(c, QuoteAggregator)
}
