// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/flowsniper/flowsniper/business/pricing/app"
	"github.com/flowsniper/flowsniper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PriceOracle = di.NewToken[*app.PriceOracle]("pricing.PriceOracle")
)

// Private dependency tokens - internal to pricing module
var (
	Sources = di.NewToken[[]app.PriceSource]("pricing:sources")
)

// Helper functions for type-safe access
func GetPriceOracle(c di.ServiceRegistry) *app.PriceOracle {
	return di.GetToken(c, PriceOracle)
}

func GetSources(c di.ServiceRegistry) []app.PriceSource {
	return di.GetToken(c, Sources)
}
