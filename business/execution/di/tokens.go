// Package di provides dependency injection tokens for the execution context.
package di

import (
	"github.com/flowsniper/flowsniper/business/execution/app"
	"github.com/flowsniper/flowsniper/internal/di"
)

// Public tokens.
var (
	// TradeExecutor submits swaps, transfers, gas recharges and
	// liquidations.
	TradeExecutor = di.NewToken[*app.TradeExecutor]("execution.TradeExecutor")

	// Consolidation sweeps settled profit to the paired owner.
	Consolidation = di.NewToken[*app.ConsolidationService]("execution.Consolidation")
)

// Private tokens.
var (
	// Router is the venue router adapter, shared by executor and
	// consolidation.
	Router = di.NewToken[app.VenueRouter]("execution:router")

	// Tokens serves ERC-20 reads.
	Tokens = di.NewToken[app.TokenReader]("execution:tokens")
)

// GetTradeExecutor retrieves the trade executor from the registry.
func GetTradeExecutor(sr di.ServiceRegistry) *app.TradeExecutor {
	return di.GetToken(sr, TradeExecutor)
}

// GetConsolidation retrieves the consolidation service from the registry.
func GetConsolidation(sr di.ServiceRegistry) *app.ConsolidationService {
	return di.GetToken(sr, Consolidation)
}

// GetRouter retrieves the venue router from the registry.
func GetRouter(sr di.ServiceRegistry) app.VenueRouter {
	return di.GetToken(sr, Router)
}

// GetTokens retrieves the token reader from the registry.
func GetTokens(sr di.ServiceRegistry) app.TokenReader {
	return di.GetToken(sr, Tokens)
}
