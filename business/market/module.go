// Package market implements the venue quoting bounded context.
package market

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/flowsniper/flowsniper/business/market/app"
	marketDI "github.com/flowsniper/flowsniper/business/market/di"
	"github.com/flowsniper/flowsniper/business/market/infra/multicall"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.QuoteAggregator, func(sr di.ServiceRegistry) app.QuoteAggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		aggCfg := multicall.DefaultConfig(
			cfg.Venues.MulticallAddressHex(),
			cfg.Venues.V2RouterAddressHex(),
			cfg.Venues.V3QuoterAddressHex(),
		)

		agg, err := multicall.NewAggregator(client, aggCfg, log)
		if err != nil {
			panic("failed to create quote aggregator: " + err.Error())
		}
		return agg
	})

	return nil
}

// Startup initializes the market module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	_ = marketDI.GetQuoteAggregator(mono.Services())

	log.Info(ctx, "market module started")
	return nil
}
