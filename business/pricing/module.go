// Package pricing implements the reference pricing bounded context.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/flowsniper/flowsniper/business/pricing/app"
	pricingDI "github.com/flowsniper/flowsniper/business/pricing/di"
	"github.com/flowsniper/flowsniper/business/pricing/infra/binance"
	"github.com/flowsniper/flowsniper/business/pricing/infra/bybit"
	"github.com/flowsniper/flowsniper/business/pricing/infra/coingecko"
	"github.com/flowsniper/flowsniper/business/pricing/infra/onchain"
	"github.com/flowsniper/flowsniper/business/pricing/infra/proxy"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register the ordered source chain (private). Order is the fallback
	// order: proxy when configured, then exchanges, then CoinGecko, with
	// the router itself as last resort.
	di.RegisterToken(c, pricingDI.Sources, func(sr di.ServiceRegistry) []app.PriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		var sources []app.PriceSource

		if cfg.Pricing.ProxyURL != "" {
			proxyCfg := proxy.Config{BaseURL: cfg.Pricing.ProxyURL, Timeout: cfg.Pricing.RequestTimeout}
			p, err := proxy.NewProvider(proxyCfg, log)
			if err != nil {
				panic("failed to create proxy price source: " + err.Error())
			}
			sources = append(sources, p)
		}

		bybitCfg := bybit.DefaultConfig()
		if cfg.Pricing.BybitBaseURL != "" {
			bybitCfg.BaseURL = cfg.Pricing.BybitBaseURL
		}
		if cfg.Pricing.RequestTimeout > 0 {
			bybitCfg.Timeout = cfg.Pricing.RequestTimeout
		}
		by, err := bybit.NewProvider(bybitCfg, log)
		if err != nil {
			panic("failed to create bybit price source: " + err.Error())
		}
		sources = append(sources, by)

		binanceCfg := binance.DefaultConfig()
		if cfg.Pricing.BinanceBaseURL != "" {
			binanceCfg.BaseURL = cfg.Pricing.BinanceBaseURL
		}
		if cfg.Pricing.RequestTimeout > 0 {
			binanceCfg.Timeout = cfg.Pricing.RequestTimeout
		}
		bn, err := binance.NewProvider(binanceCfg, log)
		if err != nil {
			panic("failed to create binance price source: " + err.Error())
		}
		sources = append(sources, bn)

		geckoCfg := coingecko.DefaultConfig()
		if cfg.Pricing.CoinGeckoBaseURL != "" {
			geckoCfg.BaseURL = cfg.Pricing.CoinGeckoBaseURL
		}
		if cfg.Pricing.RequestTimeout > 0 {
			geckoCfg.Timeout = cfg.Pricing.RequestTimeout
		}
		cg, err := coingecko.NewProvider(geckoCfg, log)
		if err != nil {
			panic("failed to create coingecko price source: " + err.Error())
		}
		sources = append(sources, cg)

		oc, err := onchain.NewProvider(client, cfg.Venues.V3QuoterAddressHex(), log)
		if err != nil {
			panic("failed to create onchain price source: " + err.Error())
		}
		sources = append(sources, oc)

		return sources
	})

	// Register PriceOracle (public - detector and engine depend on it)
	di.RegisterToken(c, pricingDI.PriceOracle, func(sr di.ServiceRegistry) *app.PriceOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		oracleCfg := app.DefaultOracleConfig()
		if cfg.Pricing.CacheTTL > 0 {
			oracleCfg.CacheTTL = cfg.Pricing.CacheTTL
		}

		oracle, err := app.NewPriceOracle(oracleCfg, pricingDI.GetSources(sr), log)
		if err != nil {
			panic("failed to create price oracle: " + err.Error())
		}
		return oracle
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	oracle := pricingDI.GetPriceOracle(mono.Services())
	_ = oracle

	sources := pricingDI.GetSources(mono.Services())
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}

	log.Info(ctx, "pricing module started", "source_chain", names)
	return nil
}
