// Package arbitrage implements the opportunity detection bounded context.
package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/business/arbitrage/app"
	arbitrageDI "github.com/flowsniper/flowsniper/business/arbitrage/di"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)

		detCfg := app.DefaultDetectorConfig()
		if cfg.Strategy.MinProfitFraction > 0 {
			detCfg.MinProfitFraction = decimal.NewFromFloat(cfg.Strategy.MinProfitFraction)
		}
		if cfg.Strategy.MaxROIFraction > 0 {
			detCfg.MaxROIFraction = decimal.NewFromFloat(cfg.Strategy.MaxROIFraction)
		}
		if cfg.Pricing.DivergenceTolerance > 0 {
			detCfg.DivergenceTolerance = decimal.NewFromFloat(cfg.Pricing.DivergenceTolerance)
		}

		return app.NewDetector(detCfg)
	})

	return nil
}

// Startup initializes the arbitrage module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	_ = arbitrageDI.GetDetector(mono.Services())
	mono.Logger().Info(ctx, "arbitrage module started")
	return nil
}
