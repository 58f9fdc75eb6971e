// Package engine implements the scan scheduler bounded context.
package engine

import (
	"context"

	"github.com/shopspring/decimal"

	arbitrageDI "github.com/flowsniper/flowsniper/business/arbitrage/di"
	blockchainDI "github.com/flowsniper/flowsniper/business/blockchain/di"
	"github.com/flowsniper/flowsniper/business/engine/app"
	engineDI "github.com/flowsniper/flowsniper/business/engine/di"
	"github.com/flowsniper/flowsniper/business/engine/domain"
	"github.com/flowsniper/flowsniper/business/engine/infra/flowlog"
	"github.com/flowsniper/flowsniper/business/engine/infra/statefile"
	"github.com/flowsniper/flowsniper/business/engine/infra/trigger"
	executionDI "github.com/flowsniper/flowsniper/business/execution/di"
	marketDI "github.com/flowsniper/flowsniper/business/market/di"
	pricingDI "github.com/flowsniper/flowsniper/business/pricing/di"
	pricingDomain "github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the engine bounded context.
type Module struct{}

// RegisterServices registers all engine services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, engineDI.FlowLog, func(sr di.ServiceRegistry) *flowlog.Sink {
		log := sr.Get("logger").(logger.LoggerInterface)
		return flowlog.NewSink(0, log)
	})

	di.RegisterToken(c, engineDI.Trigger, func(sr di.ServiceRegistry) app.ScanTrigger {
		cfg := sr.Get("config").(*config.Config)

		// Prefer block-driven scans when a websocket endpoint is
		// available; fall back to the interval ticker.
		if cfg.Chain.WebSocketURL != "" {
			return trigger.NewBlock(blockchainDI.GetChainService(sr))
		}
		return trigger.NewTicker(cfg.Strategy.ScanInterval)
	})

	di.RegisterToken(c, engineDI.Store, func(sr di.ServiceRegistry) app.ParamsStore {
		cfg := sr.Get("config").(*config.Config)
		return statefile.NewStore(cfg.Engine.StateFile)
	})

	di.RegisterToken(c, engineDI.Scheduler, func(sr di.ServiceRegistry) *app.Scheduler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		base := mustAsset(registry, cfg.Strategy.BaseSymbol, cfg.Chain.ChainID)
		quote := mustAsset(registry, cfg.Strategy.QuoteSymbol, cfg.Chain.ChainID)
		native, ok := registry.GetNative(cfg.Chain.ChainID)
		if !ok {
			panic("no native asset registered for chain")
		}

		schedulerCfg := app.DefaultSchedulerConfig()
		schedulerCfg.Pairs = []pricingDomain.Pair{pricingDomain.NewPair(base, quote)}
		schedulerCfg.NativePair = pricingDomain.NewPair(native, quote)
		schedulerCfg.TradeCooldown = cfg.Strategy.TradeCooldown
		schedulerCfg.DemoMode = cfg.Execution.DemoMode
		if cfg.Execution.GasLimitSwap > 0 {
			schedulerCfg.GasLimitSwap = cfg.Execution.GasLimitSwap
		}
		schedulerCfg.DefaultParams = defaultParams(cfg)

		store := engineDI.GetStore(sr)
		if persisted, err := store.Load(); err != nil {
			log.Warn(context.Background(), "persisted params unreadable, using defaults", "error", err)
		} else if persisted != nil {
			schedulerCfg.DefaultParams = schedulerCfg.DefaultParams.Merge(*persisted)
		}

		scheduler, err := app.NewScheduler(
			schedulerCfg,
			pricingDI.GetPriceOracle(sr),
			marketDI.GetQuoteAggregator(sr),
			arbitrageDI.GetDetector(sr),
			executionDI.GetTradeExecutor(sr),
			executionDI.GetConsolidation(sr),
			blockchainDI.GetChainService(sr),
			engineDI.GetTrigger(sr),
			nil, // advisor is an external collaborator, wired when present
			engineDI.GetFlowLog(sr),
			store,
			log,
		)
		if err != nil {
			panic("failed to create scheduler: " + err.Error())
		}
		return scheduler
	})

	return nil
}

// Startup initializes the engine module. The loop itself only starts on an
// explicit control-surface start.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	scheduler := engineDI.GetScheduler(mono.Services())

	log.Info(ctx, "engine module started",
		"state", string(scheduler.Snapshot().State))
	return nil
}

func defaultParams(cfg *config.Config) domain.Params {
	return domain.Params{
		TradeAmount:            cfg.Strategy.TradeAmountDecimal(),
		Slippage:               cfg.Strategy.SlippageDecimal(),
		MinProfitFraction:      decimal.NewFromFloat(cfg.Strategy.MinProfitFraction),
		MaxDrawdown:            decimal.NewFromFloat(cfg.Strategy.MaxDrawdown),
		ConsolidationThreshold: decimal.NewFromFloat(cfg.Custody.ConsolidationThreshold),
	}
}

func mustAsset(registry *asset.Registry, symbol string, chainID uint64) *asset.Asset {
	a, ok := registry.GetBySymbolAndChain(symbol, chainID)
	if !ok {
		panic("asset not registered: " + symbol)
	}
	return a
}
