// Package execution implements the trade execution bounded context.
package execution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	blockchainDI "github.com/flowsniper/flowsniper/business/blockchain/di"
	custodyDI "github.com/flowsniper/flowsniper/business/custody/di"
	"github.com/flowsniper/flowsniper/business/execution/app"
	executionDI "github.com/flowsniper/flowsniper/business/execution/di"
	"github.com/flowsniper/flowsniper/business/execution/infra/router"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/erc20"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Router, func(sr di.ServiceRegistry) app.VenueRouter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		binding, err := erc20.NewBinding(client)
		if err != nil {
			panic("failed to create erc20 binding: " + err.Error())
		}

		routerCfg := router.DefaultConfig(cfg.Venues.V2RouterAddressHex(), cfg.Venues.V3RouterAddressHex())
		if cfg.Execution.GasLimitSwap > 0 {
			routerCfg.GasLimitSwap = cfg.Execution.GasLimitSwap
		}
		if cfg.Execution.GasLimitERC20 > 0 {
			routerCfg.GasLimitERC20 = cfg.Execution.GasLimitERC20
		}

		adapter, err := router.NewAdapter(
			routerCfg,
			binding,
			erc20.NewDecimalsResolver(binding, registry, cfg.Chain.ChainID),
			blockchainDI.GetTxSender(sr),
			log,
		)
		if err != nil {
			panic("failed to create router adapter: " + err.Error())
		}
		return adapter
	})

	di.RegisterToken(c, executionDI.Tokens, func(sr di.ServiceRegistry) app.TokenReader {
		// The router adapter doubles as the token reader.
		return executionDI.GetRouter(sr).(app.TokenReader)
	})

	di.RegisterToken(c, executionDI.TradeExecutor, func(sr di.ServiceRegistry) *app.TradeExecutor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		executorCfg := app.DefaultExecutorConfig()
		executorCfg.Slippage = cfg.Strategy.SlippageDecimal()
		executorCfg.SwapDeadline = cfg.Execution.SwapDeadline
		executorCfg.DemoMode = cfg.Execution.DemoMode
		executorCfg.Stable = mustAsset(registry, cfg.Strategy.QuoteSymbol, cfg.Chain.ChainID)
		executorCfg.WrappedNative = mustAsset(registry, "WPOL", cfg.Chain.ChainID)
		if cfg.Custody.MinGasReserve > 0 {
			executorCfg.MinGasReserve = decimal.NewFromFloat(cfg.Custody.MinGasReserve).Shift(18).BigInt()
		}

		executor, err := app.NewTradeExecutor(
			executorCfg,
			custodyDI.GetCustodyManager(sr),
			executionDI.GetTokens(sr),
			client,
			executionDI.GetRouter(sr),
			log,
		)
		if err != nil {
			panic("failed to create trade executor: " + err.Error())
		}
		return executor
	})

	di.RegisterToken(c, executionDI.Consolidation, func(sr di.ServiceRegistry) *app.ConsolidationService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		stable := mustAsset(registry, cfg.Strategy.QuoteSymbol, cfg.Chain.ChainID)

		var threshold *big.Int
		if cfg.Custody.ConsolidationThreshold > 0 {
			threshold = decimal.NewFromFloat(cfg.Custody.ConsolidationThreshold).
				Shift(int32(stable.Decimals())).BigInt()
		}

		svc, err := app.NewConsolidationService(
			app.ConsolidationConfig{Threshold: threshold, Stable: stable},
			custodyDI.GetCustodyManager(sr),
			executionDI.GetTokens(sr),
			executionDI.GetRouter(sr),
			log,
		)
		if err != nil {
			panic("failed to create consolidation service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup initializes the execution module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	executionDI.GetTradeExecutor(mono.Services())
	executionDI.GetConsolidation(mono.Services())

	log.Info(ctx, "execution module started",
		"demo_mode", cfg.Execution.DemoMode,
		"slippage", cfg.Strategy.SlippageDecimal().String(),
	)
	return nil
}

func mustAsset(registry *asset.Registry, symbol string, chainID uint64) *asset.Asset {
	a, ok := registry.GetBySymbolAndChain(symbol, chainID)
	if !ok {
		panic("asset not registered: " + symbol)
	}
	return a
}
