// Package blockchain implements the chain integration bounded context.
package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/flowsniper/flowsniper/business/blockchain/app"
	blockchainDI "github.com/flowsniper/flowsniper/business/blockchain/di"
	"github.com/flowsniper/flowsniper/business/blockchain/infra/ethereum"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register BlockSubscriber (private - internal dependency)
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Chain.WebSocketURL, cfg.Chain.HTTPURL)
		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	// Register GasOracle (public - executor and custody depend on it)
	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		if cfg.Execution.GasPriceTTL > 0 {
			oracleCfg.CacheTTL = cfg.Execution.GasPriceTTL
		}
		if cfg.Execution.GasBumpFactor > 0 {
			oracleCfg.BumpFactor = int64(cfg.Execution.GasBumpFactor * 100)
		}
		oracle, err := ethereum.NewGasOracle(client, oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// Register TxSender (public - custody and execution submit through it)
	di.RegisterToken(c, blockchainDI.TxSender, func(sr di.ServiceRegistry) app.TxSender {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		senderCfg := ethereum.DefaultTxSenderConfig(new(big.Int).SetUint64(cfg.Chain.ChainID))
		if cfg.Execution.MineTimeout > 0 {
			senderCfg.MineTimeout = cfg.Execution.MineTimeout
		}

		sender, err := ethereum.NewTxSender(client, blockchainDI.GetGasOracle(sr), senderCfg, log)
		if err != nil {
			panic("failed to create tx sender: " + err.Error())
		}
		return sender
	})

	// Register ChainService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		sub := blockchainDI.GetBlockSubscriber(sr)
		oracle := blockchainDI.GetGasOracle(sr)
		return app.NewChainService(sub, oracle)
	})

	return nil
}

// Startup initializes the blockchain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Resolving the services builds the adapters eagerly so config problems
	// surface at startup rather than first use.
	_ = blockchainDI.GetGasOracle(mono.Services())
	_ = blockchainDI.GetBlockSubscriber(mono.Services())

	log.Info(ctx, "blockchain module started")
	return nil
}
