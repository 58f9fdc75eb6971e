// Package custody implements the wallet custody bounded context.
package custody

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/flowsniper/flowsniper/business/blockchain/di"
	"github.com/flowsniper/flowsniper/business/custody/app"
	custodyDI "github.com/flowsniper/flowsniper/business/custody/di"
	"github.com/flowsniper/flowsniper/business/custody/infra/keystore"
	"github.com/flowsniper/flowsniper/business/custody/infra/token"
	"github.com/flowsniper/flowsniper/internal/config"
	"github.com/flowsniper/flowsniper/internal/di"
	"github.com/flowsniper/flowsniper/internal/logger"
	"github.com/flowsniper/flowsniper/internal/monolith"
)

// Module implements the custody bounded context.
type Module struct{}

// RegisterServices registers all custody services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, custodyDI.KeyStore, func(sr di.ServiceRegistry) app.KeyStore {
		cfg := sr.Get("config").(*config.Config)
		return keystore.NewFileKeyStore(cfg.Custody.OperatorKeyFile, cfg.Custody.KeyStoreDir)
	})

	di.RegisterToken(c, custodyDI.TokenCustody, func(sr di.ServiceRegistry) app.TokenCustody {
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		adapter, err := token.NewAdapter(client, blockchainDI.GetTxSender(sr), log)
		if err != nil {
			panic("failed to create token custody adapter: " + err.Error())
		}
		return adapter
	})

	di.RegisterToken(c, custodyDI.CustodyManager, func(sr di.ServiceRegistry) *app.CustodyManager {
		log := sr.Get("logger").(logger.LoggerInterface)

		manager, err := app.NewCustodyManager(
			custodyDI.GetKeyStore(sr),
			custodyDI.GetTokenCustody(sr),
			log,
		)
		if err != nil {
			panic("failed to create custody manager: " + err.Error())
		}
		return manager
	})

	return nil
}

// Startup initializes the custody module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	manager := custodyDI.GetCustodyManager(mono.Services())

	log.Info(ctx, "custody module started", "operator", manager.Operator().Hex())
	return nil
}
