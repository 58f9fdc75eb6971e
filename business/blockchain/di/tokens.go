// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/flowsniper/flowsniper/business/blockchain/app"
	"github.com/flowsniper/flowsniper/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("blockchain.ChainService")
	GasOracle    = di.NewToken[app.GasOracle]("blockchain.GasOracle")
	TxSender     = di.NewToken[app.TxSender]("blockchain.TxSender")
)

// Private dependency tokens - internal to blockchain module
var (
	BlockSubscriber = di.NewToken[app.BlockSubscriber]("blockchain:blockSubscriber")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetTxSender(c di.ServiceRegistry) app.TxSender {
	return di.GetToken(c, TxSender)
}

func GetBlockSubscriber(c di.ServiceRegistry) app.BlockSubscriber {
	return di.GetToken(c, BlockSubscriber)
}
