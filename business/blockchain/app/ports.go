// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flowsniper/flowsniper/business/blockchain/domain"
)

// BlockSubscriber defines the interface for subscribing to new blocks.
type BlockSubscriber interface {
	// Subscribe starts listening for new blocks and returns a channel of blocks.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// State returns the current connection state.
	State() domain.ConnectionState
}

// TxRequest describes one transaction to submit.
type TxRequest struct {
	Key      *ecdsa.PrivateKey
	To       common.Address
	Data     []byte
	Value    *big.Int // nil means zero
	GasLimit uint64   // zero means estimate
}

// TxSender signs and submits transactions. All submissions for one sender
// key are serialized through the nonce manager, so concurrent callers are
// safe.
type TxSender interface {
	// Send submits the transaction and returns without awaiting inclusion.
	Send(ctx context.Context, req TxRequest) (*types.Transaction, error)

	// SendAndWait submits and blocks until the transaction is mined.
	SendAndWait(ctx context.Context, req TxRequest) (*types.Receipt, error)

	// Await blocks until a previously sent transaction is mined.
	Await(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// GasOracle defines the interface for transaction fee planning.
type GasOracle interface {
	// SuggestFees returns the fee plan for the next transaction.
	SuggestFees(ctx context.Context) (*domain.FeePlan, error)

	// EstimateGas estimates the gas needed for a call against to.
	EstimateGas(ctx context.Context, from common.Address, to common.Address, data []byte, value *big.Int) (uint64, error)
}
