// Package app contains application services and port definitions for the execution context.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	custodyDomain "github.com/flowsniper/flowsniper/business/custody/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
)

// Custody is the slice of the custody manager the executor needs. Satisfied
// by *custody/app.CustodyManager.
type Custody interface {
	Operator() common.Address
	Owner() (common.Address, bool)
	ResolveSigner(preferred common.Address) (*custodyDomain.Signer, error)
	EnsureFunds(ctx context.Context, token common.Address, amount *big.Int) error
}

// TokenReader reads ERC-20 state.
type TokenReader interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// NativeBalanceReader reads native coin balances. Satisfied by
// *ethclient.Client.
type NativeBalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// VenueRouter builds and submits swaps against the configured venues.
type VenueRouter interface {
	// EnsureAllowance makes sure the venue's router can spend token for
	// signer, granting an infinite approval and waiting for it when not.
	EnsureAllowance(ctx context.Context, signer *custodyDomain.Signer, token common.Address, venue marketDomain.Venue, required *big.Int) error

	// SwapV2 submits swapExactTokensForTokens along path and returns
	// without awaiting inclusion.
	SwapV2(ctx context.Context, signer *custodyDomain.Signer, amountIn, minOut *big.Int, path []common.Address, deadline time.Time) (*types.Transaction, error)

	// SwapV2ToNative submits swapExactTokensForETH, unwrapping to the
	// native coin.
	SwapV2ToNative(ctx context.Context, signer *custodyDomain.Signer, amountIn, minOut *big.Int, path []common.Address, deadline time.Time) (*types.Transaction, error)

	// SwapV3 submits exactInputSingle on the given fee tier.
	SwapV3(ctx context.Context, signer *custodyDomain.Signer, tokenIn, tokenOut common.Address, feeTier int, amountIn, minOut *big.Int, deadline time.Time) (*types.Transaction, error)

	// Transfer submits a plain ERC-20 transfer and waits for inclusion.
	Transfer(ctx context.Context, signer *custodyDomain.Signer, token, to common.Address, amount *big.Int) (common.Hash, error)

	// Await blocks until a submitted transaction is mined.
	Await(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}
