// Package asset models the tokens the bot trades and holds. Identity is
// chain plus contract address, never the symbol: two tokens can share a
// ticker, and the same address means different tokens on different
// chains. Quantities stay in big.Int smallest units internally, with
// decimal conversion only at the edges.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies an asset by chain and contract address. The native
// coin of a chain uses the zero address.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewNativeAssetID builds the ID of a chain's native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID builds the ID of an ERC20 token. Panics on the zero
// address, which is reserved for natives.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("asset: zero token address, use NewNativeAssetID for native coins")
	}
	return AssetID{chainID: chainID, address: addr}
}

// ChainID returns the chain the asset lives on.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the contract address, zero for native coins.
func (id AssetID) Address() common.Address {
	return id.address
}

// IsNative reports whether this is a chain's native coin.
func (id AssetID) IsNative() bool {
	return id.address == (common.Address{})
}

// IsToken reports whether this is an ERC20 token.
func (id AssetID) IsToken() bool {
	return id.address != (common.Address{})
}

// String renders the ID for logs, e.g. "chain:137/0xc213...".
func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Equals compares two IDs.
func (id AssetID) Equals(other AssetID) bool {
	return id.chainID == other.chainID && id.address == other.address
}
