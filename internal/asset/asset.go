package asset

import "github.com/ethereum/go-ethereum/common"

// Asset carries the metadata needed to interpret raw on-chain values:
// identity, symbol and decimals. The symbol is display metadata only.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates an asset. Decimals above 30 are rejected as a sign
// of corrupted token metadata.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}

	return &Asset{
		id:       id,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewAssetWithName creates an asset carrying a human-readable name.
func NewAssetWithName(id AssetID, symbol, name string, decimals uint8) *Asset {
	a := NewAsset(id, symbol, decimals)
	a.name = name
	return a
}

// ID returns the asset's identity.
func (a *Asset) ID() AssetID {
	return a.id
}

// Symbol returns the ticker symbol.
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places in the raw unit.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// ChainID returns the chain the asset lives on.
func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

// IsNative reports whether this is a chain's native coin.
func (a *Asset) IsNative() bool {
	return a.id.IsNative()
}

// IsToken reports whether this is an ERC20 token.
func (a *Asset) IsToken() bool {
	return a.id.IsToken()
}

// Address returns the contract address, zero for native coins.
func (a *Asset) Address() common.Address {
	return a.id.Address()
}

// Equals compares two assets by identity.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}

func (a *Asset) String() string {
	return a.symbol
}
