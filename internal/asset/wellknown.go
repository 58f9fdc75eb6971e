package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDPolygon  = 137
	ChainIDAmoy     = 80002
)

// Well-known token addresses on Polygon PoS
var (
	// Stablecoins
	AddrUSDTPolygon = common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F")
	AddrUSDCPolygon = common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359")
	AddrDAIPolygon  = common.HexToAddress("0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063")

	// Wrapped
	AddrWPOLPolygon = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	AddrWETHPolygon = common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619")
	AddrWBTCPolygon = common.HexToAddress("0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6")
	AddrLINKPolygon = common.HexToAddress("0x53E0bca35eC356BD5ddDFebbD1Fc0fD03FaBad39")
)

// Well-known AssetIDs
var (
	IDPolygonPOL  = NewNativeAssetID(ChainIDPolygon)
	IDPolygonUSDT = NewTokenAssetID(ChainIDPolygon, AddrUSDTPolygon)
	IDPolygonUSDC = NewTokenAssetID(ChainIDPolygon, AddrUSDCPolygon)
	IDPolygonDAI  = NewTokenAssetID(ChainIDPolygon, AddrDAIPolygon)
	IDPolygonWPOL = NewTokenAssetID(ChainIDPolygon, AddrWPOLPolygon)
	IDPolygonWETH = NewTokenAssetID(ChainIDPolygon, AddrWETHPolygon)
	IDPolygonWBTC = NewTokenAssetID(ChainIDPolygon, AddrWBTCPolygon)
	IDPolygonLINK = NewTokenAssetID(ChainIDPolygon, AddrLINKPolygon)
)

// Well-known Assets (pre-created instances)
var (
	POL  = NewAssetWithName(IDPolygonPOL, "POL", "Polygon Ecosystem Token", 18)
	USDT = NewAssetWithName(IDPolygonUSDT, "USDT", "Tether USD", 6)
	USDC = NewAssetWithName(IDPolygonUSDC, "USDC", "USD Coin", 6)
	DAI  = NewAssetWithName(IDPolygonDAI, "DAI", "Dai Stablecoin", 18)
	WPOL = NewAssetWithName(IDPolygonWPOL, "WPOL", "Wrapped POL", 18)
	WETH = NewAssetWithName(IDPolygonWETH, "WETH", "Wrapped Ether", 18)
	WBTC = NewAssetWithName(IDPolygonWBTC, "WBTC", "Wrapped Bitcoin", 8)
	LINK = NewAssetWithName(IDPolygonLINK, "LINK", "ChainLink Token", 18)
)

// DefaultRegistry returns a registry pre-populated with the Polygon
// assets the bot trades.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(POL)
	r.Register(USDT)
	r.Register(USDC)
	r.Register(DAI)
	r.Register(WPOL)
	r.Register(WETH)
	r.Register(WBTC)
	r.Register(LINK)

	return r
}
