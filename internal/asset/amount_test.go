package asset_test

import (
	"math/big"
	"testing"

	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/shopspring/decimal"
)

func TestAmount_Basic(t *testing.T) {
	// 1 WETH = 1e18 wei
	oneWETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))

	if oneWETH.IsZero() {
		t.Error("expected non-zero amount")
	}

	// ToDecimal should return 1.0
	d := oneWETH.ToDecimal()
	if !d.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", d.String())
	}

	if oneWETH.String() != "1 WETH" {
		t.Errorf("expected '1 WETH', got '%s'", oneWETH.String())
	}
}

func TestAmount_Add(t *testing.T) {
	oneWETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))
	twoWETH := asset.NewAmount(asset.WETH, big.NewInt(2e18))

	sum, err := oneWETH.Add(twoWETH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := decimal.NewFromInt(3)
	if !sum.ToDecimal().Equal(expected) {
		t.Errorf("expected 3, got %s", sum.ToDecimal().String())
	}
}

func TestAmount_CannotAddDifferentAssets(t *testing.T) {
	oneWETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))
	oneUSDT := asset.NewAmount(asset.USDT, big.NewInt(1e6))

	_, err := oneWETH.Add(oneUSDT)
	if err == nil {
		t.Error("expected error when adding different assets")
	}
}

func TestAmount_Sub(t *testing.T) {
	threeWETH := asset.NewAmount(asset.WETH, big.NewInt(3e18))
	oneWETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))

	diff, err := threeWETH.Sub(oneWETH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := decimal.NewFromInt(2)
	if !diff.ToDecimal().Equal(expected) {
		t.Errorf("expected 2, got %s", diff.ToDecimal().String())
	}
}

func TestAmount_SubNegativeError(t *testing.T) {
	oneWETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))
	twoWETH := asset.NewAmount(asset.WETH, big.NewInt(2e18))

	_, err := oneWETH.Sub(twoWETH)
	if err == nil {
		t.Error("expected error for negative result")
	}
}

func TestParseDecimal(t *testing.T) {
	// Parse "1.5" WETH
	d := decimal.NewFromFloat(1.5)
	amount, err := asset.ParseDecimal(asset.WETH, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should be 1.5e18 wei
	expected := big.NewInt(0)
	expected.SetString("1500000000000000000", 10)

	if amount.Raw().Cmp(expected) != 0 {
		t.Errorf("expected %s, got %s", expected.String(), amount.Raw().String())
	}
}

func TestParseDecimal_TooManyDecimals(t *testing.T) {
	// USDT has 6 decimals, try to parse 1.1234567 (7 decimals)
	d := decimal.NewFromFloat(1.1234567)
	_, err := asset.ParseDecimal(asset.USDT, d)
	if err == nil {
		t.Error("expected error for too many decimals")
	}
}

func TestPrice_Convert(t *testing.T) {
	// WETH/USDT price = 2000
	price := asset.NewPriceNow(asset.WETH, asset.USDT, decimal.NewFromInt(2000))

	oneWETH := asset.NewAmount(asset.WETH, big.NewInt(1e18))

	usdt, err := price.Convert(oneWETH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should be 2000 USDT (2000 * 1e6 = 2e9 raw)
	expectedUSDT := decimal.NewFromInt(2000)
	if !usdt.ToDecimal().Equal(expectedUSDT) {
		t.Errorf("expected %s USDT, got %s", expectedUSDT.String(), usdt.ToDecimal().String())
	}
}

func TestPrice_Invert(t *testing.T) {
	// WETH/USDT = 2000
	price := asset.NewPriceNow(asset.WETH, asset.USDT, decimal.NewFromInt(2000))

	// Invert to USDT/WETH = 0.0005
	inverted := price.Invert()

	expected := decimal.NewFromFloat(0.0005)
	// Allow small precision error
	diff := inverted.Rate().Sub(expected).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.0000001)) {
		t.Errorf("expected ~0.0005, got %s", inverted.Rate().String())
	}
}

func TestAssetID_Identity(t *testing.T) {
	usdtPolygon := asset.NewTokenAssetID(137, asset.AddrUSDTPolygon)
	usdtPolygon2 := asset.NewTokenAssetID(137, asset.AddrUSDTPolygon)

	if !usdtPolygon.Equals(usdtPolygon2) {
		t.Error("same asset should have equal IDs")
	}

	// Same address on a different chain is a different asset
	usdtEthereum := asset.NewTokenAssetID(1, asset.AddrUSDTPolygon)

	if usdtPolygon.Equals(usdtEthereum) {
		t.Error("different chains should have different IDs")
	}
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	// Should find the native coin
	pol, ok := r.GetNative(asset.ChainIDPolygon)
	if !ok {
		t.Error("POL not found in registry")
	}
	if pol.Symbol() != "POL" {
		t.Errorf("expected POL, got %s", pol.Symbol())
	}

	// Should find USDT by symbol and chain
	usdt, ok := r.GetBySymbolAndChain("USDT", asset.ChainIDPolygon)
	if !ok {
		t.Error("USDT not found in registry")
	}
	if usdt.Decimals() != 6 {
		t.Errorf("expected 6 decimals, got %d", usdt.Decimals())
	}
}
