package statefile

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/business/engine/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "bot_config.json")
	store := NewStore(path)

	params := domain.Params{
		TradeAmount:       decimal.RequireFromString("10"),
		Slippage:          decimal.RequireFromString("0.005"),
		MinProfitFraction: decimal.RequireFromString("0.001"),
		MaxDrawdown:       decimal.RequireFromString("-5"),
	}
	if err := store.Save(params); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected persisted params")
	}
	if !loaded.TradeAmount.Equal(params.TradeAmount) {
		t.Fatalf("trade amount = %s", loaded.TradeAmount)
	}
	if !loaded.MaxDrawdown.Equal(params.MaxDrawdown) {
		t.Fatalf("max drawdown = %s", loaded.MaxDrawdown)
	}
}

func TestStoreMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatal("missing file must load as nil params")
	}
}

func TestStoreOverwrites(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "bot_config.json"))

	first := domain.Params{TradeAmount: decimal.RequireFromString("10")}
	second := domain.Params{TradeAmount: decimal.RequireFromString("25")}

	if err := store.Save(first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.TradeAmount.Equal(second.TradeAmount) {
		t.Fatalf("trade amount = %s, want 25", loaded.TradeAmount)
	}
}
