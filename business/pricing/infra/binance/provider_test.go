package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/apperror"
	"github.com/flowsniper/flowsniper/internal/asset"
	"github.com/flowsniper/flowsniper/internal/testutil"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider(Config{BaseURL: server.URL}, testutil.NopLogger())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func TestProvider_SpotPrice(t *testing.T) {
	pair := domain.NewPair(asset.WETH, asset.USDT)

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "ETHUSDT" {
			t.Errorf("expected symbol ETHUSDT, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"2049.80000000"}`))
	})

	price, err := p.SpotPrice(context.Background(), pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := decimal.RequireFromString("2049.8")
	if !price.Rate.Equal(want) {
		t.Errorf("expected rate %s, got %s", want, price.Rate)
	}
	if price.Source != "binance" {
		t.Errorf("expected source binance, got %s", price.Source)
	}
}

func TestProvider_SpotPrice_UnknownSymbol(t *testing.T) {
	pair := domain.NewPair(asset.WPOL, asset.USDT)

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := p.SpotPrice(context.Background(), pair)
	if err == nil {
		t.Fatal("expected error for unknown symbol")
	}
	if apperror.GetCode(err) != apperror.CodePairUnsupported {
		t.Errorf("expected PAIR_UNSUPPORTED, got %s", apperror.GetCode(err))
	}
}

func TestProvider_SpotPrice_ServerError(t *testing.T) {
	pair := domain.NewPair(asset.WETH, asset.USDT)

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`oops`))
	})

	_, err := p.SpotPrice(context.Background(), pair)
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if apperror.GetCode(err) != apperror.CodePriceSourceFailed {
		t.Errorf("expected PRICE_SOURCE_FAILED, got %s", apperror.GetCode(err))
	}
}
