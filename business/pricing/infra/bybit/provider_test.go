package bybit

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider(Config{BaseURL: server.URL}, testutil.NopLogger())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p, server
}

func TestProvider_SpotPrice(t *testing.T) {
	pair := domain.NewPair(asset.WETH, asset.USDT)

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("category"); got != "spot" {
			t.Errorf("expected category spot, got %s", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "ETHUSDT" {
			t.Errorf("expected symbol ETHUSDT, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"ETHUSDT","lastPrice":"2050.35"}]}}`))
	})

	price, err := p.SpotPrice(context.Background(), pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := decimal.RequireFromString("2050.35")
	if !price.Rate.Equal(want) {
		t.Errorf("expected rate %s, got %s", want, price.Rate)
	}
	if price.Source != "bybit" {
		t.Errorf("expected source bybit, got %s", price.Source)
	}
	if price.Derived {
		t.Error("exchange spot price should not be marked derived")
	}
}

func TestProvider_SpotPrice_EmptyList(t *testing.T) {
	pair := domain.NewPair(asset.WETH, asset.USDT)

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[]}}`))
	})

	_, err := p.SpotPrice(context.Background(), pair)
	if err == nil {
		t.Fatal("expected error for empty ticker list")
	}
	if apperror.GetCode(err) != apperror.CodePairUnsupported {
		t.Errorf("expected PAIR_UNSUPPORTED, got %s", apperror.GetCode(err))
	}
}

func TestProvider_SpotPrice_RetCodeError(t *testing.T) {
	pair := domain.NewPair(asset.WETH, asset.USDT)

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	})

	_, err := p.SpotPrice(context.Background(), pair)
	if err == nil {
		t.Fatal("expected error for non-zero retCode")
	}
	if apperror.GetCode(err) != apperror.CodePriceSourceFailed {
		t.Errorf("expected PRICE_SOURCE_FAILED, got %s", apperror.GetCode(err))
	}
}

func TestProvider_SpotPrice_ServerError(t *testing.T) {
	pair := domain.NewPair(asset.WETH, asset.USDT)

	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.SpotPrice(context.Background(), pair)
	if err == nil {
		t.Fatal("expected error for HTTP 502")
	}
	if apperror.GetCode(err) != apperror.CodePriceSourceFailed {
		t.Errorf("expected PRICE_SOURCE_FAILED, got %s", apperror.GetCode(err))
	}
}
