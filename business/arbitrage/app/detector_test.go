package app

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flowsniper/flowsniper/business/arbitrage/domain"
	marketDomain "github.com/flowsniper/flowsniper/business/market/domain"
	pricingDomain "github.com/flowsniper/flowsniper/business/pricing/domain"
	"github.com/flowsniper/flowsniper/internal/asset"
)

func makeQuotes(notional, v2Buy, v2SellUnit, v3Buy, v3SellUnit string) *marketDomain.QuoteSet {
	return &marketDomain.QuoteSet{
		Base:          asset.WETH,
		Quote:         asset.USDT,
		NotionalIn:    decimal.RequireFromString(notional),
		V2BuyOut:      decimal.RequireFromString(v2Buy),
		V2SellUnit:    decimal.RequireFromString(v2SellUnit),
		V3BuyOut:      decimal.RequireFromString(v3Buy),
		V3BuyFeeTier:  3000,
		V3SellUnit:    decimal.RequireFromString(v3SellUnit),
		V3SellFeeTier: 500,
	}
}

func makeReference(rate string, derived bool) *pricingDomain.ReferencePrice {
	pair := pricingDomain.NewPair(asset.WETH, asset.USDT)
	return pricingDomain.NewReferencePrice(pair, decimal.RequireFromString(rate), "bybit", derived)
}

func TestDetector_Detect(t *testing.T) {
	cfg := DefaultDetectorConfig()
	detector := NewDetector(cfg)
	gas := decimal.RequireFromString("0.02")

	tests := []struct {
		name          string
		quotes        *marketDomain.QuoteSet
		reference     *pricingDomain.ReferencePrice
		wantVerdict   domain.Verdict
		wantDirection domain.Direction
		wantNet       string
	}{
		{
			// 10 USDT buys 5 base on V2; selling at 2.05 on V3 grosses
			// 0.25, nets 0.21 after two 0.02 swaps.
			name:          "forward trade fires",
			quotes:        makeQuotes("10", "5.0", "1.99", "4.8", "2.05"),
			wantVerdict:   domain.VerdictTrade,
			wantDirection: domain.DirectionForward,
			wantNet:       "0.21",
		},
		{
			name:          "reverse direction wins when v3 buys cheaper",
			quotes:        makeQuotes("10", "4.8", "2.05", "5.0", "1.99"),
			wantVerdict:   domain.VerdictTrade,
			wantDirection: domain.DirectionReverse,
			wantNet:       "0.21",
		},
		{
			name:        "thin spread stays below threshold",
			quotes:      makeQuotes("10", "5.0", "1.99", "4.8", "2.002"),
			wantVerdict: domain.VerdictBelowThreshold,
		},
		{
			name:        "absurd return trips the roi breaker",
			quotes:      makeQuotes("10", "5.0", "1.99", "4.8", "4.0"),
			wantVerdict: domain.VerdictROISuspicious,
		},
		{
			name:        "dead legs everywhere",
			quotes:      makeQuotes("10", "0", "0", "0", "0"),
			wantVerdict: domain.VerdictNoRoute,
		},
		{
			name:        "reference divergence abstains",
			quotes:      makeQuotes("10", "5.0", "1.99", "4.8", "2.05"),
			reference:   makeReference("1.70", false),
			wantVerdict: domain.VerdictDiverged,
		},
		{
			name:          "derived reference never gates",
			quotes:        makeQuotes("10", "5.0", "1.99", "4.8", "2.05"),
			reference:     makeReference("1.70", true),
			wantVerdict:   domain.VerdictTrade,
			wantDirection: domain.DirectionForward,
			wantNet:       "0.21",
		},
		{
			name:          "reference within tolerance passes",
			quotes:        makeQuotes("10", "5.0", "1.99", "4.8", "2.05"),
			reference:     makeReference("2.00", false),
			wantVerdict:   domain.VerdictTrade,
			wantDirection: domain.DirectionForward,
			wantNet:       "0.21",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, verdict := detector.Detect(DetectInput{
				Quotes:    tt.quotes,
				Reference: tt.reference,
				GasCost:   gas,
			})

			if verdict != tt.wantVerdict {
				t.Fatalf("verdict = %s, want %s", verdict, tt.wantVerdict)
			}
			if !verdict.Tradeable() {
				if opp != nil {
					t.Fatal("non-trade verdict must not carry an opportunity")
				}
				return
			}

			if opp == nil {
				t.Fatal("trade verdict must carry an opportunity")
			}
			if opp.Direction != tt.wantDirection {
				t.Errorf("direction = %s, want %s", opp.Direction, tt.wantDirection)
			}
			wantNet := decimal.RequireFromString(tt.wantNet)
			if !opp.NetProfit.Equal(wantNet) {
				t.Errorf("net profit = %s, want %s", opp.NetProfit, wantNet)
			}
			if opp.ID == "" {
				t.Error("opportunity must carry an id")
			}
		})
	}
}

func TestDetector_Detect_MinProfitOverride(t *testing.T) {
	detector := NewDetector(DefaultDetectorConfig())
	quotes := makeQuotes("10", "5.0", "1.99", "4.8", "2.05")
	gas := decimal.RequireFromString("0.02")

	// Nets 0.21 against the default 0.001 gate.
	if _, verdict := detector.Detect(DetectInput{Quotes: quotes, GasCost: gas}); verdict != domain.VerdictTrade {
		t.Fatalf("verdict = %s, want %s", verdict, domain.VerdictTrade)
	}

	// A tightened per-cycle gate must win over the boot-time config.
	_, verdict := detector.Detect(DetectInput{
		Quotes:            quotes,
		GasCost:           gas,
		MinProfitFraction: decimal.RequireFromString("0.9"),
	})
	if verdict != domain.VerdictBelowThreshold {
		t.Fatalf("verdict = %s, want %s", verdict, domain.VerdictBelowThreshold)
	}
}

func TestDetector_Detect_NilQuotes(t *testing.T) {
	detector := NewDetector(DefaultDetectorConfig())

	opp, verdict := detector.Detect(DetectInput{})
	if verdict != domain.VerdictNoRoute {
		t.Fatalf("verdict = %s, want %s", verdict, domain.VerdictNoRoute)
	}
	if opp != nil {
		t.Fatal("expected nil opportunity")
	}
}
