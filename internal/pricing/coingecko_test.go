package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestCoinGecko(t *testing.T, handler http.HandlerFunc) *CoinGecko {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewCoinGecko(CoinGeckoConfig{BaseURL: server.URL, RequestTimeout: 2 * time.Second})
}

func TestCoinGecko_NativePrice(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/coins/ethereum/market_chart/range") {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"prices": [][2]float64{
			{float64(ts.Add(-30 * time.Minute).UnixMilli()), 2990},
			{float64(ts.Add(-2 * time.Minute).UnixMilli()), 3001},
			{float64(ts.Add(25 * time.Minute).UnixMilli()), 3010},
		}})
	})

	price, err := p.NativePrice(context.Background(), "eth-mainnet", ts)
	if err != nil {
		t.Fatalf("NativePrice: %v", err)
	}
	if price == nil || price.USD != 3001 {
		t.Errorf("price = %+v, want the closest sample", price)
	}
}

func TestCoinGecko_ContractPricePath(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		want := "/coins/ethereum/contract/0xabc/market_chart/range"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		json.NewEncoder(w).Encode(map[string]any{"prices": [][2]float64{
			{float64(ts.UnixMilli()), 1.0},
		}})
	})

	price, err := p.ContractPrice(context.Background(), "0xABC", "eth-mainnet", ts)
	if err != nil {
		t.Fatalf("ContractPrice: %v", err)
	}
	if price == nil || price.USD != 1.0 {
		t.Errorf("price = %+v", price)
	}
}

func TestCoinGecko_UnknownAssetIsNil(t *testing.T) {
	p := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	price, err := p.ContractPrice(context.Background(), "0xunknown", "eth-mainnet", time.Now())
	if err != nil || price != nil {
		t.Errorf("404 should be (nil, nil), got (%v, %v)", price, err)
	}
}

func TestCoinGecko_EmptyRangeIsNil(t *testing.T) {
	p := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"prices": [][2]float64{}})
	})

	price, err := p.NativePrice(context.Background(), "eth-mainnet", time.Now())
	if err != nil || price != nil {
		t.Errorf("empty range should be (nil, nil), got (%v, %v)", price, err)
	}
}

func TestPlatformFor(t *testing.T) {
	cases := map[string]string{
		"eth-mainnet":     "ethereum",
		"":                "ethereum",
		"polygon-mainnet": "polygon-pos",
		"arb-mainnet":     "arbitrum-one",
		"base-mainnet":    "base",
		"something-else":  "ethereum",
	}
	for network, want := range cases {
		if got := platformFor(network); got != want {
			t.Errorf("platformFor(%q) = %q, want %q", network, got, want)
		}
	}
}
