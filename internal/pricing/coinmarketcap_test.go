package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseHistoricalQuotes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("direct payload", func(t *testing.T) {
		body := []byte(`{"data":{"quotes":[
			{"timestamp":"2024-03-01T11:00:00Z","quote":{"USD":{"price":1000.0,"timestamp":"2024-03-01T11:00:00Z"}}},
			{"timestamp":"2024-03-01T12:00:00Z","quote":{"USD":{"price":1010.0,"timestamp":"2024-03-01T12:00:00Z"}}}
		]}}`)
		quotes := parseHistoricalQuotes(body, ts)
		if len(quotes) != 2 {
			t.Fatalf("len = %d, want 2", len(quotes))
		}
		best := closestQuote(quotes, ts)
		if best == nil || best.USD != 1010.0 {
			t.Errorf("closest = %+v, want the 12:00 quote", best)
		}
	})

	t.Run("keyed by id", func(t *testing.T) {
		body := []byte(`{"data":{"1027":{"quotes":[
			{"quote":{"USD":{"price":995.5,"last_updated":"2024-03-01T12:05:00Z"}}}
		]}}}`)
		quotes := parseHistoricalQuotes(body, ts)
		if len(quotes) != 1 || quotes[0].USD != 995.5 {
			t.Errorf("quotes = %+v", quotes)
		}
	})

	t.Run("missing usd quote", func(t *testing.T) {
		body := []byte(`{"data":{"quotes":[{"timestamp":"2024-03-01T12:00:00Z","quote":{"EUR":{"price":1.0}}}]}}`)
		if quotes := parseHistoricalQuotes(body, ts); len(quotes) != 0 {
			t.Errorf("quotes = %+v, want none", quotes)
		}
	})

	t.Run("garbage body", func(t *testing.T) {
		if quotes := parseHistoricalQuotes([]byte(`{"data":`), ts); quotes != nil {
			t.Errorf("quotes = %+v, want nil", quotes)
		}
	})
}

func TestParseLatestQuote(t *testing.T) {
	fallback := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("keyed by id", func(t *testing.T) {
		body := []byte(`{"data":{"1027":{"quote":{"USD":{"price":2500.25,"last_updated":"2024-03-01T12:00:00Z"}}}}}`)
		price := parseLatestQuote(body, fallback)
		if price == nil || price.USD != 2500.25 {
			t.Errorf("price = %+v", price)
		}
	})

	t.Run("fallback timestamp", func(t *testing.T) {
		body := []byte(`{"data":{"1027":{"quote":{"USD":{"price":2500.25}}}}}`)
		price := parseLatestQuote(body, fallback)
		if price == nil || !price.Timestamp.Equal(fallback) {
			t.Errorf("price = %+v, want fallback timestamp", price)
		}
	})

	t.Run("empty data", func(t *testing.T) {
		if price := parseLatestQuote([]byte(`{"data":{}}`), fallback); price != nil {
			t.Errorf("price = %+v, want nil", price)
		}
	})
}

func TestParseContractTokenID(t *testing.T) {
	addr := "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

	t.Run("single entry", func(t *testing.T) {
		body := []byte(`{"data":{"3408":{"id":3408,"platform":{"token_address":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}}}}`)
		if id := parseContractTokenID(body, addr); id != "3408" {
			t.Errorf("id = %q, want 3408", id)
		}
	})

	t.Run("array entry", func(t *testing.T) {
		body := []byte(`{"data":{"usdc":[{"id":3408,"platform":{"token_address":"` + addr + `"}}]}}`)
		if id := parseContractTokenID(body, addr); id != "3408" {
			t.Errorf("id = %q, want 3408", id)
		}
	})

	t.Run("address mismatch", func(t *testing.T) {
		body := []byte(`{"data":{"3408":{"id":3408,"platform":{"token_address":"0xother"}}}}`)
		if id := parseContractTokenID(body, addr); id != "" {
			t.Errorf("id = %q, want empty", id)
		}
	})

	t.Run("nil body", func(t *testing.T) {
		if id := parseContractTokenID(nil, addr); id != "" {
			t.Errorf("id = %q, want empty", id)
		}
	})
}

func TestCoinMarketCap_NoKeySkipsRequests(t *testing.T) {
	p := NewCoinMarketCap(CoinMarketCapConfig{})

	price, err := p.NativePrice(context.Background(), "eth-mainnet", time.Now())
	if err != nil {
		t.Fatalf("NativePrice: %v", err)
	}
	if price != nil {
		t.Errorf("price = %+v, want nil without an API key", price)
	}
}

func TestCoinMarketCap_CachesTokenIDLookups(t *testing.T) {
	var infoCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/cryptocurrency/info":
			atomic.AddInt32(&infoCalls, 1)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"3408": map[string]any{"id": 3408, "platform": map[string]any{"token_address": "0xusdc"}},
			}})
		case "/v2/cryptocurrency/quotes/historical":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"quotes": []any{
				map[string]any{"timestamp": "2024-03-01T12:00:00Z", "quote": map[string]any{"USD": map[string]any{"price": 1.0, "timestamp": "2024-03-01T12:00:00Z"}}},
			}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewCoinMarketCap(CoinMarketCapConfig{APIKey: "k", BaseURL: server.URL})
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		price, err := p.ContractPrice(context.Background(), "0xUSDC", "eth-mainnet", ts)
		if err != nil {
			t.Fatalf("ContractPrice: %v", err)
		}
		if price == nil || price.USD != 1.0 {
			t.Fatalf("price = %+v", price)
		}
	}
	if got := atomic.LoadInt32(&infoCalls); got != 1 {
		t.Errorf("info endpoint called %d times, want 1", got)
	}
}

func TestCoinMarketCap_FallsBackToLatestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/cryptocurrency/quotes/historical":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"quotes": []any{}}})
		case "/v2/cryptocurrency/quotes/latest":
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"1027": map[string]any{"quote": map[string]any{"USD": map[string]any{"price": 3000.0, "last_updated": "2024-03-01T12:00:00Z"}}},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewCoinMarketCap(CoinMarketCapConfig{APIKey: "k", BaseURL: server.URL})

	price, err := p.NativePrice(context.Background(), "eth-mainnet", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NativePrice: %v", err)
	}
	if price == nil || price.USD != 3000.0 {
		t.Errorf("price = %+v, want latest quote", price)
	}
}

func TestClosestQuote(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	candidates := []TokenPrice{
		{USD: 1, Timestamp: ts.Add(-50 * time.Minute)},
		{USD: 2, Timestamp: ts.Add(5 * time.Minute)},
		{USD: 3, Timestamp: ts.Add(40 * time.Minute)},
	}
	best := closestQuote(candidates, ts)
	if best == nil || best.USD != 2 {
		t.Errorf("best = %+v, want the 5-minute sample", best)
	}

	if closestQuote(nil, ts) != nil {
		t.Error("no candidates should yield nil")
	}
}
