package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/walletfeatures/internal/net/httpclient"
	"github.com/sawpanic/walletfeatures/internal/net/ratelimit"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko queries market charts indexed by coin or platform+contract
// directly, no registry-id resolution step.
type CoinGecko struct {
	baseURL string
	pool    *httpclient.Pool
}

type CoinGeckoConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
}

func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = coinGeckoBaseURL
	}
	return &CoinGecko{
		baseURL: baseURL,
		pool: httpclient.NewPool(httpclient.Config{
			Provider:       "coingecko",
			MaxConcurrency: 2, // free tier
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			Limiter:        ratelimit.NewLimiter(0.5, 1),
		}),
	}
}

func (p *CoinGecko) Name() string { return "coingecko" }

func (p *CoinGecko) ContractPrice(ctx context.Context, contractAddress, network string, ts time.Time) (*TokenPrice, error) {
	path := fmt.Sprintf("/coins/%s/contract/%s/market_chart/range", platformFor(network), strings.ToLower(contractAddress))
	return p.rangePrice(ctx, path, ts)
}

func (p *CoinGecko) NativePrice(ctx context.Context, network string, ts time.Time) (*TokenPrice, error) {
	path := fmt.Sprintf("/coins/%s/market_chart/range", nativeCoinFor(network))
	return p.rangePrice(ctx, path, ts)
}

// rangePrice queries samples in a two-hour window around ts and picks
// the one closest to it.
func (p *CoinGecko) rangePrice(ctx context.Context, path string, ts time.Time) (*TokenPrice, error) {
	from := ts.Add(-time.Hour).Unix()
	to := ts.Add(time.Hour).Unix()
	url := fmt.Sprintf("%s%s?vs_currency=usd&from=%d&to=%d", p.baseURL, path, from, to)

	resp, err := p.pool.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("coingecko %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var chart struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("coingecko %s: decode: %w", path, err)
	}

	candidates := make([]TokenPrice, 0, len(chart.Prices))
	for _, sample := range chart.Prices {
		candidates = append(candidates, TokenPrice{
			USD:       sample[1],
			Timestamp: time.UnixMilli(int64(sample[0])).UTC(),
		})
	}
	return closestQuote(candidates, ts), nil
}

func platformFor(network string) string {
	switch network {
	case "eth-mainnet", "":
		return "ethereum"
	case "polygon-mainnet":
		return "polygon-pos"
	case "arb-mainnet":
		return "arbitrum-one"
	case "opt-mainnet":
		return "optimistic-ethereum"
	case "base-mainnet":
		return "base"
	}
	return "ethereum"
}

func nativeCoinFor(network string) string {
	switch network {
	case "polygon-mainnet":
		return "matic-network"
	}
	return "ethereum"
}
