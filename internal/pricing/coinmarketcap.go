package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/walletfeatures/internal/cache"
	"github.com/sawpanic/walletfeatures/internal/net/httpclient"
)

const (
	coinMarketCapBaseURL = "https://pro-api.coinmarketcap.com"

	// CoinMarketCap registry id for Ether.
	ethCMCID = "1027"
)

// CoinMarketCap resolves a contract address to a registry id, then
// queries historical hourly quotes with a latest-quote fallback.
type CoinMarketCap struct {
	baseURL string
	apiKey  string
	pool    *httpclient.Pool

	// idCache maps lowercase contract address to registry id; an empty
	// string records a known-unresolvable contract.
	idCache *cache.Map[string]

	missingKeyOnce sync.Once
}

type CoinMarketCapConfig struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
}

func NewCoinMarketCap(cfg CoinMarketCapConfig) *CoinMarketCap {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = coinMarketCapBaseURL
	}
	return &CoinMarketCap{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		pool: httpclient.NewPool(httpclient.Config{
			Provider:       "coinmarketcap",
			MaxConcurrency: 4,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
		}),
		idCache: cache.NewMap[string](),
	}
}

func (p *CoinMarketCap) Name() string { return "coinmarketcap" }

func (p *CoinMarketCap) ContractPrice(ctx context.Context, contractAddress, network string, ts time.Time) (*TokenPrice, error) {
	tokenID, err := p.tokenID(ctx, contractAddress)
	if err != nil {
		return nil, err
	}
	if tokenID == "" {
		return nil, nil
	}
	return p.priceForID(ctx, tokenID, ts)
}

func (p *CoinMarketCap) NativePrice(ctx context.Context, network string, ts time.Time) (*TokenPrice, error) {
	return p.priceForID(ctx, ethCMCID, ts)
}

// priceForID tries historical hourly quotes around ts first, then the
// latest quote.
func (p *CoinMarketCap) priceForID(ctx context.Context, tokenID string, ts time.Time) (*TokenPrice, error) {
	price, err := p.historicalPrice(ctx, tokenID, ts)
	if err != nil {
		return nil, err
	}
	if price != nil {
		return price, nil
	}
	return p.latestPrice(ctx, tokenID, ts)
}

func (p *CoinMarketCap) historicalPrice(ctx context.Context, tokenID string, ts time.Time) (*TokenPrice, error) {
	utc := ts.UTC()
	params := url.Values{
		"id":         {tokenID},
		"time_start": {utc.Add(-time.Hour).Format("2006-01-02T15:04:05")},
		"time_end":   {utc.Add(time.Hour).Format("2006-01-02T15:04:05")},
		"interval":   {"hourly"},
		"convert":    {"USD"},
	}
	body, err := p.request(ctx, "/v2/cryptocurrency/quotes/historical", params)
	if err != nil || body == nil {
		return nil, err
	}
	candidates := parseHistoricalQuotes(body, ts)
	return closestQuote(candidates, ts), nil
}

func (p *CoinMarketCap) latestPrice(ctx context.Context, tokenID string, fallbackTS time.Time) (*TokenPrice, error) {
	params := url.Values{
		"id":      {tokenID},
		"convert": {"USD"},
	}
	body, err := p.request(ctx, "/v2/cryptocurrency/quotes/latest", params)
	if err != nil || body == nil {
		return nil, err
	}
	return parseLatestQuote(body, fallbackTS), nil
}

// tokenID resolves a contract address to a CoinMarketCap id, caching
// both hits and known misses for the life of the provider.
func (p *CoinMarketCap) tokenID(ctx context.Context, contractAddress string) (string, error) {
	normalized := strings.ToLower(contractAddress)
	if id, ok := p.idCache.Get(normalized); ok {
		return id, nil
	}
	body, err := p.request(ctx, "/v2/cryptocurrency/info", url.Values{"address": {normalized}})
	if err != nil {
		return "", err
	}
	id := parseContractTokenID(body, normalized)
	p.idCache.Set(normalized, id)
	return id, nil
}

// request performs one authenticated GET. A nil body with nil error
// means the request was skipped (no key) or the asset is unknown (404).
func (p *CoinMarketCap) request(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if p.apiKey == "" {
		p.missingKeyOnce.Do(func() {
			log.Warn().Msg("CoinMarketCap API key not configured; price requests will be skipped")
		})
		return nil, nil
	}

	header := http.Header{}
	header.Set("X-CMC_PRO_API_KEY", p.apiKey)
	header.Set("Accepts", "application/json")

	resp, err := p.pool.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    p.baseURL + path + "?" + params.Encode(),
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("coinmarketcap %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return io.ReadAll(resp.Body)
}

type cmcQuote struct {
	Timestamp string                 `json:"timestamp"`
	TimeClose string                 `json:"time_close"`
	TimeOpen  string                 `json:"time_open"`
	Quote     map[string]cmcUSDQuote `json:"quote"`
}

type cmcUSDQuote struct {
	Price       *float64 `json:"price"`
	Timestamp   string   `json:"timestamp"`
	LastUpdated string   `json:"last_updated"`
}

type cmcQuotesPayload struct {
	Quotes []cmcQuote `json:"quotes"`
}

// parseHistoricalQuotes extracts USD quotes from the historical
// response, which nests quotes either directly under data or under a
// per-id object.
func parseHistoricalQuotes(body []byte, fallbackTS time.Time) []TokenPrice {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return nil
	}

	var quotes []cmcQuote
	var direct cmcQuotesPayload
	if err := json.Unmarshal(envelope.Data, &direct); err == nil && len(direct.Quotes) > 0 {
		quotes = direct.Quotes
	} else {
		var byID map[string]cmcQuotesPayload
		if err := json.Unmarshal(envelope.Data, &byID); err == nil {
			for _, payload := range byID {
				quotes = append(quotes, payload.Quotes...)
			}
		}
	}

	var out []TokenPrice
	for _, q := range quotes {
		usd, ok := q.Quote["USD"]
		if !ok || usd.Price == nil {
			continue
		}
		ts := firstValidTime(usd.Timestamp, usd.LastUpdated, q.Timestamp, q.TimeClose, q.TimeOpen)
		if ts.IsZero() {
			ts = fallbackTS
		}
		out = append(out, TokenPrice{USD: *usd.Price, Timestamp: ts})
	}
	return out
}

type cmcLatestEntry struct {
	Quote map[string]cmcUSDQuote `json:"quote"`
}

func parseLatestQuote(body []byte, fallbackTS time.Time) *TokenPrice {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return nil
	}

	var entries []cmcLatestEntry
	var single cmcLatestEntry
	if err := json.Unmarshal(envelope.Data, &single); err == nil && len(single.Quote) > 0 {
		entries = append(entries, single)
	} else {
		var byID map[string]cmcLatestEntry
		if err := json.Unmarshal(envelope.Data, &byID); err == nil {
			for _, entry := range byID {
				entries = append(entries, entry)
			}
		}
	}

	for _, entry := range entries {
		usd, ok := entry.Quote["USD"]
		if !ok || usd.Price == nil {
			continue
		}
		ts := firstValidTime(usd.LastUpdated, usd.Timestamp)
		if ts.IsZero() {
			ts = fallbackTS
		}
		return &TokenPrice{USD: *usd.Price, Timestamp: ts}
	}
	return nil
}

type cmcInfoEntry struct {
	ID       json.Number `json:"id"`
	Platform *struct {
		TokenAddress string `json:"token_address"`
	} `json:"platform"`
}

// parseContractTokenID finds the registry id whose platform token
// address matches the queried contract.
func parseContractTokenID(body []byte, normalizedAddress string) string {
	if body == nil {
		return ""
	}
	var envelope struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	for _, raw := range envelope.Data {
		var entries []cmcInfoEntry
		var single cmcInfoEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			if err := json.Unmarshal(raw, &single); err != nil {
				continue
			}
			entries = []cmcInfoEntry{single}
		}
		for _, entry := range entries {
			if entry.Platform == nil {
				continue
			}
			if strings.ToLower(entry.Platform.TokenAddress) != normalizedAddress {
				continue
			}
			if id := entry.ID.String(); id != "" && id != "0" {
				return id
			}
		}
	}
	return ""
}

func firstValidTime(values ...string) time.Time {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
