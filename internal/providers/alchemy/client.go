package alchemy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/walletfeatures/internal/net/httpclient"
	"github.com/sawpanic/walletfeatures/internal/net/ratelimit"
)

const defaultHost = "g.alchemy.com"

// Error is a permanent upstream failure: a JSON-RPC error object or a
// non-retryable HTTP status. It is never retried.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("alchemy error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("alchemy error: %s", e.Message)
}

type Config struct {
	APIKey         string
	Network        string
	BaseURL        string // overrides the derived URL, used by tests
	RequestTimeout time.Duration
	MaxConcurrency int
	MaxRetries     int
	RPS            float64
}

// Client is a JSON-RPC client for the Alchemy API. All outbound calls go
// through a shared bounded-concurrency pool with retry/backoff, plus a
// per-host token bucket.
type Client struct {
	network string
	baseURL string
	pool    *httpclient.Pool
}

func NewClient(cfg Config) *Client {
	network := cfg.Network
	if network == "" {
		network = "eth-mainnet"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.%s/v2/%s", network, defaultHost, cfg.APIKey)
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 20
	}
	return &Client{
		network: network,
		baseURL: baseURL,
		pool: httpclient.NewPool(httpclient.Config{
			Provider:       "alchemy",
			MaxConcurrency: cfg.MaxConcurrency,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			Limiter:        ratelimit.NewLimiter(rps, int(rps)),
		}),
	}
}

func (c *Client) Network() string {
	return c.network
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpc performs one JSON-RPC call and unmarshals the result into out.
// A nil JSON-RPC result leaves out untouched.
func (c *Client) rpc(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	resp, err := c.pool.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.baseURL,
		Header: header,
		Body:   payload,
	})
	if err != nil {
		return fmt.Errorf("alchemy %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &Error{Message: fmt.Sprintf("malformed response for %s: %v", method, err)}
	}
	if envelope.Error != nil {
		return &Error{Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if out != nil && len(envelope.Result) > 0 && string(envelope.Result) != "null" {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return &Error{Message: fmt.Sprintf("malformed result for %s: %v", method, err)}
		}
	}
	return nil
}

// ResolveName resolves an ENS name to a lowercase address. It returns
// an empty string when the name does not resolve.
func (c *Client) ResolveName(ctx context.Context, name string) (string, error) {
	var result string
	if err := c.rpc(ctx, "alchemy_getAddressFromENS", []any{name}, &result); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("ENS resolution failed")
		return "", err
	}
	if strings.HasPrefix(result, "0x") {
		return strings.ToLower(result), nil
	}
	return "", nil
}

// TokenMetadata fetches ERC-20 metadata for a contract. Failures are
// logged and reported as a nil result so callers can degrade to
// defaults instead of failing a wallet.
func (c *Client) TokenMetadata(ctx context.Context, contractAddress string) (*TokenMetadata, error) {
	var meta TokenMetadata
	if err := c.rpc(ctx, "alchemy_getTokenMetadata", []any{contractAddress}, &meta); err != nil {
		log.Warn().Err(err).Str("contract", contractAddress).Msg("token metadata fetch failed")
		return nil, nil
	}
	return &meta, nil
}

// TransactionReceipt fetches a transaction receipt, or nil when the
// receipt is unknown or the call fails.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt Receipt
	if err := c.rpc(ctx, "eth_getTransactionReceipt", []any{txHash}, &receipt); err != nil {
		log.Warn().Err(err).Str("tx", txHash).Msg("receipt fetch failed")
		return nil, nil
	}
	if receipt.GasUsed == "" && receipt.EffectiveGasPrice == "" && receipt.GasPrice == "" {
		return nil, nil
	}
	return &receipt, nil
}

// BlockByNumber fetches a block header by number.
func (c *Client) BlockByNumber(ctx context.Context, number int64) (*Block, error) {
	var block Block
	if err := c.rpc(ctx, "eth_getBlockByNumber", []any{fmt.Sprintf("0x%x", number), false}, &block); err != nil {
		log.Warn().Err(err).Int64("block", number).Msg("block fetch failed")
		return nil, nil
	}
	if block.Number == "" {
		return nil, nil
	}
	return &block, nil
}

// BlockByTimestamp fetches the closest block at or before a timestamp.
func (c *Client) BlockByTimestamp(ctx context.Context, ts time.Time) (*Block, error) {
	params := map[string]any{
		"closest":   "before",
		"timestamp": fmt.Sprintf("0x%x", ts.Unix()),
	}
	var block Block
	if err := c.rpc(ctx, "alchemy_getBlockByTimestamp", []any{params}, &block); err != nil {
		log.Warn().Err(err).Time("timestamp", ts).Msg("block-by-timestamp fetch failed")
		return nil, nil
	}
	if block.Number == "" {
		return nil, nil
	}
	return &block, nil
}
