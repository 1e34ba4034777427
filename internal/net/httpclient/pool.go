package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/walletfeatures/internal/net/ratelimit"
	"github.com/sawpanic/walletfeatures/internal/telemetry/metrics"
)

type Config struct {
	// Provider labels metrics and log lines for this pool.
	Provider       string
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	JitterMax      time.Duration
	UserAgent      string
	// Limiter is optional per-host politeness on top of the semaphore.
	Limiter *ratelimit.Limiter
}

// Pool is an HTTP client with a bounded-concurrency semaphore and
// retry with exponential backoff plus jitter for transient failures
// (transport errors, timeouts, 429 and 5xx responses). Other 4xx
// responses are returned to the caller unretried.
type Pool struct {
	config    Config
	semaphore chan struct{}
	client    *http.Client
}

// Request carries everything needed to (re)build the outbound request,
// so the body can be replayed on each retry attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func NewPool(config Config) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 500 * time.Millisecond
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = 30 * time.Second
	}
	if config.JitterMax <= 0 {
		config.JitterMax = 200 * time.Millisecond
	}
	return &Pool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

func (p *Pool) Do(ctx context.Context, req Request) (*http.Response, error) {
	// Apply concurrency limit
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordRetry(p.config.Provider)

			backoff := p.calculateBackoff(attempt)
			log.Debug().
				Str("provider", p.config.Provider).
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL).
				Msg("Retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := p.buildRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		if p.config.Limiter != nil {
			if err := p.config.Limiter.Wait(ctx, httpReq.URL.Host); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := p.client.Do(httpReq)
		metrics.ObserveRequest(p.config.Provider, err == nil, time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transport errors and client timeouts are transient.
			lastErr = err
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < p.config.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			continue
		}

		return resp, nil
	}

	metrics.RecordExhausted(p.config.Provider)
	return nil, fmt.Errorf("%s: retries exhausted: %w", p.config.Provider, lastErr)
}

func (p *Pool) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if p.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", p.config.UserAgent)
	}
	return httpReq, nil
}

func (p *Pool) calculateBackoff(attempt int) time.Duration {
	backoff := p.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if backoff > p.config.BackoffMax {
		backoff = p.config.BackoffMax
	}
	return backoff + time.Duration(rand.Int63n(int64(p.config.JitterMax)))
}

func isRetryableStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}
