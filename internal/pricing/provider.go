package pricing

import (
	"context"
	"time"
)

// TokenPrice is a USD unit price anchored to the provider's sample
// time, which may differ from the requested timestamp.
type TokenPrice struct {
	USD       float64   `json:"usd"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider resolves historical USD prices. A (nil, nil) return means
// the provider has no price for that asset (permanent, not retryable);
// an error means the lookup itself failed and the next provider in the
// chain should be tried.
type Provider interface {
	Name() string
	ContractPrice(ctx context.Context, contractAddress, network string, ts time.Time) (*TokenPrice, error)
	NativePrice(ctx context.Context, network string, ts time.Time) (*TokenPrice, error)
}

// closestQuote picks the candidate whose sample time is nearest the
// requested timestamp.
func closestQuote(candidates []TokenPrice, ts time.Time) *TokenPrice {
	var best *TokenPrice
	var bestDiff time.Duration
	for i := range candidates {
		diff := candidates[i].Timestamp.Sub(ts)
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = &candidates[i]
			bestDiff = diff
		}
	}
	return best
}
