package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/walletfeatures/internal/cache"
	"github.com/sawpanic/walletfeatures/internal/telemetry/metrics"
)

// Service answers USD price lookups through an ordered provider chain
// with per-provider circuit breakers and an hour-bucketed cache.
//
// Permanent failure for an asset yields (nil, nil) so callers can
// zero-value the event instead of aborting the batch.
type Service struct {
	providers []chainedProvider
	cache     cache.Cache
	ttl       time.Duration
	enabled   bool

	disabledOnce sync.Once
}

type chainedProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

type ServiceConfig struct {
	Providers []Provider
	Cache     cache.Cache
	CacheTTL  time.Duration
	Enabled   bool
}

func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	store := cfg.Cache
	if store == nil {
		store = cache.NewTTLCache(100000)
	}

	chained := make([]chainedProvider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		chained = append(chained, chainedProvider{
			provider: p,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    "pricing-" + p.Name(),
				Timeout: 60 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 5
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.Warn().
						Str("breaker", name).
						Str("from", from.String()).
						Str("to", to.String()).
						Msg("price provider breaker state change")
				},
			}),
		})
	}

	return &Service{
		providers: chained,
		cache:     store,
		ttl:       ttl,
		enabled:   cfg.Enabled && len(chained) > 0,
	}
}

// Price returns the USD unit price for a contract at ts. An empty
// contract address means the network's native asset. Safe for
// concurrent use.
func (s *Service) Price(ctx context.Context, contractAddress, network string, ts time.Time) (*TokenPrice, error) {
	if !s.enabled {
		s.disabledOnce.Do(func() {
			log.Warn().Msg("price service disabled; amounts will not be valued")
		})
		return nil, nil
	}

	key := cacheKey(contractAddress, ts)
	if cached, ok := s.cachedPrice(ctx, key); ok {
		metrics.RecordCache("price", true)
		return cached, nil
	}
	metrics.RecordCache("price", false)

	price := s.lookup(ctx, contractAddress, network, ts)
	if price == nil {
		return nil, nil
	}

	if encoded, err := json.Marshal(price); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("price cache write failed")
		}
	}
	return price, nil
}

// lookup walks the provider chain: for token contracts each provider
// tries the contract price first and falls back to the native asset,
// matching how unpriceable tokens degrade to a zero contribution
// upstream only when every provider is out.
func (s *Service) lookup(ctx context.Context, contractAddress, network string, ts time.Time) *TokenPrice {
	for _, cp := range s.providers {
		result, err := cp.breaker.Execute(func() (interface{}, error) {
			if contractAddress != "" {
				price, err := cp.provider.ContractPrice(ctx, contractAddress, network, ts)
				if err != nil {
					return nil, err
				}
				if price != nil {
					return price, nil
				}
				log.Debug().
					Str("provider", cp.provider.Name()).
					Str("contract", contractAddress).
					Msg("no contract price, falling back to native asset")
			}
			return cp.provider.NativePrice(ctx, network, ts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				log.Debug().Str("provider", cp.provider.Name()).Msg("price provider circuit open, skipping")
			} else {
				log.Warn().Err(err).Str("provider", cp.provider.Name()).Msg("price lookup failed")
			}
			continue
		}
		if price, ok := result.(*TokenPrice); ok && price != nil {
			return price
		}
	}
	return nil
}

func (s *Service) cachedPrice(ctx context.Context, key string) (*TokenPrice, bool) {
	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("price cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	var price TokenPrice
	if err := json.Unmarshal(data, &price); err != nil {
		return nil, false
	}
	return &price, true
}

// cacheKey buckets by UTC hour: prices within the same hour are
// interchangeable for this tool's purposes.
func cacheKey(contractAddress string, ts time.Time) string {
	assetID := "eth"
	if contractAddress != "" {
		assetID = strings.ToLower(contractAddress)
	}
	return assetID + ":" + ts.UTC().Format("2006-01-02-15")
}
