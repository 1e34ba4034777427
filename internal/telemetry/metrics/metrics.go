package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus metrics for a batch run.
type Registry struct {
	ProviderRequests *prometheus.CounterVec
	ProviderRetries  *prometheus.CounterVec
	ProviderGiveUps  *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	WalletsProcessed *prometheus.CounterVec
	WalletDuration   prometheus.Histogram
}

var (
	defaultRegistry *Registry
	initOnce        sync.Once
)

// Initialize registers the default metrics registry. Safe to call more
// than once.
func Initialize() *Registry {
	initOnce.Do(func() {
		defaultRegistry = newRegistry()
		defaultRegistry.register()
	})
	return defaultRegistry
}

func newRegistry() *Registry {
	return &Registry{
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletfeatures_provider_requests_total",
				Help: "Total outbound HTTP requests by provider and result",
			},
			[]string{"provider", "result"},
		),
		ProviderRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletfeatures_provider_retries_total",
				Help: "Total retry attempts by provider",
			},
			[]string{"provider"},
		),
		ProviderGiveUps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletfeatures_provider_giveups_total",
				Help: "Requests abandoned after exhausting retries, by provider",
			},
			[]string{"provider"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletfeatures_request_duration_seconds",
				Help:    "Outbound request duration in seconds by provider",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"provider"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletfeatures_cache_hits_total",
				Help: "Total cache hits by cache type",
			},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletfeatures_cache_misses_total",
				Help: "Total cache misses by cache type",
			},
			[]string{"cache_type"},
		),
		WalletsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletfeatures_wallets_processed_total",
				Help: "Wallets processed by status (ok|error|panic)",
			},
			[]string{"status"},
		),
		WalletDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walletfeatures_wallet_duration_seconds",
				Help:    "Per-wallet feature computation duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
	}
}

func (r *Registry) register() {
	prometheus.MustRegister(
		r.ProviderRequests,
		r.ProviderRetries,
		r.ProviderGiveUps,
		r.RequestDuration,
		r.CacheHits,
		r.CacheMisses,
		r.WalletsProcessed,
		r.WalletDuration,
	)
}

// Handler exposes the process metrics for the monitor endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(provider string, ok bool, duration time.Duration) {
	if defaultRegistry == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	defaultRegistry.ProviderRequests.WithLabelValues(provider, result).Inc()
	defaultRegistry.RequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordRetry(provider string) {
	if defaultRegistry == nil {
		return
	}
	defaultRegistry.ProviderRetries.WithLabelValues(provider).Inc()
}

func RecordExhausted(provider string) {
	if defaultRegistry == nil {
		return
	}
	defaultRegistry.ProviderGiveUps.WithLabelValues(provider).Inc()
}

func RecordCache(cacheType string, hit bool) {
	if defaultRegistry == nil {
		return
	}
	if hit {
		defaultRegistry.CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		defaultRegistry.CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

func RecordWallet(status string, duration time.Duration) {
	if defaultRegistry == nil {
		return
	}
	defaultRegistry.WalletsProcessed.WithLabelValues(status).Inc()
	defaultRegistry.WalletDuration.Observe(duration.Seconds())
}
