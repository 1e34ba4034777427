package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/walletfeatures/internal/cache"
	"github.com/sawpanic/walletfeatures/internal/config"
	monitor "github.com/sawpanic/walletfeatures/internal/interfaces/http"
	"github.com/sawpanic/walletfeatures/internal/pricing"
	"github.com/sawpanic/walletfeatures/internal/providers/alchemy"
	"github.com/sawpanic/walletfeatures/internal/report"
	"github.com/sawpanic/walletfeatures/internal/telemetry/metrics"
	"github.com/sawpanic/walletfeatures/internal/wallet"
	"github.com/sawpanic/walletfeatures/internal/walletlist"
)

var (
	flagInput       string
	flagWallets     string
	flagOutput      string
	flagTxOutput    string
	flagConfig      string
	flagNetwork     string
	flagConcurrency int
	flagTimeout     int
	flagAlchemyKey  string
	flagMetricsAddr string
	flagNoGasFees   bool
	flagVerbose     bool
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute behavioral features for a set of wallets",
	Long: `Computes windowed transaction counts, USD volumes, monthly averages,
transaction types, token categories, and gas spend for each wallet, and
writes a feature CSV plus a per-transaction detail CSV.`,
	RunE: runFeatures,
}

func init() {
	registerFeatureFlags(featuresCmd.Flags())
	rootCmd.AddCommand(featuresCmd)
}

func registerFeatureFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&flagInput, "input", "i", "", "wallet list file (.csv first column or one address per line)")
	flags.StringVarP(&flagWallets, "wallets", "w", "", "comma-separated wallet addresses or ENS names")
	flags.StringVarP(&flagOutput, "output", "o", "wallet_features.csv", "feature report path")
	flags.StringVar(&flagTxOutput, "transactions-output", "out/wallet_transactions.csv", "per-transaction detail report path")
	flags.StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	flags.StringVar(&flagNetwork, "network", "", "Alchemy network (default eth-mainnet)")
	flags.IntVar(&flagConcurrency, "concurrency", 0, "wallets processed in parallel")
	flags.IntVar(&flagTimeout, "timeout", 0, "per-request timeout in seconds")
	flags.StringVar(&flagAlchemyKey, "alchemy-key", "", "Alchemy API key (overrides env/config)")
	flags.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve /health and /metrics on this address")
	flags.BoolVar(&flagNoGasFees, "no-gas-fees", false, "skip gas fee computation")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// tagRunID stamps the global logger so every log line of the run,
// including provider and batch logs, carries the run id.
func tagRunID(runID string) {
	log.Logger = log.With().Str("run_id", runID).Logger()
}

func runFeatures(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagNetwork != "" {
		cfg.Network = flagNetwork
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagTimeout > 0 {
		cfg.TimeoutSeconds = flagTimeout
	}
	if flagAlchemyKey != "" {
		cfg.Alchemy.APIKey = flagAlchemyKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	runID := uuid.New().String()[:8]
	tagRunID(runID)
	logger := log.Logger

	client := alchemy.NewClient(alchemy.Config{
		APIKey:         cfg.Alchemy.APIKey,
		Network:        cfg.Network,
		RequestTimeout: cfg.RequestTimeout(),
		MaxConcurrency: cfg.Alchemy.MaxConcurrency,
		MaxRetries:     cfg.Alchemy.MaxRetries,
		RPS:            cfg.Alchemy.RPS,
	})

	entries, err := walletlist.Load(flagInput, flagWallets)
	if err != nil {
		return err
	}
	wallets := walletlist.Resolve(ctx, entries, client)
	if len(wallets) == 0 {
		return fmt.Errorf("no valid wallet addresses: provide --input or --wallets")
	}

	metrics.Initialize()
	if flagMetricsAddr != "" {
		srv := monitor.NewServer(monitor.DefaultServerConfig(flagMetricsAddr, version))
		go func() {
			if err := srv.Start(); err != nil {
				logger.Warn().Err(err).Msg("monitor server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	prices := buildPriceService(cfg, logger)

	calc := wallet.NewCalculator(client, prices,
		wallet.WithNetwork(cfg.Network),
		wallet.WithGasFees(!flagNoGasFees),
	)

	logger.Info().
		Int("wallets", len(wallets)).
		Int("concurrency", cfg.Concurrency).
		Str("network", cfg.Network).
		Msg("starting feature extraction")
	started := time.Now()

	records := wallet.ComputeMany(ctx, wallets, calc, cfg.Concurrency)

	if err := report.WriteFeaturesCSV(flagOutput, wallets, records); err != nil {
		return err
	}
	if err := report.WriteTransactionsCSV(flagTxOutput, wallets, calc); err != nil {
		return err
	}

	failed := 0
	for _, r := range records {
		if r.Error != "" {
			failed++
		}
	}
	logger.Info().
		Int("wallets", len(wallets)).
		Int("failed", failed).
		Dur("elapsed", time.Since(started)).
		Str("features", flagOutput).
		Str("transactions", flagTxOutput).
		Msg("feature extraction complete")
	return nil
}

func buildPriceService(cfg *config.Config, logger zerolog.Logger) *pricing.Service {
	var providers []pricing.Provider
	for _, name := range cfg.Pricing.Providers {
		switch name {
		case "coinmarketcap":
			providers = append(providers, pricing.NewCoinMarketCap(pricing.CoinMarketCapConfig{
				APIKey:         cfg.Pricing.CoinMarketCapKey,
				RequestTimeout: cfg.RequestTimeout(),
				MaxRetries:     cfg.Alchemy.MaxRetries,
			}))
		case "coingecko":
			providers = append(providers, pricing.NewCoinGecko(pricing.CoinGeckoConfig{
				RequestTimeout: cfg.RequestTimeout(),
				MaxRetries:     cfg.Alchemy.MaxRetries,
			}))
		default:
			logger.Warn().Str("provider", name).Msg("unknown price provider, skipping")
		}
	}

	var store cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "walletfeatures:price:")
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory price cache")
		} else {
			store = redisCache
		}
	}
	if store == nil {
		store = cache.NewTTLCache(100000)
	}

	return pricing.NewService(pricing.ServiceConfig{
		Providers: providers,
		Cache:     store,
		CacheTTL:  cfg.PriceCacheTTL(),
		Enabled:   cfg.Pricing.Enabled,
	})
}
