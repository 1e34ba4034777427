package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/walletfeatures/internal/telemetry/metrics"
)

// ComputeMany runs the calculator over every wallet with at most
// concurrency wallets in flight. Every input wallet appears in the
// result exactly once: failures and panics become error records rather
// than dropping the wallet or aborting the batch.
func ComputeMany(ctx context.Context, wallets []string, calc *Calculator, concurrency int) map[string]*FeatureRecord {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make(map[string]*FeatureRecord, len(wallets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, wallet := range wallets {
		wallet := wallet
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			record := computeOne(ctx, wallet, calc)

			mu.Lock()
			results[wallet] = record
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}

func computeOne(ctx context.Context, wallet string, calc *Calculator) (record *FeatureRecord) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("wallet", wallet).Interface("panic", r).Msg("wallet computation panicked")
			record = NewErrorRecord(wallet, fmt.Sprintf("panic: %v", r))
			metrics.RecordWallet("panic", time.Since(started))
		}
	}()

	record, err := calc.ComputeWalletFeatures(ctx, wallet)
	if err != nil {
		log.Warn().Err(err).Str("wallet", wallet).Msg("wallet computation failed")
		metrics.RecordWallet("error", time.Since(started))
		return NewErrorRecord(wallet, err.Error())
	}

	log.Debug().Str("wallet", wallet).Dur("elapsed", time.Since(started)).Msg("wallet computed")
	metrics.RecordWallet("ok", time.Since(started))
	return record
}
