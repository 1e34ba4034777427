package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "walletfeatures"
	version = "v1.2.0"
)

var rootCmd = &cobra.Command{
	Use:     "walletfeatures",
	Short:   "Ethereum wallet behavioral feature extraction",
	Version: version,
	Long: `walletfeatures derives behavioral features for Ethereum wallets from
on-chain transfer history: windowed transaction counts and USD volumes,
transaction-type classification, token categories, and gas spend.

Transfers are fetched from Alchemy, amounts are valued in USD at the time
of each transfer via CoinMarketCap with CoinGecko fallback, and results
are written as CSV reports.`,
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
