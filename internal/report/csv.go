// Package report writes the pipeline's CSV outputs.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sawpanic/walletfeatures/internal/wallet"
)

// FeatureHeader is the fixed column order of the feature report.
var FeatureHeader = []string{
	"Wallet",
	"Total Tx Count (1M)",
	"Total Tx Count (3M)",
	"Total Tx Count (6M)",
	"Total Tx Count (12M)",
	"Monthly Tx Count Avg (12M)",
	"Total Tx Volume (1M)",
	"Total Tx Volume (3M)",
	"Total Tx Volume (6M)",
	"Total Tx Volume (12M)",
	"Monthly Tx Volume Avg (12M)",
	"Last Transaction Date",
	"Time Between Last 2 Transactions (hours)",
	"Token Categories (Last 250 Tx)",
	"Tx Types (Last 250 Tx)",
	"Total Gas Fee (USD)",
	"error",
}

// TransactionHeader is the per-event column order of the detail
// export, after the leading Wallet column.
var TransactionHeader = []string{
	"Wallet",
	"Timestamp",
	"Transaction Hash",
	"Direction",
	"Category",
	"Asset",
	"Value",
	"Raw Value",
	"From Address",
	"To Address",
	"Unique ID",
}

// WriteFeaturesCSV writes one row per wallet in the given order,
// creating parent directories as needed.
func WriteFeaturesCSV(path string, wallets []string, records map[string]*wallet.FeatureRecord) error {
	w, closeFile, err := openCSV(path)
	if err != nil {
		return err
	}
	defer closeFile()

	if err := w.Write(FeatureHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, addr := range wallets {
		record := records[addr]
		if record == nil {
			record = wallet.NewErrorRecord(addr, "no result")
		}
		if err := w.Write(featureRow(record)); err != nil {
			return fmt.Errorf("write row for %s: %w", addr, err)
		}
	}
	w.Flush()
	return w.Error()
}

func featureRow(r *wallet.FeatureRecord) []string {
	return []string{
		r.Wallet,
		strconv.Itoa(r.Counts["1M"]),
		strconv.Itoa(r.Counts["3M"]),
		strconv.Itoa(r.Counts["6M"]),
		strconv.Itoa(r.Counts["12M"]),
		formatFloat(r.MonthlyCountAvg, 4),
		formatFloat(r.Volumes["1M"], 2),
		formatFloat(r.Volumes["3M"], 2),
		formatFloat(r.Volumes["6M"], 2),
		formatFloat(r.Volumes["12M"], 2),
		formatFloat(r.MonthlyVolumeAvg, 4),
		r.LastTxDate,
		r.GapHours,
		r.TokenCategories,
		r.TxTypes,
		formatFloat(r.GasFeeUSD, 2),
		r.Error,
	}
}

// WriteTransactionsCSV writes the combined per-event detail export,
// one section per wallet in the given order.
func WriteTransactionsCSV(path string, wallets []string, calc *wallet.Calculator) error {
	w, closeFile, err := openCSV(path)
	if err != nil {
		return err
	}
	defer closeFile()

	if err := w.Write(TransactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, addr := range wallets {
		for _, ev := range calc.WalletTransactions(addr) {
			if err := w.Write(transactionRow(addr, ev)); err != nil {
				return fmt.Errorf("write row for %s: %w", addr, err)
			}
		}
	}
	w.Flush()
	return w.Error()
}

func transactionRow(addr string, ev wallet.TransferEvent) []string {
	value := ""
	if ev.Value != nil {
		value = strconv.FormatFloat(*ev.Value, 'f', -1, 64)
	}
	return []string{
		addr,
		ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		ev.TxHash,
		string(ev.Direction),
		ev.Category,
		ev.Asset,
		value,
		ev.RawValue,
		ev.From,
		ev.To,
		ev.UniqueID,
	}
}

func openCSV(path string) (*csv.Writer, func(), error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return csv.NewWriter(f), func() { f.Close() }, nil
}

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
