package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sawpanic/walletfeatures/internal/pricing"
	"github.com/sawpanic/walletfeatures/internal/providers/alchemy"
	"github.com/sawpanic/walletfeatures/internal/wallet"
)

type stubChain struct {
	transfers []alchemy.Transfer
}

func (s *stubChain) GatherTransfers(ctx context.Context, address string, limit int, stop time.Time) ([]alchemy.Transfer, error) {
	return s.transfers, nil
}

func (s *stubChain) TokenMetadata(ctx context.Context, contractAddress string) (*alchemy.TokenMetadata, error) {
	return nil, nil
}

func (s *stubChain) TransactionReceipt(ctx context.Context, txHash string) (*alchemy.Receipt, error) {
	return nil, nil
}

type stubPrices struct{}

func (stubPrices) Price(ctx context.Context, contractAddress, network string, ts time.Time) (*pricing.TokenPrice, error) {
	return &pricing.TokenPrice{USD: 100, Timestamp: ts}, nil
}

func TestWriteTransactionsCSV(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	chain := &stubChain{transfers: []alchemy.Transfer{{
		Hash:       "0xABC",
		UniqueID:   "0xabc:log:0",
		Category:   "external",
		Asset:      "ETH",
		From:       testAddr,
		To:         "0x2222222222222222222222222222222222222222",
		Value:      1.5,
		ParsedTime: ts,
	}}}

	calc := wallet.NewCalculator(chain, stubPrices{}, wallet.WithGasFees(false))
	if _, err := calc.ComputeWalletFeatures(context.Background(), testAddr); err != nil {
		t.Fatalf("ComputeWalletFeatures: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "transactions.csv")
	if err := WriteTransactionsCSV(path, []string{testAddr}, calc); err != nil {
		t.Fatalf("WriteTransactionsCSV: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	for i, want := range TransactionHeader {
		if rows[0][i] != want {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], want)
		}
	}

	row := rows[1]
	if row[0] != testAddr {
		t.Errorf("wallet column = %q", row[0])
	}
	if row[1] != "2024-05-01T12:00:00Z" {
		t.Errorf("timestamp = %q", row[1])
	}
	if row[2] != "0xabc" {
		t.Errorf("hash = %q, want lowercase", row[2])
	}
	if row[3] != "out" {
		t.Errorf("direction = %q", row[3])
	}
	if row[6] != "1.5" {
		t.Errorf("value = %q", row[6])
	}
}
