package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/sawpanic/walletfeatures/internal/wallet"
)

const testAddr = "0x1111111111111111111111111111111111111111"

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWriteFeaturesCSV(t *testing.T) {
	record := wallet.NewEmptyRecord(testAddr)
	record.Counts["1M"] = 2
	record.Counts["12M"] = 9
	record.Volumes["1M"] = 1234.5
	record.Volumes["12M"] = 9999.999
	record.MonthlyCountAvg = 0.75
	record.MonthlyVolumeAvg = 833.3333
	record.LastTxDate = "2024-05-31T12:00:00Z"
	record.GapHours = "6.00"
	record.TokenCategories = "ERC20,EXTERNAL"
	record.TxTypes = "SWAP,TRANSFER"
	record.GasFeeUSD = 2.1

	path := filepath.Join(t.TempDir(), "out", "features.csv")
	err := WriteFeaturesCSV(path, []string{testAddr}, map[string]*wallet.FeatureRecord{testAddr: record})
	if err != nil {
		t.Fatalf("WriteFeaturesCSV: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}

	header := rows[0]
	if len(header) != len(FeatureHeader) {
		t.Fatalf("header len = %d, want %d", len(header), len(FeatureHeader))
	}
	for i, want := range FeatureHeader {
		if header[i] != want {
			t.Errorf("header[%d] = %q, want %q", i, header[i], want)
		}
	}

	row := rows[1]
	checks := map[int]string{
		0:  testAddr,
		1:  "2",         // count 1M
		4:  "9",         // count 12M
		5:  "0.7500",    // monthly count avg, 4 decimals
		6:  "1234.50",   // volume 1M, 2 decimals
		9:  "10000.00",  // volume 12M rounds
		10: "833.3333",  // monthly volume avg
		11: "2024-05-31T12:00:00Z",
		12: "6.00",
		13: "ERC20,EXTERNAL",
		14: "SWAP,TRANSFER",
		15: "2.10",
		16: "",
	}
	for i, want := range checks {
		if row[i] != want {
			t.Errorf("row[%d] = %q, want %q", i, row[i], want)
		}
	}
}

func TestWriteFeaturesCSV_MissingRecordGetsErrorRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.csv")
	err := WriteFeaturesCSV(path, []string{testAddr}, map[string]*wallet.FeatureRecord{})
	if err != nil {
		t.Fatalf("WriteFeaturesCSV: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[1][len(FeatureHeader)-1] == "" {
		t.Error("missing record should produce an error row")
	}
}

func TestWriteFeaturesCSV_ErrorRecord(t *testing.T) {
	record := wallet.NewErrorRecord(testAddr, "provider down")
	path := filepath.Join(t.TempDir(), "features.csv")
	err := WriteFeaturesCSV(path, []string{testAddr}, map[string]*wallet.FeatureRecord{testAddr: record})
	if err != nil {
		t.Fatalf("WriteFeaturesCSV: %v", err)
	}

	rows := readCSV(t, path)
	row := rows[1]
	if row[16] != "provider down" {
		t.Errorf("error column = %q", row[16])
	}
	if row[1] != "0" {
		t.Errorf("failed wallet counts should be zero, got %q", row[1])
	}
}
