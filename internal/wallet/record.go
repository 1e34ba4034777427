package wallet

// FeatureRecord is the per-wallet output of the pipeline. Counts and
// volumes are keyed by window label. Error is empty on success; on
// failure it carries the description and the metric fields stay at
// their zero-filled defaults.
type FeatureRecord struct {
	Wallet string

	Counts  map[string]int
	Volumes map[string]float64

	MonthlyCountAvg  float64
	MonthlyVolumeAvg float64

	LastTxDate      string
	GapHours        string
	TokenCategories string
	TxTypes         string

	GasFeeUSD float64

	Error string
}

// NewEmptyRecord returns a zero-filled record for the wallet, with
// every window present.
func NewEmptyRecord(wallet string) *FeatureRecord {
	r := &FeatureRecord{
		Wallet:  wallet,
		Counts:  make(map[string]int, len(Windows)),
		Volumes: make(map[string]float64, len(Windows)),
	}
	for _, w := range Windows {
		r.Counts[w.Label] = 0
		r.Volumes[w.Label] = 0
	}
	return r
}

// NewErrorRecord returns a zero-filled record carrying a failure
// description.
func NewErrorRecord(wallet, message string) *FeatureRecord {
	r := NewEmptyRecord(wallet)
	r.Error = message
	return r
}
