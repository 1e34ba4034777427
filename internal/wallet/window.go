package wallet

import "time"

// TimeWindow is a fixed lookback period for count/volume aggregation.
type TimeWindow struct {
	Label string
	Days  int
}

// Cutoff returns the window's lower bound relative to a reference time.
func (w TimeWindow) Cutoff(reference time.Time) time.Time {
	return reference.AddDate(0, 0, -w.Days)
}

// Windows are the reporting windows, shortest first. Monthly averages
// always divide the 12M window by monthsPerYear regardless of wallet
// age.
var Windows = []TimeWindow{
	{Label: "1M", Days: 30},
	{Label: "3M", Days: 90},
	{Label: "6M", Days: 180},
	{Label: "12M", Days: 365},
}

const monthsPerYear = 12
