package wallet

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/walletfeatures/internal/providers/alchemy"
)

// Direction is an event's movement relative to the queried wallet.
type Direction string

const (
	DirectionIn      Direction = "in"
	DirectionOut     Direction = "out"
	DirectionUnknown Direction = "unknown"
)

// TransferEvent is the canonical form of one asset movement within a
// transaction. Events are immutable once normalized. Exactly one of
// RawValue and Value is authoritative: RawValue needs a decimals
// lookup, Value is already decoded.
type TransferEvent struct {
	TxHash      string
	UniqueID    string
	Timestamp   time.Time
	Category    string
	Asset       string
	RawValue    string
	Value       *float64
	RawContract alchemy.RawContract
	From        string
	To          string
	Direction   Direction
	Raw         alchemy.Transfer
}

// ContractAddress returns the lowercase token contract for the event,
// falling back to the original record, or "" for native transfers.
func (e *TransferEvent) ContractAddress() string {
	if e.RawContract.Address != "" {
		return strings.ToLower(e.RawContract.Address)
	}
	if e.Raw.RawContract.Address != "" {
		return strings.ToLower(e.Raw.RawContract.Address)
	}
	return ""
}

// epochZero is the sentinel for unknown timestamps; it sorts last in
// the newest-first ordering used everywhere.
var epochZero = time.Unix(0, 0).UTC()

// NormalizeTransfer converts a raw provider record into a canonical
// event relative to the queried wallet. It never fails: malformed
// fields degrade to defaults.
func NormalizeTransfer(wallet string, t alchemy.Transfer) TransferEvent {
	wallet = strings.ToLower(wallet)

	txHash := strings.ToLower(t.Hash)
	uniqueID := t.UniqueID
	if uniqueID == "" {
		uniqueID = txHash
	}

	ts := t.ParsedTime
	if ts.IsZero() {
		ts = epochZero
	} else {
		ts = ts.UTC()
	}

	category := strings.ToLower(t.Category)
	if category == "" {
		category = "unknown"
	}

	var value *float64
	switch v := t.Value.(type) {
	case float64:
		value = &v
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			value = &parsed
		}
	}

	from := strings.ToLower(t.From)
	to := strings.ToLower(t.To)

	direction := DirectionUnknown
	switch {
	case from != "" && from == wallet:
		direction = DirectionOut
	case to != "" && to == wallet:
		direction = DirectionIn
	}

	return TransferEvent{
		TxHash:      txHash,
		UniqueID:    uniqueID,
		Timestamp:   ts,
		Category:    category,
		Asset:       t.Asset,
		RawValue:    t.RawContract.Value,
		Value:       value,
		RawContract: t.RawContract,
		From:        from,
		To:          to,
		Direction:   direction,
		Raw:         t,
	}
}

// sortEventsDesc orders events newest first in place, stable so that
// provider order breaks ties.
func sortEventsDesc(events []TransferEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}
