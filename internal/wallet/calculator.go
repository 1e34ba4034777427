package wallet

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/walletfeatures/internal/cache"
	"github.com/sawpanic/walletfeatures/internal/pricing"
	"github.com/sawpanic/walletfeatures/internal/providers/alchemy"
)

const (
	yearLookbackDays = 365
	recentLimit      = 250
	defaultDecimals  = 18
	weiPerEther      = 1e18
)

// DataClient is the chain-data surface the calculator consumes.
type DataClient interface {
	GatherTransfers(ctx context.Context, address string, limit int, stop time.Time) ([]alchemy.Transfer, error)
	TokenMetadata(ctx context.Context, contractAddress string) (*alchemy.TokenMetadata, error)
	TransactionReceipt(ctx context.Context, txHash string) (*alchemy.Receipt, error)
}

// PriceSource values an asset in USD at a timestamp. A nil price means
// the asset could not be valued and contributes zero.
type PriceSource interface {
	Price(ctx context.Context, contractAddress, network string, ts time.Time) (*pricing.TokenPrice, error)
}

// Calculator orchestrates fetch, normalization, valuation,
// classification, and aggregation for single wallets. Its caches are
// scoped to one batch run and shared across that run's wallets.
type Calculator struct {
	client         DataClient
	prices         PriceSource
	network        string
	includeGasFees bool
	now            func() time.Time

	metadata     *cache.Map[*alchemy.TokenMetadata]
	receipts     *cache.Map[*alchemy.Receipt]
	transactions *cache.Map[[]TransferEvent]
}

type Option func(*Calculator)

func WithNetwork(network string) Option {
	return func(c *Calculator) { c.network = network }
}

func WithGasFees(enabled bool) Option {
	return func(c *Calculator) { c.includeGasFees = enabled }
}

// WithClock overrides the reference-time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

func NewCalculator(client DataClient, prices PriceSource, opts ...Option) *Calculator {
	c := &Calculator{
		client:         client,
		prices:         prices,
		network:        "eth-mainnet",
		includeGasFees: true,
		now:            func() time.Time { return time.Now().UTC() },
		metadata:       cache.NewMap[*alchemy.TokenMetadata](),
		receipts:       cache.NewMap[*alchemy.Receipt](),
		transactions:   cache.NewMap[[]TransferEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComputeWalletFeatures produces the wallet's feature record. A wallet
// with no transfer history yields a zero-filled record, not an error.
func (c *Calculator) ComputeWalletFeatures(ctx context.Context, wallet string) (*FeatureRecord, error) {
	wallet = strings.ToLower(wallet)

	eventsYear, events250, err := c.fetchWalletData(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers for %s: %w", wallet, err)
	}

	c.transactions.Set(wallet, combineEvents(eventsYear, events250))

	if len(eventsYear) == 0 && len(events250) == 0 {
		return NewEmptyRecord(wallet), nil
	}

	sortEventsDesc(eventsYear)
	sortEventsDesc(events250)

	reference := c.now()
	record := NewEmptyRecord(wallet)

	byTx := make(map[string][]TransferEvent)
	for _, ev := range eventsYear {
		byTx[ev.TxHash] = append(byTx[ev.TxHash], ev)
	}

	// Per-event USD values are memoized by unique id so events shared
	// across overlapping windows are priced once.
	usdMemo := make(map[string]float64, len(eventsYear))
	eventUSD := func(ev TransferEvent) float64 {
		if usd, ok := usdMemo[ev.UniqueID]; ok {
			return usd
		}
		usd := c.eventUSDValue(ctx, ev)
		usdMemo[ev.UniqueID] = usd
		return usd
	}

	for _, window := range Windows {
		cutoff := window.Cutoff(reference)
		txHashes := make(map[string]struct{})
		volume := 0.0
		for _, ev := range eventsYear {
			if ev.Timestamp.Before(cutoff) {
				continue
			}
			txHashes[ev.TxHash] = struct{}{}
			volume += eventUSD(ev)
		}
		record.Counts[window.Label] = len(txHashes)
		record.Volumes[window.Label] = round2(volume)
	}

	record.MonthlyCountAvg = round4(float64(record.Counts["12M"]) / monthsPerYear)
	record.MonthlyVolumeAvg = round4(record.Volumes["12M"] / monthsPerYear)

	last, secondLast := lastTwoEvents(eventsYear, events250)
	if last != nil {
		record.LastTxDate = last.Timestamp.Format(time.RFC3339)
	}
	if last != nil && secondLast != nil {
		gap := last.Timestamp.Sub(secondLast.Timestamp).Hours()
		record.GapHours = strconv.FormatFloat(gap, 'f', 2, 64)
	}

	record.TokenCategories = strings.Join(tokenCategories(events250), ",")
	record.TxTypes = strings.Join(transactionTypes(wallet, byTx, events250), ",")

	if c.includeGasFees {
		record.GasFeeUSD = round2(c.totalGasFee(ctx, wallet, byTx, reference))
	}

	return record, nil
}

// WalletTransactions returns the combined deduplicated event list
// cached during the wallet's feature computation, for detail export.
func (c *Calculator) WalletTransactions(wallet string) []TransferEvent {
	events, ok := c.transactions.Get(strings.ToLower(wallet))
	if !ok {
		return nil
	}
	out := make([]TransferEvent, len(events))
	copy(out, events)
	return out
}

// fetchWalletData retrieves the 12-month set and the most-recent-250
// set concurrently and normalizes both.
func (c *Calculator) fetchWalletData(ctx context.Context, wallet string) (eventsYear, events250 []TransferEvent, err error) {
	cutoff := c.now().AddDate(0, 0, -yearLookbackDays)

	var rawYear, rawRecent []alchemy.Transfer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawYear, err = c.client.GatherTransfers(gctx, wallet, 0, cutoff)
		return err
	})
	g.Go(func() error {
		var err error
		rawRecent, err = c.client.GatherTransfers(gctx, wallet, recentLimit, time.Time{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	eventsYear = make([]TransferEvent, 0, len(rawYear))
	for _, t := range rawYear {
		eventsYear = append(eventsYear, NormalizeTransfer(wallet, t))
	}
	events250 = make([]TransferEvent, 0, len(rawRecent))
	for _, t := range rawRecent {
		events250 = append(events250, NormalizeTransfer(wallet, t))
	}
	return eventsYear, events250, nil
}

// combineEvents merges the two sets into one deduplicated list for
// export; it does not feed metric computation.
func combineEvents(eventsYear, eventsRecent []TransferEvent) []TransferEvent {
	seen := make(map[string]TransferEvent, len(eventsYear)+len(eventsRecent))
	order := make([]string, 0, len(eventsYear)+len(eventsRecent))
	for _, ev := range append(append([]TransferEvent(nil), eventsYear...), eventsRecent...) {
		key := ev.UniqueID
		if key == "" {
			key = ev.TxHash + ":" + ev.Timestamp.Format(time.RFC3339)
		}
		if _, ok := seen[key]; !ok {
			order = append(order, key)
		}
		seen[key] = ev
	}
	merged := make([]TransferEvent, 0, len(order))
	for _, key := range order {
		merged = append(merged, seen[key])
	}
	sortEventsDesc(merged)
	return merged
}

// eventUSDValue prices one event. Undecodable or unpriceable events
// contribute zero; they never fail the wallet.
func (c *Calculator) eventUSDValue(ctx context.Context, ev TransferEvent) float64 {
	var amount float64
	if ev.Value != nil {
		amount = *ev.Value
	} else if decoded := c.decodeValue(ctx, ev); decoded != nil {
		amount = *decoded
	}
	if amount == 0 {
		return 0
	}
	price, err := c.prices.Price(ctx, ev.ContractAddress(), c.network, ev.Timestamp)
	if err != nil || price == nil {
		return 0
	}
	return amount * price.USD
}

// decodeValue converts the event's hex base-unit amount to a decimal
// amount using the best available decimals: embedded contract info,
// then fetched token metadata, then the ERC-20 default of 18.
func (c *Calculator) decodeValue(ctx context.Context, ev TransferEvent) *float64 {
	if ev.RawValue == "" {
		return nil
	}
	raw, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(ev.RawValue), "0x"), 16)
	if !ok {
		return nil
	}

	decimals := defaultDecimals
	if d, ok := parseDecimals(ev.RawContract.Decimal); ok {
		decimals = d
	} else if contract := ev.ContractAddress(); contract != "" {
		if meta := c.tokenMetadata(ctx, contract); meta != nil && meta.Decimals != nil {
			decimals = *meta.Decimals
		}
	}

	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	amount, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), divisor).Float64()
	return &amount
}

// parseDecimals reads the provider's decimals field, which arrives as
// a hex ("0x12") or plain integer string.
func parseDecimals(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(value), "0x") {
		d, err := strconv.ParseInt(value[2:], 16, 32)
		if err != nil {
			return 0, false
		}
		return int(d), true
	}
	d, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (c *Calculator) tokenMetadata(ctx context.Context, contractAddress string) *alchemy.TokenMetadata {
	if meta, ok := c.metadata.Get(contractAddress); ok {
		return meta
	}
	meta, err := c.client.TokenMetadata(ctx, contractAddress)
	if err != nil || meta == nil {
		return nil
	}
	c.metadata.Set(contractAddress, meta)
	return meta
}

func (c *Calculator) transactionReceipt(ctx context.Context, txHash string) *alchemy.Receipt {
	if receipt, ok := c.receipts.Get(txHash); ok {
		return receipt
	}
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil || receipt == nil {
		return nil
	}
	c.receipts.Set(txHash, receipt)
	return receipt
}

// lastTwoEvents picks the newest and second-newest events, preferring
// the 12-month set and falling back to the recent set.
func lastTwoEvents(eventsYear, events250 []TransferEvent) (last, secondLast *TransferEvent) {
	if len(eventsYear) > 0 {
		last = &eventsYear[0]
	} else if len(events250) > 0 {
		last = &events250[0]
	}
	if len(eventsYear) > 1 {
		secondLast = &eventsYear[1]
	} else if len(events250) > 1 {
		secondLast = &events250[1]
	}
	return last, secondLast
}

func tokenCategories(events []TransferEvent) []string {
	set := make(map[string]struct{})
	for _, ev := range events {
		if ev.Category == "" {
			continue
		}
		set[strings.ToUpper(ev.Category)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// transactionTypes unions the classifier's results over the 12-month
// set and the recent set.
func transactionTypes(wallet string, byTx map[string][]TransferEvent, events250 []TransferEvent) []string {
	types := make(map[TxType]struct{})
	for _, group := range byTx {
		types[ClassifyTransaction(wallet, group)] = struct{}{}
	}
	for t := range classifyEvents(wallet, events250) {
		types[t] = struct{}{}
	}
	out := make([]string, 0, len(types))
	for t := range types {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// totalGasFee sums the USD cost of gas for transactions the wallet
// sent. Sender detection inspects the events' from addresses, which is
// a heuristic: a transaction carrying transfers unrelated to its true
// sender can be misattributed. Missing receipts or gas fields skip the
// transaction without failing the wallet.
func (c *Calculator) totalGasFee(ctx context.Context, wallet string, byTx map[string][]TransferEvent, reference time.Time) float64 {
	total := 0.0
	for txHash, events := range byTx {
		var sender string
		var ts time.Time
		for _, ev := range events {
			if ev.From != "" {
				sender = ev.From
			}
			if ev.Timestamp.After(ts) {
				ts = ev.Timestamp
			}
		}
		if sender != wallet || txHash == "" {
			continue
		}

		receipt := c.transactionReceipt(ctx, txHash)
		if receipt == nil {
			continue
		}
		gasPriceHex := receipt.EffectiveGasPrice
		if gasPriceHex == "" {
			gasPriceHex = receipt.GasPrice
		}
		gasUsed, ok1 := parseHexUint(receipt.GasUsed)
		gasPrice, ok2 := parseHexUint(gasPriceHex)
		if !ok1 || !ok2 {
			continue
		}

		ethSpent := float64(gasUsed) * float64(gasPrice) / weiPerEther
		if ts.IsZero() {
			ts = reference
		}
		price, err := c.prices.Price(ctx, "", c.network, ts)
		if err != nil || price == nil {
			log.Debug().Str("tx", txHash).Msg("no native price for gas fee, skipping")
			continue
		}
		total += ethSpent * price.USD
	}
	return total
}

func parseHexUint(value string) (uint64, bool) {
	value = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "0x")
	if value == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(value, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
