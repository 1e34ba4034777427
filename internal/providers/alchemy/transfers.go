package alchemy

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// QueryDirection selects which side of a transfer the queried address
// is on.
type QueryDirection string

const (
	Outgoing QueryDirection = "from"
	Incoming QueryDirection = "to"
)

// transferCategories is every category the provider indexes.
var transferCategories = []string{
	"external", "internal", "erc20", "erc721", "erc1155", "specialnft",
}

const transfersPageSize = "0x64" // 100 per page

type assetTransfersResult struct {
	Transfers []Transfer `json:"transfers"`
	PageKey   string     `json:"pageKey"`
}

// Pager walks alchemy_getAssetTransfers pages lazily. The provider's
// cursor format stays inside this type.
type Pager struct {
	client    *Client
	address   string
	direction QueryDirection
	pageKey   string
	done      bool
}

// TransferPages returns a pager over the address's transfers in the
// given direction, newest first.
func (c *Client) TransferPages(address string, direction QueryDirection) *Pager {
	return &Pager{client: c, address: address, direction: direction}
}

// Next fetches one page. more is false once the provider reports no
// further cursor.
func (p *Pager) Next(ctx context.Context) (page []Transfer, more bool, err error) {
	if p.done {
		return nil, false, nil
	}

	params := map[string]any{
		"fromBlock":    "0x0",
		"category":     transferCategories,
		"withMetadata": true,
		"maxCount":     transfersPageSize,
		"order":        "desc",
	}
	if p.direction == Outgoing {
		params["fromAddress"] = p.address
	} else {
		params["toAddress"] = p.address
	}
	if p.pageKey != "" {
		params["pageKey"] = p.pageKey
	}

	var result assetTransfersResult
	if err := p.client.rpc(ctx, "alchemy_getAssetTransfers", []any{params}, &result); err != nil {
		return nil, false, err
	}

	for i := range result.Transfers {
		result.Transfers[i].ParsedTime = parseBlockTimestamp(result.Transfers[i].Metadata.BlockTimestamp)
	}

	p.pageKey = result.PageKey
	if p.pageKey == "" {
		p.done = true
	}
	return result.Transfers, !p.done, nil
}

func parseBlockTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// TransfersPaginated fetches transfers for one direction until limit
// is reached, the page's oldest entry precedes stop, or pages run out.
// limit <= 0 means unlimited; a zero stop disables the cutoff.
func (c *Client) TransfersPaginated(ctx context.Context, address string, direction QueryDirection, limit int, stop time.Time) ([]Transfer, error) {
	pager := c.TransferPages(address, direction)
	var all []Transfer
	for {
		page, more, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
		if !stop.IsZero() && len(page) > 0 {
			oldest := page[len(page)-1].ParsedTime
			if !oldest.IsZero() && oldest.Before(stop) {
				break
			}
		}
		if !more {
			break
		}
	}
	return all, nil
}

// GatherTransfers fetches outgoing and incoming transfers concurrently,
// merges them newest-first, deduplicates by (hash, uniqueId), and
// applies the limit and stop cutoffs to the merged set.
func (c *Client) GatherTransfers(ctx context.Context, address string, limit int, stop time.Time) ([]Transfer, error) {
	var outgoing, incoming []Transfer

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		outgoing, err = c.TransfersPaginated(gctx, address, Outgoing, limit, stop)
		return err
	})
	g.Go(func() error {
		var err error
		incoming, err = c.TransfersPaginated(gctx, address, Incoming, limit, stop)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]Transfer, 0, len(outgoing)+len(incoming))
	merged = append(merged, outgoing...)
	merged = append(merged, incoming...)

	// Stable sort keeps provider order for equal timestamps; zero
	// (unknown) timestamps sort last.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ParsedTime.After(merged[j].ParsedTime)
	})

	seen := make(map[string]struct{}, len(merged))
	deduped := merged[:0]
	for _, t := range merged {
		key := t.Hash + "::" + t.UniqueID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, t)
	}

	if limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}
	if !stop.IsZero() {
		kept := deduped[:0]
		for _, t := range deduped {
			if !t.ParsedTime.IsZero() && !t.ParsedTime.Before(stop) {
				kept = append(kept, t)
			}
		}
		deduped = kept
	}
	return deduped, nil
}
