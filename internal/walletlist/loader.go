// Package walletlist loads and validates the wallet addresses a run
// operates on, from files or inline lists, resolving ENS names along
// the way.
package walletlist

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsAddress reports whether s is a well-formed hex address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(strings.TrimSpace(s))
}

// Normalize lowercases and trims an address.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolver turns a human-readable name into an address. An empty
// result with nil error means the name does not resolve.
type Resolver interface {
	ResolveName(ctx context.Context, name string) (string, error)
}

// Load gathers candidate wallet identifiers from an optional file and
// an optional comma-separated inline list, deduplicated and sorted.
// CSV files contribute their first column, anything else is read line
// by line. Entries are not validated here; Resolve does that.
func Load(path, inline string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		entry := strings.TrimSpace(raw)
		if entry == "" || strings.HasPrefix(entry, "#") {
			return
		}
		key := strings.ToLower(entry)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, entry)
	}

	if path != "" {
		entries, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			add(e)
		}
	}
	for _, e := range strings.Split(inline, ",") {
		add(e)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out, nil
}

func loadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet list %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader := csv.NewReader(strings.NewReader(string(data)))
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse wallet CSV %s: %w", path, err)
		}
		var out []string
		for i, row := range rows {
			if len(row) == 0 {
				continue
			}
			cell := strings.TrimSpace(row[0])
			// Tolerate a header row.
			if i == 0 && cell != "" && !IsAddress(cell) && !strings.Contains(cell, ".") {
				continue
			}
			out = append(out, cell)
		}
		return out, nil
	}

	return strings.Split(string(data), "\n"), nil
}

// Resolve validates entries and resolves ENS-style names through the
// resolver. Invalid or unresolvable entries are logged and skipped;
// the run proceeds with what remains.
func Resolve(ctx context.Context, entries []string, resolver Resolver) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range entries {
		switch {
		case IsAddress(entry):
			addr := Normalize(entry)
			if _, ok := seen[addr]; !ok {
				seen[addr] = struct{}{}
				out = append(out, addr)
			}
		case strings.Contains(entry, ".") && resolver != nil:
			addr, err := resolver.ResolveName(ctx, entry)
			if err != nil {
				log.Warn().Err(err).Str("name", entry).Msg("name resolution failed, skipping")
				continue
			}
			if addr == "" || !IsAddress(addr) {
				log.Warn().Str("name", entry).Msg("name did not resolve to an address, skipping")
				continue
			}
			addr = Normalize(addr)
			if _, ok := seen[addr]; !ok {
				seen[addr] = struct{}{}
				out = append(out, addr)
			}
		default:
			log.Warn().Str("entry", entry).Msg("not a valid wallet address, skipping")
		}
	}
	return out
}
