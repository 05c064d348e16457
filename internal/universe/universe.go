// Package universe manages the set of symbols the pool monitors: loading
// candidate tickers, checking tradability against the broker, and persisting
// the results.
package universe

import (
	"encoding/json"
	"os"
	"sort"

	"momentum-trader/internal/errors"
)

// LoadTickers reads a JSON array of ticker symbols, deduplicating while
// preserving first-seen order. A missing file yields an empty list.
func LoadTickers(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading tickers file")
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing tickers file")
	}

	return Dedupe(raw), nil
}

// Dedupe removes duplicates while preserving first-seen order. Empty entries
// are dropped.
func Dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// SaveTradable writes the tradable symbol set to a JSON file, sorted for
// stable diffs.
func SaveTradable(path string, symbols []string) error {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding tradable list")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "writing tradable file")
	}
	return nil
}

// LoadTradable reads a previously saved tradable list. A missing file yields
// an empty list.
func LoadTradable(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading tradable file")
	}
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, errors.Wrap(err, "parsing tradable file")
	}
	return symbols, nil
}
