// Package store holds the durable state of the tracker: the watchlist
// configuration and the observed price history. Each store is the sole
// writer of its file and persists through atomic temp-then-rename writes.
package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"mkessler/pricewatch/internal/watch"
	"mkessler/pricewatch/pkg/errors"
)

// Watchlist loads and persists the tracked item configuration. Only
// selector values are ever written back; everything else belongs to the
// user's editor.
type Watchlist struct {
	path  string
	items []watch.Item
}

// NewWatchlist creates a watchlist store for the given file.
func NewWatchlist(path string) *Watchlist {
	return &Watchlist{path: path}
}

// Load reads and validates the watchlist file. Validation failures name the
// offending item and field.
func (w *Watchlist) Load() ([]watch.Item, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, errors.NewConfig(fmt.Sprintf("reading watchlist %s", w.path), err)
	}

	var items []watch.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.NewConfig(fmt.Sprintf("parsing watchlist %s", w.path), err)
	}

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.Name == "" {
			return nil, errors.NewConfig(fmt.Sprintf("watchlist item %d: name is empty", i), nil)
		}
		if _, dup := seen[item.Name]; dup {
			return nil, errors.NewConfig(fmt.Sprintf("watchlist item %d (%q): duplicate name", i, item.Name), nil)
		}
		seen[item.Name] = struct{}{}
		if item.URL == "" {
			return nil, errors.NewConfig(fmt.Sprintf("watchlist item %d (%q): url is empty", i, item.Name), nil)
		}
		if math.IsNaN(item.MaxPrice) || math.IsInf(item.MaxPrice, 0) || item.MaxPrice < 0 {
			return nil, errors.NewConfig(fmt.Sprintf("watchlist item %d (%q): maxPrice must be a finite non-negative number", i, item.Name), nil)
		}
	}

	w.items = items
	return items, nil
}

// PersistSelectors writes discovered selectors back to the watchlist file.
// The update is restricted to selector values: names, URLs, thresholds and
// the original item ordering come from the loaded configuration.
func (w *Watchlist) PersistSelectors(resolved []watch.Item) error {
	selectors := make(map[string]string, len(resolved))
	for _, item := range resolved {
		if item.HasSelector() {
			selectors[item.Name] = item.PriceSelector
		}
	}

	out := make([]watch.Item, len(w.items))
	copy(out, w.items)
	for i := range out {
		if sel, ok := selectors[out[i].Name]; ok {
			out[i].PriceSelector = sel
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.NewStorage("encoding watchlist", err)
	}
	if err := writeFileAtomic(w.path, data); err != nil {
		return errors.NewStorage(fmt.Sprintf("writing watchlist %s", w.path), err)
	}

	w.items = out
	return nil
}
