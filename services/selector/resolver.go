// Package selector bootstraps watchlist entries that have no price selector
// yet, by driving the interactive in-page pick and persisting the results.
package selector

import (
	"context"
	"time"

	"mkessler/pricewatch/internal/browser"
	"mkessler/pricewatch/internal/watch"
	"mkessler/pricewatch/logger"
	"mkessler/pricewatch/pkg/errors"
)

// WatchlistStore is the slice of the watchlist store the resolver needs.
type WatchlistStore interface {
	PersistSelectors(items []watch.Item) error
}

// Resolver fills selector gaps in the watchlist. Picks run one page at a
// time since each needs the user's pointer.
type Resolver struct {
	provider    browser.Provider
	store       WatchlistStore
	navTimeout  time.Duration
	pickTimeout time.Duration
}

// NewResolver creates a resolver.
func NewResolver(provider browser.Provider, store WatchlistStore, navTimeout, pickTimeout time.Duration) *Resolver {
	return &Resolver{
		provider:    provider,
		store:       store,
		navTimeout:  navTimeout,
		pickTimeout: pickTimeout,
	}
}

// Resolve runs one pick per selector-less item and returns the items with
// discovered selectors filled in. Per-item failures are logged and skipped:
// the item keeps an empty selector and is excluded from this run's checks.
// All discovered selectors are persisted in a single batched write at the
// end of the pass, so an interruption mid-pass leaves already-discovered
// selectors intact for the next run.
func (r *Resolver) Resolve(ctx context.Context, items []watch.Item) ([]watch.Item, error) {
	log := logger.ForResolver()

	out := make([]watch.Item, len(items))
	copy(out, items)

	discovered := 0
	for i := range out {
		if out[i].HasSelector() {
			continue
		}

		log.Warn().Str("item", out[i].Name).Msg("no selector configured, opening page for selection")

		sel, err := r.pick(ctx, out[i])
		if err != nil {
			log.Error().Err(err).Str("item", out[i].Name).Msg("selector pick failed, skipping item this run")
			continue
		}

		out[i].PriceSelector = sel
		discovered++
		log.Info().Str("item", out[i].Name).Str("selector", sel).Msg("selector saved")
	}

	if discovered == 0 {
		return out, nil
	}

	if err := r.store.PersistSelectors(out); err != nil {
		return out, err
	}
	log.Info().Int("count", discovered).Msg("watchlist updated with new selectors")
	return out, nil
}

// pick opens the item's page and waits for the user to click the price
// element. The page is closed on every exit path.
func (r *Resolver) pick(ctx context.Context, item watch.Item) (string, error) {
	page, err := r.provider.OpenPage(ctx, item.URL, r.navTimeout)
	if err != nil {
		return "", errors.NewPicker(item.Name, "opening page", err)
	}
	defer page.Close()

	sel, err := page.PickElement(ctx, r.pickTimeout)
	if err != nil {
		return "", errors.NewPicker(item.Name, "picking element", err)
	}
	return sel, nil
}
