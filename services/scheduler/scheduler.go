// Package scheduler runs one monitoring pass over the watchlist: it drives
// the page-automation provider per item under a concurrency ceiling, gates
// each extracted price against history, and aggregates the results.
package scheduler

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"mkessler/pricewatch/internal/browser"
	"mkessler/pricewatch/internal/watch"
	"mkessler/pricewatch/logger"
	"mkessler/pricewatch/pkg/errors"
	"mkessler/pricewatch/services/notify"
	"mkessler/pricewatch/services/publisher"
)

// HistoryStore is the slice of the history store the scheduler needs.
type HistoryStore interface {
	Previous(name string) (float64, bool)
	Record(name string, price float64, ts time.Time)
}

// Options bound the per-item steps of a pass.
type Options struct {
	// Concurrency is the maximum number of in-flight item checks.
	Concurrency int
	// NavTimeout bounds page navigation.
	NavTimeout time.Duration
	// SelectorTimeout bounds the wait for the price element. It is shorter
	// than NavTimeout and produces a distinct failure reason.
	SelectorTimeout time.Duration
	// SettleDelay is a flat wait after the element appears, for prices that
	// populate asynchronously.
	SettleDelay time.Duration
	// ScreenshotDir receives a PNG of the page whenever a check fails after
	// the page opened. Empty disables capture.
	ScreenshotDir string
}

// Scheduler executes one check per watchlist item with bounded concurrency
// and per-item failure isolation.
type Scheduler struct {
	provider   browser.Provider
	extractor  watch.Extractor
	history    HistoryStore
	dispatcher *notify.Dispatcher
	publisher  publisher.Publisher // nil disables observation publishing
	opts       Options
	now        func() time.Time
}

// New creates a scheduler. pub may be nil.
func New(provider browser.Provider, extractor watch.Extractor, history HistoryStore,
	dispatcher *notify.Dispatcher, pub publisher.Publisher, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Scheduler{
		provider:   provider,
		extractor:  extractor,
		history:    history,
		dispatcher: dispatcher,
		publisher:  pub,
		opts:       opts,
		now:        time.Now,
	}
}

// Run executes one pass over items and returns one CheckResult per checked
// item, in completion order.
//
// The pool keeps up to Concurrency checks in flight at all times: workers
// pull the next queued item as soon as any in-flight check settles, rather
// than processing fixed-size batches behind a barrier. A slow page therefore
// delays only its own slot, never the rest of the queue.
func (s *Scheduler) Run(ctx context.Context, items []watch.Item) []watch.CheckResult {
	log := logger.ForScheduler()

	queue := make([]watch.Item, 0, len(items))
	for _, item := range items {
		if !item.HasSelector() {
			log.Warn().Str("item", item.Name).Msg("no selector, excluded from this pass")
			continue
		}
		queue = append(queue, item)
	}
	if len(queue) == 0 {
		return nil
	}

	workers := s.opts.Concurrency
	if workers > len(queue) {
		workers = len(queue)
	}

	itemCh := make(chan watch.Item)
	resultCh := make(chan watch.CheckResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				resultCh <- s.checkItem(ctx, item)
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for _, item := range queue {
			select {
			case itemCh <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]watch.CheckResult, 0, len(queue))
	for res := range resultCh {
		results = append(results, res)
	}

	if s.publisher != nil {
		if err := s.publisher.Trim(); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("stream trim failed")
		}
	}

	return results
}

// checkItem walks one item through navigate, selector wait, settle, text
// extraction, price parsing, and gating. Any failure is terminal for the
// item only; the page is released on every exit path. Errors are classified
// by the pipeline stage they interrupted; the underlying cause rides in the
// wrapped error.
func (s *Scheduler) checkItem(ctx context.Context, item watch.Item) watch.CheckResult {
	log := logger.ForItem(item.Name)
	log.Info().Str("url", item.URL).Msg("checking")

	page, err := s.provider.OpenPage(ctx, item.URL, s.opts.NavTimeout)
	if err != nil {
		return s.fail(item, errors.NewNavigationTimeout(item.Name, item.URL, err))
	}
	defer page.Close()

	if err := page.WaitSelector(ctx, item.PriceSelector, s.opts.SelectorTimeout); err != nil {
		s.capture(ctx, page, item)
		return s.fail(item, errors.NewSelectorTimeout(item.Name, item.PriceSelector, err))
	}

	if s.opts.SettleDelay > 0 {
		select {
		case <-time.After(s.opts.SettleDelay):
		case <-ctx.Done():
			return s.fail(item, errors.NewNavigationTimeout(item.Name, item.URL, ctx.Err()))
		}
	}

	text, err := page.Text(ctx, item.PriceSelector)
	if err != nil {
		s.capture(ctx, page, item)
		return s.fail(item, errors.NewSelectorTimeout(item.Name, item.PriceSelector, err))
	}

	price, err := s.extractor.Extract(item.Name, text)
	if err != nil {
		s.capture(ctx, page, item)
		return s.fail(item, err)
	}

	notified := s.gate(ctx, item, price)

	if s.publisher != nil {
		obs := publisher.Observation{Name: item.Name, Price: price, Notified: notified, CheckedAt: s.now()}
		if err := s.publisher.Publish(obs); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("item", item.Name).Msg("observation publish failed")
		}
	}

	return watch.CheckResult{Item: item.Name, Price: price, Notified: notified}
}

// gate records the observation and dispatches notifications when the drop
// crosses the threshold. Every successful observation is recorded, whatever
// the movement; the notification decision compares against the immediately
// preceding recorded price, so a price sitting flat below the threshold
// alerts once, on the crossing.
func (s *Scheduler) gate(ctx context.Context, item watch.Item, price float64) bool {
	log := logger.ForItem(item.Name)

	var previous *float64
	if prev, ok := s.history.Previous(item.Name); ok {
		previous = &prev
	}

	decision := watch.Decide(price, previous, item.MaxPrice)
	s.history.Record(item.Name, price, s.now())

	log.Info().
		Float64("price", price).
		Str("movement", string(decision.Movement)).
		Bool("notify", decision.Notify).
		Msg("price observed")

	if decision.Notify && s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, item.Name, watch.AlertTitle(item.Name), watch.AlertMessage(item.Name, price, previous))
	}
	return decision.Notify
}

func (s *Scheduler) fail(item watch.Item, err error) watch.CheckResult {
	logger.ForItem(item.Name).Error().Err(err).Msg("check failed")
	return watch.CheckResult{Item: item.Name, Err: err}
}

// capture saves a screenshot of the failed page for diagnosis. Best-effort:
// providers without a renderer and capture failures are logged, never
// affecting the check result.
func (s *Scheduler) capture(ctx context.Context, page browser.Page, item watch.Item) {
	if s.opts.ScreenshotDir == "" {
		return
	}

	log := logger.ForItem(item.Name)
	if err := os.MkdirAll(s.opts.ScreenshotDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("screenshot directory unavailable")
		return
	}

	path := filepath.Join(s.opts.ScreenshotDir, safeFileName(item.Name)+".png")
	if err := page.Screenshot(ctx, path); err != nil {
		if stderrors.Is(err, browser.ErrScreenshotUnsupported) {
			log.Debug().Msg("provider cannot capture screenshots")
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("failure screenshot not captured")
		return
	}
	log.Info().Str("path", path).Msg("failure screenshot saved")
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

func safeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}
