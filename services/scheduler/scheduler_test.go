package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mkessler/pricewatch/internal/browser"
	"mkessler/pricewatch/internal/watch"
	pkgerrors "mkessler/pricewatch/pkg/errors"
	"mkessler/pricewatch/services/notify"
	"mkessler/pricewatch/services/publisher"
	"mkessler/pricewatch/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPage simulates one opened page. checkDelay is spent inside
// WaitSelector to model a slow page.
type mockPage struct {
	provider   *mockProvider
	name       string
	text       string
	waitErr    error
	shotErr    error
	checkDelay time.Duration

	mu     sync.Mutex
	closed bool
}

var _ browser.Page = (*mockPage)(nil)

func (p *mockPage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if p.checkDelay > 0 {
		time.Sleep(p.checkDelay)
	}
	return p.waitErr
}

func (p *mockPage) Text(ctx context.Context, selector string) (string, error) {
	return p.text, nil
}

func (p *mockPage) PickElement(ctx context.Context, timeout time.Duration) (string, error) {
	return "", browser.ErrPickUnsupported
}

func (p *mockPage) Screenshot(ctx context.Context, path string) error {
	if p.shotErr != nil {
		return p.shotErr
	}
	p.provider.mu.Lock()
	p.provider.shots[p.name] = path
	p.provider.mu.Unlock()
	return nil
}

func (p *mockPage) Close() error {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if !alreadyClosed {
		p.provider.pageClosed(p.name)
	}
	return nil
}

func (p *mockPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// mockProvider hands out configured pages keyed by URL and tracks how many
// are in flight between OpenPage and Close.
type mockProvider struct {
	mu          sync.Mutex
	pages       map[string]*mockPage
	openErr     map[string]error
	inFlight    int
	maxInFlight int
	startedAt   map[string]time.Time
	closedAt    map[string]time.Time
	shots       map[string]string
}

var _ browser.Provider = (*mockProvider)(nil)

func newMockProvider() *mockProvider {
	return &mockProvider{
		pages:     make(map[string]*mockPage),
		openErr:   make(map[string]error),
		startedAt: make(map[string]time.Time),
		closedAt:  make(map[string]time.Time),
		shots:     make(map[string]string),
	}
}

func (m *mockProvider) addPage(name, text string, opts ...func(*mockPage)) {
	p := &mockPage{provider: m, name: name, text: text}
	for _, opt := range opts {
		opt(p)
	}
	m.pages[urlFor(name)] = p
}

func (m *mockProvider) OpenPage(ctx context.Context, url string, timeout time.Duration) (browser.Page, error) {
	m.mu.Lock()
	if err := m.openErr[url]; err != nil {
		m.mu.Unlock()
		return nil, err
	}
	page, ok := m.pages[url]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("no page configured for %s", url)
	}
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.startedAt[page.name] = time.Now()
	m.mu.Unlock()
	return page, nil
}

func (m *mockProvider) pageClosed(name string) {
	m.mu.Lock()
	m.inFlight--
	m.closedAt[name] = time.Now()
	m.mu.Unlock()
}

func (m *mockProvider) Close() error { return nil }

func urlFor(name string) string { return "https://shop.example/" + name }

func item(name string) watch.Item {
	return watch.Item{Name: name, URL: urlFor(name), PriceSelector: "#price", MaxPrice: 20.00}
}

// countingNotifier records every delivered alert.
type countingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

var _ notify.Notifier = (*countingNotifier)(nil)

func (n *countingNotifier) Send(ctx context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, title)
	return nil
}

func (n *countingNotifier) Channel() string { return "counting" }

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// recordingPublisher captures published observations.
type recordingPublisher struct {
	mu      sync.Mutex
	obs     []publisher.Observation
	trimmed int
}

var _ publisher.Publisher = (*recordingPublisher)(nil)

func (r *recordingPublisher) Publish(obs publisher.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, obs)
	return nil
}

func (r *recordingPublisher) Trim() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trimmed++
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func newTestHistory(t *testing.T) *store.History {
	t.Helper()
	h := store.NewHistory(filepath.Join(t.TempDir(), "history.json"), "")
	require.NoError(t, h.Load())
	return h
}

func newScheduler(provider browser.Provider, history HistoryStore, dispatcher *notify.Dispatcher, pub publisher.Publisher, concurrency int) *Scheduler {
	return New(provider, watch.Extractor{}, history, dispatcher, pub, Options{
		Concurrency:     concurrency,
		NavTimeout:      time.Second,
		SelectorTimeout: time.Second,
		SettleDelay:     0,
	})
}

// One failing item must not abort or void the other items' results.
func TestRunIsolatesFailures(t *testing.T) {
	provider := newMockProvider()
	items := make([]watch.Item, 0, 5)
	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("item%d", i)
		items = append(items, item(name))
		if i == 3 {
			provider.addPage(name, "$10.00", func(p *mockPage) {
				p.waitErr = errors.New("element never appeared")
			})
			continue
		}
		provider.addPage(name, "$10.00")
	}

	results := newScheduler(provider, newTestHistory(t), nil, nil, 3).Run(context.Background(), items)
	require.Len(t, results, 5)

	failed := map[string]error{}
	succeeded := map[string]float64{}
	for _, res := range results {
		if res.Failed() {
			failed[res.Item] = res.Err
			continue
		}
		succeeded[res.Item] = res.Price
	}

	require.Len(t, succeeded, 4)
	require.Len(t, failed, 1)
	assert.Contains(t, failed, "item3")
	assert.Equal(t, pkgerrors.ErrorTypeSelectorTimeout, pkgerrors.TypeOf(failed["item3"]))

	// Pages are released on every exit path, including the failed one.
	for _, page := range provider.pages {
		assert.True(t, page.isClosed())
	}
}

// With K=2 and items of distinct durations, no more than 2 checks are ever
// in flight, and the 3rd item starts as soon as the faster of the first two
// finishes rather than waiting for both.
func TestRunBoundedWorkerPool(t *testing.T) {
	provider := newMockProvider()
	slow := 250 * time.Millisecond
	fast := 30 * time.Millisecond

	durations := []time.Duration{slow, fast, fast, fast, fast}
	items := make([]watch.Item, 0, 5)
	for i, d := range durations {
		name := fmt.Sprintf("item%d", i+1)
		items = append(items, item(name))
		delay := d
		provider.addPage(name, "$10.00", func(p *mockPage) { p.checkDelay = delay })
	}

	results := newScheduler(provider, newTestHistory(t), nil, nil, 2).Run(context.Background(), items)
	require.Len(t, results, 5)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()

	assert.LessOrEqual(t, provider.maxInFlight, 2, "concurrency ceiling exceeded")

	// item3 must start once item2 (fast) completes, well before item1 (slow)
	// ends. A batch barrier would hold it until item1 finished.
	item1End := provider.closedAt["item1"]
	item3Start := provider.startedAt["item3"]
	assert.True(t, item3Start.Before(item1End),
		"item3 started at %v, item1 ended at %v: slot was not reused", item3Start, item1End)
}

// End-to-end: first observation is record-only; a later drop below both the
// threshold and the previous price notifies.
func TestRunFirstObservationThenDrop(t *testing.T) {
	history := newTestHistory(t)
	notifier := &countingNotifier{}
	dispatcher := notify.NewDispatcher(notifier)
	items := []watch.Item{item("Widget")}

	// Pass 1: $19.99, never seen before.
	provider := newMockProvider()
	provider.addPage("Widget", "$19.99")
	results := newScheduler(provider, history, dispatcher, nil, 2).Run(context.Background(), items)
	require.Len(t, results, 1)
	assert.Equal(t, 19.99, results[0].Price)
	assert.False(t, results[0].Notified)
	assert.Equal(t, 0, notifier.count())

	// Pass 2: drops to $15.00, under the $20 threshold.
	provider = newMockProvider()
	provider.addPage("Widget", "$15.00")
	results = newScheduler(provider, history, dispatcher, nil, 2).Run(context.Background(), items)
	require.Len(t, results, 1)
	assert.Equal(t, 15.00, results[0].Price)
	assert.True(t, results[0].Notified)
	assert.Equal(t, 1, notifier.count())

	// Pass 3: flat at $15.00. No re-alert.
	provider = newMockProvider()
	provider.addPage("Widget", "$15.00")
	results = newScheduler(provider, history, dispatcher, nil, 2).Run(context.Background(), items)
	require.Len(t, results, 1)
	assert.False(t, results[0].Notified)
	assert.Equal(t, 1, notifier.count())
}

// Transport failures are logged and swallowed; the observation still counts
// as a success and is recorded.
func TestRunTransportFailureDoesNotFailCheck(t *testing.T) {
	history := newTestHistory(t)
	history.Record("Widget", 19.99, time.Now())

	notifier := &countingNotifier{err: errors.New("smtp down")}
	dispatcher := notify.NewDispatcher(notifier)

	provider := newMockProvider()
	provider.addPage("Widget", "$15.00")

	results := newScheduler(provider, history, dispatcher, nil, 1).Run(context.Background(), []watch.Item{item("Widget")})
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Notified)

	prev, ok := history.Previous("Widget")
	require.True(t, ok)
	assert.Equal(t, 15.00, prev)
}

func TestRunSkipsItemsWithoutSelector(t *testing.T) {
	provider := newMockProvider()
	provider.addPage("Widget", "$10.00")

	bare := watch.Item{Name: "NoSelector", URL: urlFor("NoSelector"), MaxPrice: 5}
	results := newScheduler(provider, newTestHistory(t), nil, nil, 2).
		Run(context.Background(), []watch.Item{item("Widget"), bare})

	require.Len(t, results, 1)
	assert.Equal(t, "Widget", results[0].Item)
}

func TestRunReportsDistinctFailureReasons(t *testing.T) {
	provider := newMockProvider()
	provider.openErr[urlFor("NavFail")] = errors.New("connection refused")
	provider.addPage("SelFail", "$10.00", func(p *mockPage) { p.waitErr = errors.New("timeout") })
	provider.addPage("ParseFail", "out of stock")

	results := newScheduler(provider, newTestHistory(t), nil, nil, 3).Run(context.Background(),
		[]watch.Item{item("NavFail"), item("SelFail"), item("ParseFail")})
	require.Len(t, results, 3)

	reasons := map[string]pkgerrors.ErrorType{}
	for _, res := range results {
		require.True(t, res.Failed())
		reasons[res.Item] = pkgerrors.TypeOf(res.Err)
	}

	assert.Equal(t, pkgerrors.ErrorTypeNavigationTimeout, reasons["NavFail"])
	assert.Equal(t, pkgerrors.ErrorTypeSelectorTimeout, reasons["SelFail"])
	assert.Equal(t, pkgerrors.ErrorTypeParse, reasons["ParseFail"])
}

// A failure after the page opened saves a screenshot named after the item,
// with unsafe characters replaced. Successful checks save nothing.
func TestRunCapturesFailureScreenshot(t *testing.T) {
	provider := newMockProvider()
	provider.addPage("Gaming Mouse", "$10.00", func(p *mockPage) {
		p.waitErr = errors.New("element never appeared")
	})
	provider.addPage("Widget", "$10.00")

	dir := t.TempDir()
	sched := New(provider, watch.Extractor{}, newTestHistory(t), nil, nil, Options{
		Concurrency:     2,
		NavTimeout:      time.Second,
		SelectorTimeout: time.Second,
		ScreenshotDir:   dir,
	})
	results := sched.Run(context.Background(), []watch.Item{item("Gaming Mouse"), item("Widget")})
	require.Len(t, results, 2)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.Len(t, provider.shots, 1)
	assert.Equal(t, filepath.Join(dir, "Gaming_Mouse.png"), provider.shots["Gaming Mouse"])
}

// Providers without a renderer cannot capture; the check result is
// unchanged.
func TestRunScreenshotUnsupportedIsSwallowed(t *testing.T) {
	provider := newMockProvider()
	provider.addPage("Widget", "out of stock", func(p *mockPage) {
		p.shotErr = browser.ErrScreenshotUnsupported
	})

	sched := New(provider, watch.Extractor{}, newTestHistory(t), nil, nil, Options{
		Concurrency:     1,
		NavTimeout:      time.Second,
		SelectorTimeout: time.Second,
		ScreenshotDir:   t.TempDir(),
	})
	results := sched.Run(context.Background(), []watch.Item{item("Widget")})
	require.Len(t, results, 1)
	assert.Equal(t, pkgerrors.ErrorTypeParse, pkgerrors.TypeOf(results[0].Err))
}

// A watchlist where no item carries a selector produces an empty pass, which
// reports success: nothing was checked, so nothing failed.
func TestRunAllItemsSkippedReportsCleanPass(t *testing.T) {
	bare := []watch.Item{
		{Name: "One", URL: urlFor("One"), MaxPrice: 5},
		{Name: "Two", URL: urlFor("Two"), MaxPrice: 5},
	}

	results := newScheduler(newMockProvider(), newTestHistory(t), nil, nil, 2).
		Run(context.Background(), bare)
	assert.Empty(t, results)
	assert.Equal(t, 0, watch.NewReport(results).ExitCode())
}

func TestRunPublishesObservations(t *testing.T) {
	provider := newMockProvider()
	provider.addPage("Widget", "$12.00")

	pub := &recordingPublisher{}
	results := newScheduler(provider, newTestHistory(t), nil, pub, 1).
		Run(context.Background(), []watch.Item{item("Widget")})
	require.Len(t, results, 1)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.obs, 1)
	assert.Equal(t, "Widget", pub.obs[0].Name)
	assert.Equal(t, 12.00, pub.obs[0].Price)
	assert.Equal(t, 1, pub.trimmed)
}
