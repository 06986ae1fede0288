package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"mkessler/pricewatch/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// RodProvider drives a local Chrome through Rod. Headless mode is used for
// unattended price checks; selector picking needs a visible window, so the
// resolver asks for headless=false.
type RodProvider struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
}

var _ Provider = (*RodProvider)(nil)

// NewRodProvider launches Chrome and connects to it.
func NewRodProvider(headless bool) (*RodProvider, error) {
	l := launcher.New().
		Headless(headless).
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	logger.ForBrowser().Info().Bool("headless", headless).Msg("chrome launched")
	return &RodProvider{browser: b, lnch: l}, nil
}

// OpenPage creates a stealth tab and navigates it to url within timeout.
func (p *RodProvider) OpenPage(ctx context.Context, url string, timeout time.Duration) (Page, error) {
	page, err := stealth.Page(p.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}

	return &rodPage{page: page}, nil
}

// Close shuts down Chrome.
func (p *RodProvider) Close() error {
	var err error
	if p.browser != nil {
		err = p.browser.Close()
		p.browser = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
	return err
}

type rodPage struct {
	page   *rod.Page
	closed bool
}

var _ Page = (*rodPage)(nil)

func (t *rodPage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := t.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: wait for %q: %w", selector, err)
	}
	return nil
}

func (t *rodPage) Text(ctx context.Context, selector string) (string, error) {
	el, err := t.page.Context(ctx).Element(selector)
	if err != nil {
		return "", fmt.Errorf("browser: find %q: %w", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("browser: read text of %q: %w", selector, err)
	}
	return text, nil
}

func (t *rodPage) Screenshot(ctx context.Context, path string) error {
	bin, err := t.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("browser: capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, bin, 0o644); err != nil {
		return fmt.Errorf("browser: write screenshot %s: %w", path, err)
	}
	return nil
}

func (t *rodPage) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.page.Close()
}
