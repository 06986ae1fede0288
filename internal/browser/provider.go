// Package browser provides the page-automation providers used to render
// tracked pages and read price text out of them. Two implementations exist:
// a real Chrome driven through Rod, and a plain HTTP fetcher for pages that
// do not need JavaScript. The orchestrator only depends on the interfaces.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrPickUnsupported is returned by providers that cannot host an
// interactive element pick (anything without a real browser).
var ErrPickUnsupported = errors.New("browser: interactive pick not supported by this provider")

// ErrPickCancelled is returned when the pick page is closed or the
// interaction deadline passes before the user clicks an element.
var ErrPickCancelled = errors.New("browser: pick cancelled")

// ErrScreenshotUnsupported is returned by providers that cannot capture a
// page image.
var ErrScreenshotUnsupported = errors.New("browser: screenshot not supported by this provider")

// Provider opens pages. Close releases the underlying automation resources
// (browser process, HTTP clients) and must be called once per run.
type Provider interface {
	// OpenPage navigates to url and returns a handle to the rendered page.
	// The navigation is bounded by timeout.
	OpenPage(ctx context.Context, url string, timeout time.Duration) (Page, error)
	Close() error
}

// Page is a handle to one opened page. Close must be called on every exit
// path; it is safe to call more than once.
type Page interface {
	// WaitSelector blocks until the selector resolves to an element or the
	// timeout passes.
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Text returns the rendered text content of the selector's element.
	Text(ctx context.Context, selector string) (string, error)
	// PickElement runs the interactive overlay pick and resolves to the
	// CSS path of the clicked element.
	PickElement(ctx context.Context, timeout time.Duration) (string, error)
	// Screenshot captures the page as a PNG at path, for failure diagnosis.
	Screenshot(ctx context.Context, path string) error
	Close() error
}
