package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mkessler/pricewatch/logger"
	"mkessler/pricewatch/services/cache"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://duckduckgo.com/",
	}
)

// HTTPProvider reads pages with a plain HTTP GET and parses the static HTML.
// It works for server-rendered pages and costs no browser; pages that build
// their price nodes with JavaScript need the Rod provider instead.
// PickElement is unsupported.
//
// When a cooldown cache is configured, consecutive fetches against the same
// host are refused inside the cooldown window.
type HTTPProvider struct {
	client   *http.Client
	cooldown time.Duration
	cache    cache.CacheService
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates an HTTP page provider. cacheSvc may be nil to
// disable the per-host cooldown.
func NewHTTPProvider(cacheSvc cache.CacheService, cooldown time.Duration) *HTTPProvider {
	return &HTTPProvider{
		client:   &http.Client{Timeout: 30 * time.Second},
		cooldown: cooldown,
		cache:    cacheSvc,
	}
}

// OpenPage fetches the URL with browser-like headers, converts the body to
// UTF-8, and parses it into a document.
func (p *HTTPProvider) OpenPage(ctx context.Context, pageURL string, timeout time.Duration) (Page, error) {
	if err := p.checkCooldown(pageURL); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: create request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browser: fetch %s: unexpected status code %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("browser: read body: %w", err)
	}

	utf8Body, err := toUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, fmt.Errorf("browser: parse HTML of %s: %w", pageURL, err)
	}

	p.markFetched(pageURL)

	return &httpPage{doc: doc, url: pageURL}, nil
}

// Close is a no-op; the HTTP client holds no external resources.
func (p *HTTPProvider) Close() error {
	return nil
}

func (p *HTTPProvider) checkCooldown(pageURL string) error {
	if p.cache == nil {
		return nil
	}
	host := hostKey(pageURL)
	if _, err := p.cache.Get(host); err == nil {
		logger.ForBrowser().Debug().Str("host", host).Dur("cooldown", p.cooldown).Msg("fetch refused, host in cooldown")
		return fmt.Errorf("browser: host %s fetched within the last %s", host, p.cooldown)
	}
	return nil
}

func (p *HTTPProvider) markFetched(pageURL string) {
	if p.cache == nil {
		return
	}
	p.cache.Set(hostKey(pageURL), []byte("1"), p.cooldown)
}

func hostKey(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "fetch:" + pageURL
	}
	return "fetch:" + u.Host
}

func setBrowserHeaders(req *http.Request) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// toUTF8 converts the body to UTF-8 based on the Content-Type header and
// content sniffing.
func toUTF8(body []byte, contentType string) (io.Reader, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if strings.EqualFold(name, "utf-8") {
		return bytes.NewReader(body), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("browser: convert body to UTF-8: %w", err)
	}
	return &buf, nil
}

type httpPage struct {
	doc *goquery.Document
	url string
}

var _ Page = (*httpPage)(nil)

// WaitSelector checks selector presence. The document is static, so there
// is nothing to wait for: absence is immediately a failure.
func (h *httpPage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if h.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("browser: selector %q not found in %s", selector, h.url)
	}
	return nil
}

func (h *httpPage) Text(ctx context.Context, selector string) (string, error) {
	sel := h.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("browser: selector %q not found in %s", selector, h.url)
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (h *httpPage) PickElement(ctx context.Context, timeout time.Duration) (string, error) {
	return "", ErrPickUnsupported
}

func (h *httpPage) Screenshot(ctx context.Context, path string) error {
	return ErrScreenshotUnsupported
}

func (h *httpPage) Close() error {
	return nil
}
