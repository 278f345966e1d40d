package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"
	"krisha_scrooper/config"
)

// BrowserFetcher loads result pages in headless Chromium. It is slower than
// the collector but gets through pages that refuse plain HTTP clients.
type BrowserFetcher struct {
	cfg      *config.ScraperConfig
	proxyURL string
	limiter  *rate.Limiter

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserFetcher(cfg *config.ScraperConfig, proxy *config.ProxyConfig) *BrowserFetcher {
	limit := rate.Inf
	if cfg.DelayMS > 0 {
		limit = rate.Every(time.Duration(cfg.DelayMS) * time.Millisecond)
	}

	return &BrowserFetcher{
		cfg:      cfg,
		proxyURL: proxy.URL,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target, err := withQuery(rawURL, params)
	if err != nil {
		return nil, err
	}

	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var pageOpts playwright.BrowserNewPageOptions
	if f.cfg.UserAgent != "" {
		pageOpts.UserAgent = playwright.String(f.cfg.UserAgent)
	}
	page, err := f.browser.NewPage(pageOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	slog.Debug("browser: navigating", "url", target)

	resp, err := page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.cfg.Timeout().Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", target, err)
	}
	if resp != nil && resp.Status() != 200 {
		return nil, fmt.Errorf("request to %s failed with status %d", target, resp.Status())
	}

	f.handleConsent(page)
	f.waitForResults(page)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	return []byte(content), nil
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.cfg.BrowserHeadless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if f.proxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: f.proxyURL}
	}

	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.pw = pw
	f.browser = browser
	f.initialized = true
	return nil
}

// waitForResults gives client-side rendering a chance to fill in the cards.
func (f *BrowserFetcher) waitForResults(page playwright.Page) {
	err := page.Locator(selTotal).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(10000),
	})
	if err != nil {
		slog.Warn("browser: results counter did not appear", "error", err)
	}
}

func (f *BrowserFetcher) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"button:has-text('Принять')",
		"button:has-text('Согласен')",
		"button[class*='cookie']",
		"button:has-text('OK')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			slog.Debug("browser: clicking consent button", "selector", selector)
			btn.Click()
			break
		}
	}
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil
	}
	f.initialized = false

	var firstErr error
	if f.browser != nil {
		firstErr = f.browser.Close()
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
