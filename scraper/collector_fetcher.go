package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"krisha_scrooper/config"
)

// CollectorFetcher downloads result pages with a colly collector. Requests go
// out one at a time with the configured delay between them.
type CollectorFetcher struct {
	collector       *colly.Collector
	randomUserAgent bool
}

func NewCollectorFetcher(cfg *config.ScraperConfig, client *http.Client) *CollectorFetcher {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)

	if client != nil {
		c.SetClient(client)
	} else {
		c.SetRequestTimeout(cfg.Timeout())
	}

	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       time.Duration(cfg.DelayMS) * time.Millisecond,
	})
	if err != nil {
		slog.Warn("collector: failed to set limit rule", "error", err)
	}

	return &CollectorFetcher{
		collector:       c,
		randomUserAgent: cfg.RandomUserAgent,
	}
}

func (f *CollectorFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target, err := withQuery(rawURL, params)
	if err != nil {
		return nil, err
	}

	// Clones share the HTTP backend and limits but not callbacks.
	c := f.collector.Clone()
	c.Context = ctx
	if f.randomUserAgent {
		extensions.RandomUserAgent(c)
	}

	var body []byte
	var responseErr error

	c.OnRequest(func(r *colly.Request) {
		slog.Debug("collector: requesting page", "url", r.URL.String())
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r.StatusCode == 0 {
			responseErr = fmt.Errorf("request to %s failed: %w", r.Request.URL, err)
			return
		}
		responseErr = fmt.Errorf("request to %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(target); err != nil {
		if responseErr != nil {
			return nil, responseErr
		}
		return nil, fmt.Errorf("request to %s: %w", target, err)
	}
	c.Wait()

	if responseErr != nil {
		return nil, responseErr
	}
	return body, nil
}
