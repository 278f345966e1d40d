package scraper

import (
	"context"
	"net/url"

	"krisha_scrooper/config"
	"krisha_scrooper/httputil"
)

// Fetcher downloads one results page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

func NewFetcher(cfg *config.Config) Fetcher {
	switch cfg.Fetcher {
	case "browser":
		return NewBrowserFetcher(&cfg.Scraper, &cfg.Proxy)
	case "collector":
		return NewCollectorFetcher(&cfg.Scraper, httputil.NewScrapingClient(&cfg.Proxy, cfg.Scraper.Timeout()))
	default:
		return NewCollectorFetcher(&cfg.Scraper, httputil.NewScrapingClient(&cfg.Proxy, cfg.Scraper.Timeout()))
	}
}

func withQuery(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}
