package httputil

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"krisha_scrooper/config"
)

// NewScrapingClient returns the client used for result pages, routed through
// the configured proxy when there is one.
func NewScrapingClient(proxyCfg *config.ProxyConfig, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	if proxyCfg != nil && proxyCfg.URL != "" {
		proxyURL, err := url.Parse(proxyCfg.URL)
		if err != nil {
			slog.Warn("ignoring invalid proxy url", "error", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
