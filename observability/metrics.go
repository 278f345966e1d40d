package observability

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "krisha_searches_total",
			Help: "Searches run, by outcome",
		},
		[]string{"status"},
	)

	PagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krisha_pages_fetched_total",
			Help: "Result pages downloaded",
		},
	)

	ListingsParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krisha_listings_parsed_total",
			Help: "Ad cards turned into listings",
		},
	)

	EntriesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "krisha_entries_skipped_total",
			Help: "Malformed ad cards skipped under the skip parse policy",
		},
	)
)

// Start exposes /metrics on addr in the background.
func Start(addr string) {
	prometheus.MustRegister(SearchesTotal, PagesFetched, ListingsParsed, EntriesSkipped)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
