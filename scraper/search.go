package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"krisha_scrooper/models"
	"krisha_scrooper/observability"
	"krisha_scrooper/query"
)

const DefaultLimit = 10

// ParsePolicy decides what happens to an ad card that cannot be parsed.
type ParsePolicy string

const (
	// ParseStrict aborts the search on the first malformed card.
	ParseStrict ParsePolicy = "strict"
	// ParseSkip logs and drops malformed cards. A page without a result
	// counter still aborts the search.
	ParseSkip ParsePolicy = "skip"
)

func ParseParsePolicy(s string) (ParsePolicy, error) {
	switch p := ParsePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ParseStrict:
		return ParseStrict, nil
	case ParseSkip:
		return ParseSkip, nil
	}
	return "", fmt.Errorf("unknown parse policy: %q", s)
}

type Request struct {
	Category Category
	Mode     Mode
	// Limit caps the number of listings returned. Zero means DefaultLimit.
	Limit    int
	Filters  query.Filters
	PresetID string
}

type Searcher struct {
	fetcher Fetcher
	baseURL string
	policy  ParsePolicy
	logger  *slog.Logger
	onPage  func(page, collected int)
}

func NewSearcher(fetcher Fetcher, baseURL string, policy ParsePolicy) *Searcher {
	if policy == "" {
		policy = ParseStrict
	}
	return &Searcher{
		fetcher: fetcher,
		baseURL: baseURL,
		policy:  policy,
		logger:  slog.Default(),
	}
}

func (s *Searcher) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// OnPage registers a progress callback, invoked after every page with the
// page number and the number of listings that will be returned so far.
func (s *Searcher) OnPage(fn func(page, collected int)) {
	s.onPage = fn
}

// searchState is the loop state after a page has been consumed.
type searchState struct {
	flats []models.Flat
	bound int
	page  int
	// cards seen on the last page, parsed or skipped
	cards int
}

// Search collects up to req.Limit flats, stopping early when the site reports
// fewer matches.
func (s *Searcher) Search(ctx context.Context, req Request) ([]models.Flat, error) {
	_, flats, err := s.Run(ctx, req)
	return flats, err
}

// Run is Search plus a summary of the run.
func (s *Searcher) Run(ctx context.Context, req Request) (*models.SearchRun, []models.Flat, error) {
	run := models.NewSearchRun(req.PresetID)
	logger := s.logger.With("run_id", run.ID.String())

	flats, err := s.search(ctx, logger, run, req)
	run.Finish(err)
	run.ListingsFound = len(flats)

	if err != nil {
		observability.SearchesTotal.WithLabelValues(string(models.RunStatusFailed)).Inc()
		logger.Error("search failed", "error", err, "pages", run.PagesFetched)
		return run, nil, err
	}

	observability.SearchesTotal.WithLabelValues(string(models.RunStatusCompleted)).Inc()
	logger.Info("search completed",
		"listings", run.ListingsFound,
		"total_reported", run.TotalReported,
		"pages", run.PagesFetched,
		"skipped", run.EntriesSkipped,
		"duration", run.Duration())
	return run, flats, nil
}

func (s *Searcher) search(ctx context.Context, logger *slog.Logger, run *models.SearchRun, req Request) ([]models.Flat, error) {
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		return nil, &query.FilterError{Filter: "limit", Err: fmt.Errorf("%w: %d", query.ErrValueRange, limit)}
	}

	target, err := SearchURL(s.baseURL, req.Category, req.Mode)
	if err != nil {
		return nil, err
	}

	params, err := query.Build(req.Filters)
	if err != nil {
		return nil, err
	}
	// The loop owns the page counter.
	params.Del(query.KeyPage)

	logger.Info("search started", "url", target, "params", params.Encode(), "limit", limit)

	state := searchState{bound: limit, page: 1}
	for len(state.flats) < min(limit, state.bound) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := s.consumePage(ctx, logger, run, target, params, state)
		if err != nil {
			return nil, err
		}

		collected := min(len(next.flats), limit, next.bound)
		if s.onPage != nil {
			s.onPage(state.page, collected)
		}
		logger.Debug("page consumed", "page", state.page, "collected", collected, "bound", next.bound)

		state = next
		if state.cards == 0 && len(state.flats) < min(limit, state.bound) {
			logger.Warn("page had no listings, stopping early",
				"page", state.page-1, "collected", len(state.flats), "expected", min(limit, state.bound))
			break
		}
	}

	return state.flats[:min(len(state.flats), limit, state.bound)], nil
}

// consumePage fetches and parses state.page and returns the state for the
// next iteration.
func (s *Searcher) consumePage(ctx context.Context, logger *slog.Logger, run *models.SearchRun, target string, base url.Values, state searchState) (searchState, error) {
	params := url.Values{}
	for k, v := range base {
		params[k] = slices.Clone(v)
	}
	if state.page > 1 {
		params.Set(query.KeyPage, strconv.Itoa(state.page))
	}

	body, err := s.fetcher.Fetch(ctx, target, params)
	if err != nil {
		return state, fmt.Errorf("page %d: %w", state.page, err)
	}
	run.PagesFetched++
	observability.PagesFetched.Inc()

	doc, err := ParseDocument(body)
	if err != nil {
		return state, fmt.Errorf("page %d: %w", state.page, err)
	}

	next := searchState{bound: state.bound, page: state.page + 1}

	if state.page == 1 {
		total, err := ParseTotal(doc)
		if err != nil {
			return state, withPage(err, state.page)
		}
		run.TotalReported = total
		next.bound = min(state.bound, total)
		logger.Info("site reports matches", "total", total)
	}

	cards := ParseEntries(doc)
	next.cards = cards.Length()

	flats := slices.Clip(state.flats)
	var entryErr error
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		flat, err := ParseEntry(card)
		if err != nil {
			if s.policy == ParseSkip {
				run.EntriesSkipped++
				observability.EntriesSkipped.Inc()
				logger.Warn("skipping malformed card", "page", state.page, "error", err)
				return true
			}
			entryErr = withPage(err, state.page)
			return false
		}
		flats = append(flats, flat)
		observability.ListingsParsed.Inc()
		return true
	})
	if entryErr != nil {
		return state, entryErr
	}

	next.flats = flats
	return next, nil
}

func withPage(err error, page int) error {
	var me *MarkupError
	if errors.As(err, &me) {
		me.Page = page
		return me
	}
	return fmt.Errorf("page %d: %w", page, err)
}
