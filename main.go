package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"krisha_scrooper/config"
	"krisha_scrooper/logging"
	"krisha_scrooper/observability"
	"krisha_scrooper/query"
	"krisha_scrooper/scheduler"
	"krisha_scrooper/scraper"
)

var (
	categoryFlag = flag.String("category", "flat", "Property category: flat, house, room, dacha")
	modeFlag     = flag.String("mode", "buy", "Deal mode: buy, monthly, daily, hourly")
	limitFlag    = flag.Int("limit", scraper.DefaultLimit, "Maximum number of listings to return, must be positive")
	presetFlag   = flag.String("preset", "", "Run a saved search from the presets directory")
	watchFlag    = flag.Bool("watch", false, "Rerun the search on SEARCH_CRON or SEARCH_INTERVAL and print every run")
	listPresets  = flag.Bool("list-presets", false, "List saved searches and exit")
)

func main() {
	filterArgs := registerFilterFlags(flag.CommandLine)
	flag.Parse()

	if err := run(filterArgs); err != nil {
		slog.Error("krisha_scrooper failed", "error", err)
		os.Exit(1)
	}
}

func run(filterArgs map[string]any) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		slog.Warn("could not set up file logging", "path", cfg.LogPath, "error", err)
	} else if logFile != nil {
		defer logFile.Close()
	}

	if *listPresets {
		printPresets(os.Stdout, cfg.Searches)
		return nil
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	req, err := buildRequest(cfg, *presetFlag, explicit, filterArgs)
	if err != nil {
		return err
	}

	policy, err := scraper.ParseParsePolicy(cfg.Scraper.ParsePolicy)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		observability.Start(cfg.MetricsAddr)
		slog.Info("metrics listening", "addr", cfg.MetricsAddr)
	}

	fetcher := scraper.NewFetcher(cfg)
	if c, ok := fetcher.(io.Closer); ok {
		defer c.Close()
	}
	searcher := scraper.NewSearcher(fetcher, cfg.BaseURL, policy)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *watchFlag {
		return watch(ctx, cfg, searcher, req)
	}

	searcher.OnPage(func(page, collected int) {
		fmt.Fprintf(os.Stderr, "\rPage %3d | %4d ads", page, collected)
	})
	flats, err := searcher.Search(ctx, req)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	printListings(os.Stdout, flats)
	return nil
}

// buildRequest assembles the search from a preset, if any, and the command
// line. Flags given explicitly win over preset values.
func buildRequest(cfg *config.Config, presetID string, explicit map[string]bool, filterArgs map[string]any) (scraper.Request, error) {
	category, mode, limit := *categoryFlag, *modeFlag, *limitFlag
	if explicit["limit"] && limit <= 0 {
		return scraper.Request{}, fmt.Errorf("-limit must be positive, got %d", limit)
	}
	raw := map[string]any{}

	if presetID != "" {
		preset, ok := cfg.Searches[presetID]
		if !ok {
			return scraper.Request{}, fmt.Errorf("unknown search preset %q", presetID)
		}
		if !explicit["category"] && preset.Category != "" {
			category = preset.Category
		}
		if !explicit["mode"] && preset.Mode != "" {
			mode = preset.Mode
		}
		if !explicit["limit"] && preset.Limit != 0 {
			limit = preset.Limit
		}
		for k, v := range preset.Filters {
			raw[k] = v
		}
	}
	for k, v := range filterArgs {
		raw[k] = v
	}

	c, err := scraper.ParseCategory(category)
	if err != nil {
		return scraper.Request{}, err
	}
	m, err := scraper.ParseMode(mode)
	if err != nil {
		return scraper.Request{}, err
	}
	filters, err := query.FiltersFromMap(raw)
	if err != nil {
		return scraper.Request{}, err
	}

	return scraper.Request{
		Category: c,
		Mode:     m,
		Limit:    limit,
		Filters:  filters,
		PresetID: presetID,
	}, nil
}

// watch reruns the search on the configured schedule until ctx is cancelled.
func watch(ctx context.Context, cfg *config.Config, searcher *scraper.Searcher, req scraper.Request) error {
	sched := scheduler.New(cfg.Scheduler, watchJob(searcher, req, os.Stdout))

	if err := sched.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrNoSchedule) {
			return fmt.Errorf("watch mode needs SEARCH_CRON or SEARCH_INTERVAL: %w", err)
		}
		return err
	}
	defer sched.Stop()

	sched.TriggerNow(ctx)

	slog.Info("watching, press Ctrl+C to stop")
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// watchJob prints the full result of every run.
func watchJob(searcher *scraper.Searcher, req scraper.Request, w io.Writer) scheduler.Job {
	return func(ctx context.Context) error {
		flats, err := searcher.Search(ctx, req)
		if err != nil {
			return err
		}
		slog.Info("watch run finished", "listings", len(flats))
		printListings(w, flats)
		return nil
	}
}

func printPresets(w io.Writer, presets map[string]*config.SearchPreset) {
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := presets[id]
		fmt.Fprintf(w, "%-24s %s/%s limit=%d  %s\n", id, p.Category, p.Mode, p.Limit, p.Name)
	}
}
