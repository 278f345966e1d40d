package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"krisha_scrooper/config"
)

var ErrNoSchedule = errors.New("no schedule configured")

// Job is one scheduled search.
type Job func(ctx context.Context) error

// Scheduler reruns a job on a cron expression or, without one, a fixed
// interval. Runs never overlap.
type Scheduler struct {
	cfg    config.SchedulerConfig
	job    Job
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	mu      sync.Mutex
	running bool
}

func New(cfg config.SchedulerConfig, job Job) *Scheduler {
	return &Scheduler{
		cfg: cfg,
		job: job,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		slog.Info("starting scheduler", "cron", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.run(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Interval > 0 {
		slog.Info("starting scheduler", "interval", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.run(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	return ErrNoSchedule
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs the job immediately unless a run is in progress.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("previous scheduled search still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}
	if err := s.job(ctx); err != nil {
		slog.Error("scheduled search failed", "error", err)
	}
}
