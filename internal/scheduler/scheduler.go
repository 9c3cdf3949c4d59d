package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Refresher runs one refresh-all pass over the dashboard.
type Refresher interface {
	UpdateAll(ctx context.Context) (weather.RefreshReport, error)
}

// Scheduler periodically refreshes every location of the dashboard.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. Each pass is bounded by timeout.
func New(refresher Refresher, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the refresh job, first run immediately, and starts the
// underlying scheduler. A pass still running when the next is due is not
// overlapped.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	s.logger.Info("scheduler: running dashboard refresh")

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.refresher.UpdateAll(ctx)
	if err != nil {
		s.logger.Error("scheduler: dashboard refresh aborted", "err", err)
		return
	}
	s.logger.Info("scheduler: completed dashboard refresh",
		"run_id", report.RunID, "refreshed", len(report.Refreshed), "failed", len(report.Failed))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
