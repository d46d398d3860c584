// Package schedule triggers accumulative scrape runs on a cron spec, so a
// long-running server keeps branch history current without manual runs.
package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/operations"
)

// lookbackDays bounds each scheduled run. The store skips dates that are
// already on disk, so re-covering recent days is cheap and heals gaps left
// by failed runs.
const lookbackDays = 7

// Scheduler runs accumulative scrapes on a fixed cron spec.
type Scheduler struct {
	cron    *cron.Cron
	service *operations.Service
	spec    string
	logger  *slog.Logger
}

// New creates a scheduler around the run service. The cron spec uses six
// fields with a leading seconds column.
func New(cfg config.ScheduleConfig, service *operations.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		service: service,
		spec:    cfg.Spec,
		logger:  logger,
	}
}

// Start registers the trigger and begins scheduling.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.trigger); err != nil {
		return fmt.Errorf("invalid schedule spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)
	return nil
}

// Stop halts scheduling and waits for a running trigger callback to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// trigger starts an accumulative run covering the recent lookback window.
// A run already in progress is skipped, not queued.
func (s *Scheduler) trigger() {
	now := time.Now()
	opts := operations.RunOptions{
		From: now.AddDate(0, 0, -lookbackDays),
		To:   now,
	}

	runID, err := s.service.Start(opts)
	if err != nil {
		if errors.Is(err, operations.ErrRunActive) {
			s.logger.Warn("scheduled run skipped, previous run still active")
			return
		}
		s.logger.Error("scheduled run failed to start", "error", err)
		return
	}
	s.logger.Info("scheduled run started",
		"run_id", runID,
		"from", opts.From.Format("2006-01-02"),
		"to", opts.To.Format("2006-01-02"))
}
