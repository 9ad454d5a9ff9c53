package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"alameda-hq/cantina/pkg/consumption/storage"
)

// Sweeper re-asserts routing for every active config on a cron schedule.
// Out-of-band directory edits (an employee changing org units, a manual
// account change) are healed on the next sweep.
type Sweeper struct {
	configs  storage.Backend
	sync     *Synchronizer
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewSweeper creates a Sweeper. The schedule uses standard cron syntax,
// e.g. "0 3 * * *" for daily at 3 AM. An empty schedule disables it.
func NewSweeper(configs storage.Backend, synchronizer *Synchronizer, schedule string) *Sweeper {
	return &Sweeper{
		configs:  configs,
		sync:     synchronizer,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "consumption.sweeper"),
	}
}

// Start begins scheduled sweeping. Stops when the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("scheduled sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("routing sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Reschedule replaces the sweep schedule at runtime. The running cron is
// stopped and a fresh one is started with the new expression; an empty
// schedule leaves the sweeper stopped.
func (s *Sweeper) Reschedule(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == s.schedule {
		return nil
	}
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
		}
	}

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
	}
	s.cron = cron.New()
	s.schedule = schedule

	if schedule == "" {
		s.logger.Info("sweep schedule cleared, sweeper stopped")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("scheduled sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("routing sweeper rescheduled", "schedule", schedule)
	return nil
}

// Sweep reconciles every active config against its current scope and
// returns the merged report. A failing config is logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	configs, err := s.configs.ListConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	merged := &Report{}
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		payers, err := s.sync.ScopePayers(ctx, cfg)
		if err != nil {
			s.logger.Warn("sweep skipped config", "config", cfg.ID, "error", err)
			continue
		}
		report, err := s.sync.Reconcile(ctx, cfg, nil, payers, nil)
		if err != nil {
			s.logger.Warn("sweep failed for config", "config", cfg.ID, "error", err)
			continue
		}
		merged.PayersApplied += report.PayersApplied
		merged.PayersRevoked += report.PayersRevoked
		merged.AccountWrites += report.AccountWrites
		merged.FlagWrites += report.FlagWrites
		merged.Warnings = append(merged.Warnings, report.Warnings...)
	}

	if merged.TotalWrites() > 0 {
		s.logger.Info("sweep healed routing",
			"account_writes", merged.AccountWrites,
			"flag_writes", merged.FlagWrites,
		)
	}
	return merged, nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("routing sweeper stopped")
	}
}
