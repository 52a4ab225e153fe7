package draftstore

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the sweep nightly at 03:00 (seconds field first).
const DefaultSweepSchedule = "0 0 3 * * *"

// Sweeper periodically deletes drafts that were abandoned mid-workflow.
type Sweeper struct {
	store    Expirer
	maxAge   time.Duration
	schedule string
	logger   *zap.Logger
	now      func() time.Time

	cron *cron.Cron
}

// NewSweeper creates a Sweeper. maxAge is how long an untouched draft survives.
func NewSweeper(store Expirer, maxAge time.Duration, schedule string, logger *zap.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the cron job and starts the scheduler.
func (s *Sweeper) Start() error {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("draft_sweep_failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule draft sweep: %w", err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("draft_sweeper_started", zap.String("schedule", s.schedule), zap.Duration("max_age", s.maxAge))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce deletes drafts older than maxAge and returns how many were removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("draft_sweep_complete", zap.Int("removed", n), zap.Time("cutoff", cutoff))
	return n, nil
}
