package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Clark-Hu/tourbook/internal/lib/logger/sl"
)

// StaleCanceller cancels pending bookings whose start date has passed.
type StaleCanceller interface {
	CancelStaleBookings(ctx context.Context, asOf time.Time) (int, error)
}

// Scheduler runs periodic booking maintenance.
type Scheduler struct {
	cron    *cron.Cron
	svc     StaleCanceller
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// New registers the stale-booking sweep on schedule, a standard five-field
// cron expression or a descriptor such as "@hourly". Each run is bounded by
// timeout.
func New(schedule string, svc StaleCanceller, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	const op = "scheduler.New"

	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:    cron.New(),
		svc:     svc,
		logger:  logger.With(slog.String("component", "scheduler")),
		timeout: timeout,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunStaleSweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("%s: schedule %q: %w", op, schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop interrupted", sl.Err(ctx.Err()))
	}
}

// RunStaleSweep cancels every pending booking that started before now.
// Failures are logged; the next tick retries.
func (s *Scheduler) RunStaleSweep(ctx context.Context) int {
	const op = "scheduler.RunStaleSweep"
	log := s.logger.With(slog.String("op", op))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	cancelled, err := s.svc.CancelStaleBookings(ctx, started)
	if err != nil {
		log.Error("stale booking sweep failed", slog.Int("cancelled", cancelled), sl.Err(err))
		return cancelled
	}
	log.Info("stale booking sweep finished",
		slog.Int("cancelled", cancelled),
		slog.Duration("elapsed", time.Since(started)),
	)
	return cancelled
}
