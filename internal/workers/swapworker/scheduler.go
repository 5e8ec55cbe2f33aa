package swapworker

import (
	"context"
	"log/slog"
	"time"

	"swapbot/internal/domain/services"
)

// Scheduler fires the nightly reconciliation at a fixed UTC hour. The
// reconciler itself refuses to run twice within its interval, so a
// restart mid-cycle cannot double-apply.
type Scheduler struct {
	reconciler *services.ReconcilerService
	hourUTC    int
	clock      services.Clock
	logger     *slog.Logger
}

func NewScheduler(reconciler *services.ReconcilerService, hourUTC int, clock services.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		hourUTC:    hourUTC,
		clock:      clock,
		logger:     logger,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.nextFiring(s.clock.Now())
		s.logger.Info("next reconciliation scheduled", "at", next)

		timer := time.NewTimer(next.Sub(s.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.reconciler.Run(ctx, s.clock.Now()); err != nil {
			s.logger.Error("scheduled reconciliation failed", "error", err)
		}
	}
}

func (s *Scheduler) nextFiring(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
