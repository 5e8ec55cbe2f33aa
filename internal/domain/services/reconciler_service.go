package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swapbot/internal/config"
	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

const reconcileJobName = "reconcile_quotas"

// ReconcileStats summarizes one reconciler pass.
type ReconcileStats struct {
	UsersUpdated int  `json:"users_updated"`
	UsersExpired int  `json:"users_expired"`
	Skipped      bool `json:"skipped"`
}

// ReconcilerService recomputes live balances from the set of active
// purchases. Balances are overwritten, not topped up: repeated runs in
// the same interval are idempotent and mid-cycle consumption resets to
// the full active-purchase total each pass.
type ReconcilerService struct {
	users     repositories.UserRepository
	purchases repositories.PurchaseRepository
	runs      repositories.RunLogRepository
	quota     config.QuotaConfig
	clock     Clock
	logger    *slog.Logger
}

func NewReconcilerService(users repositories.UserRepository, purchases repositories.PurchaseRepository, runs repositories.RunLogRepository, quota config.QuotaConfig, clock Clock, logger *slog.Logger) *ReconcilerService {
	return &ReconcilerService{
		users:     users,
		purchases: purchases,
		runs:      runs,
		quota:     quota,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs one reconciliation pass. It is a no-op if a successful
// pass already ran within the configured interval.
func (s *ReconcilerService) Run(ctx context.Context, now time.Time) (*ReconcileStats, error) {
	last, err := s.runs.LastRun(ctx, reconcileJobName)
	if err != nil {
		return nil, fmt.Errorf("failed to read reconciliation log: %w", err)
	}
	if last != nil && last.Status == "success" && now.Sub(last.RanAt) < s.quota.ReconcileInterval {
		s.logger.Info("reconciliation skipped, interval not elapsed", "last_run", last.RanAt)
		return &ReconcileStats{Skipped: true}, nil
	}

	stats, err := s.reconcileAll(ctx, now)
	status := "success"
	details := fmt.Sprintf("updated=%d expired=%d", stats.UsersUpdated, stats.UsersExpired)
	if err != nil {
		status = "failed"
		details = err.Error()
	}

	run := &models.ReconciliationRun{
		JobName: reconcileJobName,
		RanAt:   now,
		Status:  status,
		Details: details,
	}
	if logErr := s.runs.RecordRun(ctx, run); logErr != nil {
		s.logger.Error("failed to record reconciliation run", "error", logErr)
		if err == nil {
			err = fmt.Errorf("failed to record reconciliation run: %w", logErr)
		}
	}

	if err != nil {
		return nil, err
	}

	s.logger.Info("reconciliation completed",
		"users_updated", stats.UsersUpdated,
		"users_expired", stats.UsersExpired)
	return stats, nil
}

func (s *ReconcilerService) reconcileAll(ctx context.Context, now time.Time) (*ReconcileStats, error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return &ReconcileStats{}, fmt.Errorf("failed to list users: %w", err)
	}

	stats := &ReconcileStats{}
	for _, id := range ids {
		if err := s.reconcileUser(ctx, id, now, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (s *ReconcilerService) reconcileUser(ctx context.Context, id int64, now time.Time, stats *ReconcileStats) error {
	if _, err := s.purchases.DeleteExpired(ctx, id, now); err != nil {
		return fmt.Errorf("failed to purge expired purchases for user %d: %w", id, err)
	}

	active, err := s.purchases.ListActive(ctx, id, now)
	if err != nil {
		return fmt.Errorf("failed to list purchases for user %d: %w", id, err)
	}

	if len(active) == 0 {
		if err := s.users.ApplyReconciliation(ctx, id, models.TierFree, s.quota.FreeRequests, 0, nil); err != nil {
			return fmt.Errorf("failed to downgrade user %d: %w", id, err)
		}
		stats.UsersExpired++
		return nil
	}

	totalRequests := 0
	totalTargets := 0
	var latestExpiry time.Time
	for _, p := range active {
		totalRequests += p.RequestsGrant
		totalTargets += p.TargetsGrant
		if p.ExpiresAt.After(latestExpiry) {
			latestExpiry = p.ExpiresAt
		}
	}

	if err := s.users.ApplyReconciliation(ctx, id, models.TierPremium, totalRequests, totalTargets, &latestExpiry); err != nil {
		return fmt.Errorf("failed to reconcile user %d: %w", id, err)
	}
	stats.UsersUpdated++
	return nil
}
