package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"swapbot/internal/config"
	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

// EntitlementService is the ledger over the two metered resources. All
// balance mutations go through the repository's clamped primitives, so a
// balance can never be observed negative no matter how calls interleave.
type EntitlementService struct {
	users     repositories.UserRepository
	purchases repositories.PurchaseRepository
	quota     config.QuotaConfig
	clock     Clock
	logger    *slog.Logger
}

func NewEntitlementService(users repositories.UserRepository, purchases repositories.PurchaseRepository, quota config.QuotaConfig, clock Clock, logger *slog.Logger) *EntitlementService {
	return &EntitlementService{
		users:     users,
		purchases: purchases,
		quota:     quota,
		clock:     clock,
		logger:    logger,
	}
}

func (s *EntitlementService) EnsureUser(ctx context.Context, id int64, username string) (*models.User, error) {
	user, err := s.users.EnsureUser(ctx, id, username, s.quota.FreeRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %d: %w", id, err)
	}
	return user, nil
}

func (s *EntitlementService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

// CheckBalance reports whether the user has any of the resource left.
func (s *EntitlementService) CheckBalance(ctx context.Context, userID int64, resource repositories.Resource) (bool, error) {
	balance, err := s.Balance(ctx, userID, resource)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

// Balance reads the current value of the resource.
func (s *EntitlementService) Balance(ctx context.Context, userID int64, resource repositories.Resource) (int, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for user %d: %w", userID, err)
	}
	return balanceOf(user, resource), nil
}

// DecrementClamped consumes up to n units and reports how many were
// actually consumed, which may be fewer if the balance ran out.
func (s *EntitlementService) DecrementClamped(ctx context.Context, userID int64, resource repositories.Resource, n int) (consumed, remaining int, err error) {
	if n <= 0 {
		user, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read balance for user %d: %w", userID, err)
		}
		return 0, balanceOf(user, resource), nil
	}

	consumed, remaining, err = s.users.DecrementClamped(ctx, userID, resource, n)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decrement %s for user %d: %w", resource, userID, err)
	}
	return consumed, remaining, nil
}

// RecordPurchase appends a purchase record and applies an immediate
// top-up so the user sees the grant before the next reconciliation pass.
func (s *EntitlementService) RecordPurchase(ctx context.Context, userID int64, requestsGrant, targetsGrant int) (*models.PurchaseRecord, error) {
	if requestsGrant <= 0 {
		requestsGrant = s.quota.PremiumRequests
	}
	if targetsGrant < 0 {
		targetsGrant = s.quota.PremiumTargets
	}

	now := s.clock.Now()
	purchase := &models.PurchaseRecord{
		ID:            uuid.New(),
		UserID:        userID,
		PurchasedAt:   now,
		ExpiresAt:     now.AddDate(0, 0, s.quota.PremiumDays),
		RequestsGrant: requestsGrant,
		TargetsGrant:  targetsGrant,
	}

	if err := s.purchases.Create(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to record purchase for user %d: %w", userID, err)
	}

	if err := s.users.TopUp(ctx, userID, purchase.RequestsGrant, purchase.TargetsGrant, purchase.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to apply purchase top-up for user %d: %w", userID, err)
	}

	s.logger.Info("purchase recorded",
		"user_id", userID,
		"purchase_id", purchase.ID,
		"requests_grant", purchase.RequestsGrant,
		"targets_grant", purchase.TargetsGrant,
		"expires_at", purchase.ExpiresAt)

	return purchase, nil
}

// ResetToFree discards all purchase records and puts the user back on
// the free baseline.
func (s *EntitlementService) ResetToFree(ctx context.Context, userID int64) error {
	if err := s.purchases.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to discard purchases for user %d: %w", userID, err)
	}
	if err := s.users.ResetToFree(ctx, userID, s.quota.FreeRequests); err != nil {
		return fmt.Errorf("failed to reset user %d: %w", userID, err)
	}
	s.logger.Info("user reset to free baseline", "user_id", userID)
	return nil
}

func balanceOf(user *models.User, resource repositories.Resource) int {
	if resource == repositories.ResourceTargets {
		return user.TargetsLeft
	}
	return user.RequestsLeft
}
