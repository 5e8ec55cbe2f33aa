package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

var (
	ErrNotPremium      = errors.New("target uploads require a premium account")
	ErrNoTargetCredits = errors.New("no target upload credits left")
)

// TargetModeService manages the one-shot "next photo is a custom target"
// flag. The flag is boolean, never a counter: at most one target upload
// can be pending per user.
type TargetModeService struct {
	users  repositories.UserRepository
	logger *slog.Logger
}

func NewTargetModeService(users repositories.UserRepository, logger *slog.Logger) *TargetModeService {
	return &TargetModeService{users: users, logger: logger}
}

// RequestTargetUpload arms the flag. Only premium users holding target
// credits may arm it.
func (s *TargetModeService) RequestTargetUpload(ctx context.Context, userID int64) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	if !user.IsPremium() {
		return ErrNotPremium
	}
	if user.TargetsLeft <= 0 {
		return ErrNoTargetCredits
	}

	if err := s.users.SetAwaitingTarget(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to arm target mode for user %d: %w", userID, err)
	}

	s.logger.Info("target upload armed", "user_id", userID, "targets_left", user.TargetsLeft)
	return nil
}

// ConsumeIfAwaiting settles a pending target upload: the uploaded asset
// becomes the user's mode selector, the flag is cleared, and one target
// credit is consumed. Returns false without side effects when the flag
// was not armed.
func (s *TargetModeService) ConsumeIfAwaiting(ctx context.Context, userID int64, assetRef string) (bool, int, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if !user.AwaitingTarget {
		return false, 0, nil
	}

	if err := s.users.SetMode(ctx, userID, models.CustomTargetMode(assetRef)); err != nil {
		return false, 0, fmt.Errorf("failed to store custom target for user %d: %w", userID, err)
	}
	if err := s.users.SetAwaitingTarget(ctx, userID, false); err != nil {
		return false, 0, fmt.Errorf("failed to clear target flag for user %d: %w", userID, err)
	}

	_, remaining, err := s.users.DecrementClamped(ctx, userID, repositories.ResourceTargets, 1)
	if err != nil {
		return false, 0, fmt.Errorf("failed to consume target credit for user %d: %w", userID, err)
	}

	s.logger.Info("custom target saved", "user_id", userID, "asset", assetRef, "targets_left", remaining)
	return true, remaining, nil
}
