package services

import (
	"context"
	"fmt"
	"log/slog"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

// Downloader fetches the raw bytes of an inbound photo reference.
type Downloader interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FaceSwapService runs the external model and returns the ordered list
// of output asset paths.
type FaceSwapService interface {
	Process(ctx context.Context, assetPath string, mode models.Mode) ([]string, error)
}

// ImageStore persists a downloaded asset and returns its path.
type ImageStore interface {
	SaveInput(ctx context.Context, userID int64, target bool, data []byte) (string, error)
}

// Messenger delivers results and user-facing notices back to the chat
// platform. Formatting and localization live behind this interface.
type Messenger interface {
	SendPhoto(ctx context.Context, userID int64, assetPath, caption string) error
	SendText(ctx context.Context, userID int64, text string) error
}

// PipelineService drives one photo submission from acceptance to a
// terminal state: rate gates, entitlement check, download, then either
// custom-target settlement or model dispatch and metered delivery.
// A submission is never re-entered and never retried automatically.
type PipelineService struct {
	entitlements *EntitlementService
	limiter      *RateLimiter
	targetMode   *TargetModeService
	users        repositories.UserRepository
	downloader   Downloader
	swapper      FaceSwapService
	store        ImageStore
	messenger    Messenger
	clock        Clock
	logger       *slog.Logger
}

func NewPipelineService(
	entitlements *EntitlementService,
	limiter *RateLimiter,
	targetMode *TargetModeService,
	users repositories.UserRepository,
	downloader Downloader,
	swapper FaceSwapService,
	store ImageStore,
	messenger Messenger,
	clock Clock,
	logger *slog.Logger,
) *PipelineService {
	return &PipelineService{
		entitlements: entitlements,
		limiter:      limiter,
		targetMode:   targetMode,
		users:        users,
		downloader:   downloader,
		swapper:      swapper,
		store:        store,
		messenger:    messenger,
		clock:        clock,
		logger:       logger,
	}
}

// HandlePhoto runs the full state machine for one submission. Expected
// conditions (rate limited, out of credits, failed download, failed
// processing) come back as a terminal PhotoResult; a non-nil error means
// the ledger could not be read or written and the request was aborted
// before consuming anything.
func (s *PipelineService) HandlePhoto(ctx context.Context, req models.PhotoRequest) (*models.PhotoResult, error) {
	user, err := s.entitlements.EnsureUser(ctx, req.UserID, req.Username)
	if err != nil {
		return nil, err
	}

	// RECEIVED -> RATE_CHECKED
	if decision := s.limiter.Allow(user, req.GroupID); !decision.Allowed {
		if decision.RetryAfter > 0 {
			s.notify(ctx, user.ID, fmt.Sprintf("Too fast. Try again in %d seconds.", int(decision.RetryAfter.Seconds()+0.5)))
		}
		return &models.PhotoResult{
			State:      models.StateFailed,
			Failure:    models.FailureRateLimited,
			RetryAfter: decision.RetryAfter,
		}, nil
	}

	// RATE_CHECKED -> ENTITLED
	ok, err := s.entitlements.CheckBalance(ctx, user.ID, repositories.ResourceRequests)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.notify(ctx, user.ID, "You are out of processing credits.")
		return &models.PhotoResult{
			State:   models.StateFailed,
			Failure: models.FailureNoEntitlement,
		}, nil
	}

	// ENTITLED -> DOWNLOADING. The cooldown is spent before the download
	// starts, so a failing downstream cannot be hammered with retries.
	if err := s.users.SetLastRequestAt(ctx, user.ID, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("failed to stamp request time for user %d: %w", user.ID, err)
	}

	data, err := s.downloader.Fetch(ctx, req.PhotoRef)
	if err != nil {
		s.logger.Error("photo download failed", "user_id", user.ID, "photo_ref", req.PhotoRef, "error", err)
		s.notify(ctx, user.ID, "Could not fetch your photo. Please try again later.")
		return &models.PhotoResult{
			State:   models.StateFailed,
			Failure: models.FailureDownload,
		}, nil
	}

	assetPath, err := s.store.SaveInput(ctx, user.ID, user.AwaitingTarget, data)
	if err != nil {
		s.logger.Error("failed to store downloaded photo", "user_id", user.ID, "error", err)
		s.notify(ctx, user.ID, "Could not fetch your photo. Please try again later.")
		return &models.PhotoResult{
			State:   models.StateFailed,
			Failure: models.FailureDownload,
		}, nil
	}

	// Branch: custom-target settlement never touches processing credits
	// and never invokes the swap service.
	if user.AwaitingTarget {
		settled, remaining, err := s.targetMode.ConsumeIfAwaiting(ctx, user.ID, assetPath)
		if err != nil {
			return nil, err
		}
		if settled {
			s.notify(ctx, user.ID, fmt.Sprintf("Target saved. %d upload credits remain.", remaining))
			return &models.PhotoResult{
				State:       models.StateCompleted,
				TargetSaved: true,
				Remaining:   remaining,
			}, nil
		}
	}

	return s.process(ctx, user, assetPath)
}

// process dispatches to the swap service and delivers the outputs,
// re-checking the balance before each one so a concurrent request from
// the same user cannot push the ledger below zero.
func (s *PipelineService) process(ctx context.Context, user *models.User, assetPath string) (*models.PhotoResult, error) {
	outputs, err := s.swapper.Process(ctx, assetPath, user.Mode())
	if err != nil {
		s.logger.Error("swap service failed", "user_id", user.ID, "asset", assetPath, "error", err)
		s.notify(ctx, user.ID, "Processing failed. Please try again later.")
		return &models.PhotoResult{
			State:   models.StateFailed,
			Failure: models.FailureProcessingService,
		}, nil
	}

	delivered := make([]string, 0, len(outputs))
	for _, output := range outputs {
		// The balance is re-read before every output: deliveries already
		// made this pass plus anything a concurrent request consumed cap
		// how many of the k outputs actually go out.
		balance, err := s.entitlements.Balance(ctx, user.ID, repositories.ResourceRequests)
		if err != nil {
			return nil, err
		}
		if balance-len(delivered) <= 0 {
			break
		}
		if err := s.messenger.SendPhoto(ctx, user.ID, output, "Swapped for you by swapbot"); err != nil {
			s.logger.Error("failed to deliver output", "user_id", user.ID, "asset", output, "error", err)
			break
		}
		delivered = append(delivered, output)
	}

	consumed, remaining, err := s.entitlements.DecrementClamped(ctx, user.ID, repositories.ResourceRequests, len(delivered))
	if err != nil {
		return nil, err
	}

	s.notify(ctx, user.ID, fmt.Sprintf("You have %d requests left.", remaining))
	s.logger.Info("photo processed",
		"user_id", user.ID,
		"outputs", len(outputs),
		"delivered", len(delivered),
		"consumed", consumed,
		"remaining", remaining)

	return &models.PhotoResult{
		State:     models.StateCompleted,
		Delivered: delivered,
		Consumed:  consumed,
		Remaining: remaining,
	}, nil
}

// notify sends a best-effort user notice. Delivery failures are logged,
// never escalated.
func (s *PipelineService) notify(ctx context.Context, userID int64, text string) {
	if err := s.messenger.SendText(ctx, userID, text); err != nil {
		s.logger.Error("failed to notify user", "user_id", userID, "error", err)
	}
}
