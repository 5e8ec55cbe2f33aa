package repositories

import (
	"context"
	"errors"
	"time"

	"swapbot/internal/domain/models"
)

// ErrUserNotFound marks lookups and updates against an id with no user
// row, as opposed to the store being unreachable.
var ErrUserNotFound = errors.New("user not found")

// Resource names one of the two independently metered balances.
type Resource string

const (
	ResourceRequests Resource = "requests"
	ResourceTargets  Resource = "targets"
)

type UserRepository interface {
	// EnsureUser inserts the user on first contact or refreshes the
	// username on subsequent ones.
	EnsureUser(ctx context.Context, id int64, username string, freeRequests int) (*models.User, error)

	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)

	// DecrementClamped atomically sets balance = max(0, balance-n) in a
	// single statement and reports how much was actually consumed.
	DecrementClamped(ctx context.Context, id int64, resource Resource, n int) (consumed int, remaining int, err error)

	// TopUp adds grants to both balances and flips the user to premium,
	// extending the expiration if the new one is later.
	TopUp(ctx context.Context, id int64, requests, targets int, expiration time.Time) error

	// ApplyReconciliation overwrites tier, both balances and the
	// expiration in one statement, so it cannot interleave with an
	// in-flight clamped decrement.
	ApplyReconciliation(ctx context.Context, id int64, tier models.UserTier, requests, targets int, expiration *time.Time) error

	SetAwaitingTarget(ctx context.Context, id int64, awaiting bool) error
	SetMode(ctx context.Context, id int64, mode models.Mode) error
	SetLastRequestAt(ctx context.Context, id int64, at time.Time) error
	ResetToFree(ctx context.Context, id int64, freeRequests int) error
}
