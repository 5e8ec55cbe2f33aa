package repositories

import (
	"context"
	"time"

	"swapbot/internal/domain/models"
)

type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.PurchaseRecord) error
	ListActive(ctx context.Context, userID int64, now time.Time) ([]*models.PurchaseRecord, error)
	DeleteExpired(ctx context.Context, userID int64, now time.Time) (int64, error)
	DeleteAllForUser(ctx context.Context, userID int64) error
}
