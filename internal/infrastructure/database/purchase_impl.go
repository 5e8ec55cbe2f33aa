package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

type purchaseRepository struct {
	db *PostgresDB
}

func NewPurchaseRepository(db *PostgresDB) repositories.PurchaseRepository {
	return &purchaseRepository{db: db}
}

func (r *purchaseRepository) Create(ctx context.Context, purchase *models.PurchaseRecord) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}

	query := `INSERT INTO purchase_records (id, user_id, purchased_at, expires_at, requests_grant, targets_grant)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, purchase.ID, purchase.UserID, purchase.PurchasedAt,
		purchase.ExpiresAt, purchase.RequestsGrant, purchase.TargetsGrant).Scan(&purchase.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create purchase record: %w", err)
	}
	return nil
}

func (r *purchaseRepository) ListActive(ctx context.Context, userID int64, now time.Time) ([]*models.PurchaseRecord, error) {
	var purchases []*models.PurchaseRecord
	query := `SELECT id, user_id, purchased_at, expires_at, requests_grant, targets_grant, created_at
              FROM purchase_records
              WHERE user_id = $1 AND expires_at > $2
              ORDER BY purchased_at`

	if err := r.db.SelectContext(ctx, &purchases, query, userID, now); err != nil {
		return nil, fmt.Errorf("failed to list active purchases for user %d: %w", userID, err)
	}
	return purchases, nil
}

func (r *purchaseRepository) DeleteExpired(ctx context.Context, userID int64, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM purchase_records WHERE user_id = $1 AND expires_at <= $2`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired purchases for user %d: %w", userID, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return removed, nil
}

func (r *purchaseRepository) DeleteAllForUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM purchase_records WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete purchases for user %d: %w", userID, err)
	}
	return nil
}
