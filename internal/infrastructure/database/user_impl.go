package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

type userRepository struct {
	db *PostgresDB
}

func NewUserRepository(db *PostgresDB) repositories.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, tier, requests_left, targets_left, premium_expiration,
              awaiting_target, mode_kind, mode_value, last_request_at, created_at, updated_at`

func (r *userRepository) EnsureUser(ctx context.Context, id int64, username string, freeRequests int) (*models.User, error) {
	var user models.User
	query := `INSERT INTO users (id, username, tier, requests_left, targets_left, awaiting_target,
                                 mode_kind, mode_value, last_request_at)
              VALUES ($1, $2, 'free', $3, 0, FALSE, 'category', '1', to_timestamp(0))
              ON CONFLICT (id) DO UPDATE
              SET username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
                  updated_at = NOW()
              RETURNING ` + userColumns

	err := r.db.GetContext(ctx, &user, query, id, username, freeRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %d: %w", id, err)
	}
	return &user, nil
}

func (r *userRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// DecrementClamped clamps at zero inside a single statement. The FROM
// subquery locks the row and captures the pre-update balance before the
// update touches the tuple, so the consumed amount is exact even under
// concurrent decrements.
func (r *userRepository) DecrementClamped(ctx context.Context, id int64, resource repositories.Resource, n int) (int, int, error) {
	column, err := balanceColumn(resource)
	if err != nil {
		return 0, 0, err
	}

	query := fmt.Sprintf(`
        UPDATE users
        SET %[1]s = GREATEST(0, before.balance - $2), updated_at = NOW()
        FROM (SELECT id, %[1]s AS balance FROM users WHERE id = $1 FOR UPDATE) before
        WHERE users.id = before.id
        RETURNING before.balance, users.%[1]s`, column)

	var prev, after int
	if err := r.db.QueryRowContext(ctx, query, id, n).Scan(&prev, &after); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
		}
		return 0, 0, fmt.Errorf("failed to decrement %s: %w", column, err)
	}
	return prev - after, after, nil
}

func (r *userRepository) TopUp(ctx context.Context, id int64, requests, targets int, expiration time.Time) error {
	query := `UPDATE users
              SET requests_left = requests_left + $2,
                  targets_left = targets_left + $3,
                  tier = 'premium',
                  premium_expiration = GREATEST(COALESCE(premium_expiration, $4), $4),
                  updated_at = NOW()
              WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, requests, targets, expiration)
	if err != nil {
		return fmt.Errorf("failed to top up user %d: %w", id, err)
	}
	return requireRow(result, id)
}

func (r *userRepository) ApplyReconciliation(ctx context.Context, id int64, tier models.UserTier, requests, targets int, expiration *time.Time) error {
	query := `UPDATE users
              SET tier = $2, requests_left = $3, targets_left = $4,
                  premium_expiration = $5, updated_at = NOW()
              WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, tier, requests, targets, expiration)
	if err != nil {
		return fmt.Errorf("failed to reconcile user %d: %w", id, err)
	}
	return requireRow(result, id)
}

func (r *userRepository) SetAwaitingTarget(ctx context.Context, id int64, awaiting bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET awaiting_target = $2, updated_at = NOW() WHERE id = $1`, id, awaiting)
	if err != nil {
		return fmt.Errorf("failed to set awaiting_target for user %d: %w", id, err)
	}
	return requireRow(result, id)
}

func (r *userRepository) SetMode(ctx context.Context, id int64, mode models.Mode) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET mode_kind = $2, mode_value = $3, updated_at = NOW() WHERE id = $1`,
		id, string(mode.Kind), mode.Value())
	if err != nil {
		return fmt.Errorf("failed to set mode for user %d: %w", id, err)
	}
	return requireRow(result, id)
}

func (r *userRepository) SetLastRequestAt(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_request_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to set last_request_at for user %d: %w", id, err)
	}
	return requireRow(result, id)
}

func (r *userRepository) ResetToFree(ctx context.Context, id int64, freeRequests int) error {
	query := `UPDATE users
              SET tier = 'free', premium_expiration = NULL, requests_left = $2,
                  targets_left = 0, awaiting_target = FALSE, updated_at = NOW()
              WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, freeRequests)
	if err != nil {
		return fmt.Errorf("failed to reset user %d: %w", id, err)
	}
	return requireRow(result, id)
}

func balanceColumn(resource repositories.Resource) (string, error) {
	switch resource {
	case repositories.ResourceRequests:
		return "requests_left", nil
	case repositories.ResourceTargets:
		return "targets_left", nil
	default:
		return "", fmt.Errorf("unknown resource %q", resource)
	}
}

func requireRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, repositories.ErrUserNotFound)
	}
	return nil
}
