package database

import (
	"context"
	"database/sql"
	"fmt"

	"swapbot/internal/domain/models"
	"swapbot/internal/domain/repositories"
)

type runLogRepository struct {
	db *PostgresDB
}

func NewRunLogRepository(db *PostgresDB) repositories.RunLogRepository {
	return &runLogRepository{db: db}
}

func (r *runLogRepository) RecordRun(ctx context.Context, run *models.ReconciliationRun) error {
	query := `INSERT INTO reconciliation_runs (job_name, ran_at, status, details)
              VALUES ($1, $2, $3, $4)
              RETURNING id`

	err := r.db.QueryRowContext(ctx, query, run.JobName, run.RanAt, run.Status, run.Details).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (r *runLogRepository) LastRun(ctx context.Context, jobName string) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	query := `SELECT id, job_name, ran_at, status, details
              FROM reconciliation_runs
              WHERE job_name = $1
              ORDER BY ran_at DESC, id DESC
              LIMIT 1`

	err := r.db.GetContext(ctx, &run, query, jobName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last run for %s: %w", jobName, err)
	}
	return &run, nil
}
