package repositories

import (
	"context"

	"swapbot/internal/domain/models"
)

// RunLogRepository records reconciler passes. The latest entry for a job
// is what makes repeated invocations within one interval a no-op.
type RunLogRepository interface {
	RecordRun(ctx context.Context, run *models.ReconciliationRun) error
	LastRun(ctx context.Context, jobName string) (*models.ReconciliationRun, error)
}
