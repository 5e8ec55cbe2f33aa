package swapworker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"swapbot/internal/domain/services"
	"swapbot/internal/infrastructure/queue"
)

// Pool pulls photo jobs off the queue and runs each one through the
// pipeline. Jobs are independent; a failed job is logged and dropped,
// never requeued.
type Pool struct {
	photoQueue *queue.PhotoQueue
	pipeline   *services.PipelineService
	count      int
	logger     *slog.Logger
}

func NewPool(photoQueue *queue.PhotoQueue, pipeline *services.PipelineService, count int, logger *slog.Logger) *Pool {
	if count <= 0 {
		count = 1
	}
	return &Pool{
		photoQueue: photoQueue,
		pipeline:   pipeline,
		count:      count,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.workerLoop(ctx, workerID)
		}(i + 1)
	}

	<-ctx.Done()
	p.logger.Info("shutting down workers")
	wg.Wait()
	p.logger.Info("all workers stopped")
}

func (p *Pool) workerLoop(ctx context.Context, workerID int) {
	p.logger.Info("worker ready", "worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker shutting down", "worker_id", workerID)
			return
		default:
			job, err := p.photoQueue.Dequeue(ctx)
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					p.logger.Error("queue error", "worker_id", workerID, "error", err)
					time.Sleep(500 * time.Millisecond)
				}
				continue
			}

			start := time.Now()
			result, err := p.pipeline.HandlePhoto(ctx, *job)
			if err != nil {
				p.logger.Error("photo job aborted",
					"worker_id", workerID,
					"user_id", job.UserID,
					"submission_id", job.SubmissionID,
					"error", err)
				continue
			}

			p.logger.Info("photo job finished",
				"worker_id", workerID,
				"user_id", job.UserID,
				"submission_id", job.SubmissionID,
				"state", result.State,
				"failure", result.Failure,
				"delivered", len(result.Delivered),
				"duration_ms", time.Since(start).Milliseconds())
		}
	}
}
