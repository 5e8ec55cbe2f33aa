package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swapbot/internal/domain/models"
)

const photoQueueKey = "photo_jobs"

// PhotoQueue hands inbound photo submissions from the gateway to the
// worker pool.
type PhotoQueue struct {
	client *redis.Client
}

func NewPhotoQueue(redisClient *redis.Client) *PhotoQueue {
	return &PhotoQueue{client: redisClient}
}

func (q *PhotoQueue) Enqueue(ctx context.Context, req models.PhotoRequest) error {
	jobData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal photo job: %w", err)
	}

	return q.client.LPush(ctx, photoQueueKey, jobData).Err()
}

// Dequeue blocks up to 30s for the next job. A redis.Nil error means
// the wait simply timed out.
func (q *PhotoQueue) Dequeue(ctx context.Context) (*models.PhotoRequest, error) {
	result, err := q.client.BRPop(ctx, 30*time.Second, photoQueueKey).Result()
	if err != nil {
		return nil, err
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("invalid queue result")
	}

	var req models.PhotoRequest
	if err := json.Unmarshal([]byte(result[1]), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal photo job: %w", err)
	}

	return &req, nil
}

func (q *PhotoQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, photoQueueKey).Result()
}
