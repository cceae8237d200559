package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flashcards-backend/internal/models"
)

const (
	GenerationQueue  = "queue:flashcard-generation"
	generationJobTTL = 24 * time.Hour
)

// GenerationJobRepo keeps async generation jobs in Redis. Records expire
// after a day; the queue holds job ids only.
type GenerationJobRepo struct {
	redis *redis.Client
}

func NewGenerationJobRepo(redisClient *redis.Client) *GenerationJobRepo {
	return &GenerationJobRepo{redis: redisClient}
}

func generationJobKey(id uuid.UUID) string {
	return fmt.Sprintf("generation_job:%s", id)
}

func (r *GenerationJobRepo) Save(ctx context.Context, job *models.GenerationJob) error {
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode generation job: %w", err)
	}
	return r.redis.Set(ctx, generationJobKey(job.ID), data, generationJobTTL).Err()
}

// Get returns redis.Nil when the job is unknown or expired.
func (r *GenerationJobRepo) Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	data, err := r.redis.Get(ctx, generationJobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var job models.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode generation job %s: %w", id, err)
	}
	return &job, nil
}

func (r *GenerationJobRepo) Enqueue(ctx context.Context, id uuid.UUID) error {
	return r.redis.LPush(ctx, GenerationQueue, id.String()).Err()
}
