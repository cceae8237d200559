package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flashcards-backend/internal/models"
)

// The interfaces below are the persistence boundary. Implementations
// return pgx.ErrNoRows for missing rows.

type TopicStore interface {
	Create(ctx context.Context, t *models.Topic) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Topic, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TopicSummary, error)
	Rename(ctx context.Context, t *models.Topic) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type FlashcardStore interface {
	// Create reports created=false when the idempotency token was already used.
	Create(ctx context.Context, f *models.Flashcard) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Flashcard, error)
	// ListRanked returns cards in study order for userID.
	ListRanked(ctx context.Context, topicID, userID uuid.UUID) ([]models.Flashcard, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type LearningSessionStore interface {
	Create(ctx context.Context, s *models.LearningSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error)
	CreateResponse(ctx context.Context, r *models.SessionFlashcardResponse) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type RefreshTokenStore interface {
	Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	// Lookup returns redis.Nil for unknown or expired tokens.
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Delete(ctx context.Context, token string) error
}

// GenerationJobStore returns redis.Nil from Get for unknown jobs.
type GenerationJobStore interface {
	Save(ctx context.Context, job *models.GenerationJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	Enqueue(ctx context.Context, id uuid.UUID) error
}
