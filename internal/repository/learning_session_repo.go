package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashcards-backend/internal/models"
)

type LearningSessionRepo struct {
	pool *pgxpool.Pool
}

func NewLearningSessionRepo(pool *pgxpool.Pool) *LearningSessionRepo {
	return &LearningSessionRepo{pool: pool}
}

func (r *LearningSessionRepo) Create(ctx context.Context, s *models.LearningSession) error {
	s.ID = uuid.New()

	query := `INSERT INTO learning_sessions (id, user_id) VALUES ($1, $2) RETURNING created_at`
	return r.pool.QueryRow(ctx, query, s.ID, s.UserID).Scan(&s.CreatedAt)
}

func (r *LearningSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error) {
	s := &models.LearningSession{}
	query := `SELECT id, user_id, created_at FROM learning_sessions WHERE id = $1`

	if err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.UserID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateResponse appends a rating row. Repeated ratings of the same card
// within a session are kept as separate rows.
func (r *LearningSessionRepo) CreateResponse(ctx context.Context, resp *models.SessionFlashcardResponse) error {
	resp.ID = uuid.New()

	query := `INSERT INTO session_flashcard_responses (id, learning_session_id, flashcard_id, user_response)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		resp.ID, resp.LearningSessionID, resp.FlashcardID, string(resp.UserResponse),
	).Scan(&resp.CreatedAt)
}
