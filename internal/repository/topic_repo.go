package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashcards-backend/internal/models"
)

type TopicRepo struct {
	pool *pgxpool.Pool
}

func NewTopicRepo(pool *pgxpool.Pool) *TopicRepo {
	return &TopicRepo{pool: pool}
}

// Create inserts a topic. A duplicate name for the same user fails with
// a *pgconn.PgError carrying code 23505.
func (r *TopicRepo) Create(ctx context.Context, t *models.Topic) error {
	t.ID = uuid.New()

	query := `INSERT INTO topics (id, user_id, name)
		VALUES ($1, $2, $3) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query, t.ID, t.UserID, t.Name).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TopicRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	t := &models.Topic{}
	query := `SELECT id, user_id, name, created_at, updated_at FROM topics WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TopicRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TopicSummary, error) {
	query := `
		SELECT t.id, t.user_id, t.name, t.created_at, t.updated_at, COUNT(f.id)
		FROM topics t
		LEFT JOIN flashcards f ON f.topic_id = t.id
		WHERE t.user_id = $1
		GROUP BY t.id
		ORDER BY t.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	topics := []models.TopicSummary{}
	for rows.Next() {
		var s models.TopicSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.CreatedAt, &s.UpdatedAt, &s.FlashcardCount); err != nil {
			return nil, err
		}
		topics = append(topics, s)
	}
	return topics, rows.Err()
}

func (r *TopicRepo) Rename(ctx context.Context, t *models.Topic) error {
	query := `UPDATE topics SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, t.ID, t.Name).Scan(&t.UpdatedAt)
}

func (r *TopicRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM topics WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
