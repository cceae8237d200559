package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashcards-backend/internal/models"
)

type FlashcardRepo struct {
	pool   *pgxpool.Pool
	ranker Ranker
}

func NewFlashcardRepo(pool *pgxpool.Pool, ranker Ranker) *FlashcardRepo {
	if ranker == nil {
		ranker = InsertionOrder
	}
	return &FlashcardRepo{pool: pool, ranker: ranker}
}

// Create inserts f. When f carries an idempotency token that was already
// used in the topic, nothing is written, f is filled from the stored row
// and created is false.
func (r *FlashcardRepo) Create(ctx context.Context, f *models.Flashcard) (created bool, err error) {
	f.ID = uuid.New()

	query := `INSERT INTO flashcards (id, topic_id, front, back, source, idempotency_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (topic_id, idempotency_token) DO NOTHING
		RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		f.ID, f.TopicID, f.Front, f.Back, string(f.Source), f.IdempotencyToken,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || f.IdempotencyToken == nil {
		return false, err
	}

	existing, err := r.getByToken(ctx, f.TopicID, *f.IdempotencyToken)
	if err != nil {
		return false, err
	}
	*f = *existing
	return false, nil
}

func (r *FlashcardRepo) getByToken(ctx context.Context, topicID uuid.UUID, token string) (*models.Flashcard, error) {
	query := `SELECT id, topic_id, front, back, source, idempotency_token, created_at, updated_at
		FROM flashcards WHERE topic_id = $1 AND idempotency_token = $2`
	return scanFlashcard(r.pool.QueryRow(ctx, query, topicID, token))
}

func (r *FlashcardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Flashcard, error) {
	query := `SELECT id, topic_id, front, back, source, idempotency_token, created_at, updated_at
		FROM flashcards WHERE id = $1`
	return scanFlashcard(r.pool.QueryRow(ctx, query, id))
}

func scanFlashcard(row pgx.Row) (*models.Flashcard, error) {
	f := &models.Flashcard{}
	var source string
	if err := row.Scan(&f.ID, &f.TopicID, &f.Front, &f.Back, &source, &f.IdempotencyToken, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Source = models.FlashcardSource(source)
	return f, nil
}

// ListRanked returns the topic's cards in the order chosen by the
// repository's ranker, using userID's rating history.
func (r *FlashcardRepo) ListRanked(ctx context.Context, topicID, userID uuid.UUID) ([]models.Flashcard, error) {
	query := `
		SELECT f.id, f.topic_id, f.front, f.back, f.source, f.created_at, f.updated_at,
			lr.user_response, lr.created_at, COALESCE(rc.cnt, 0)
		FROM flashcards f
		LEFT JOIN LATERAL (
			SELECT r.user_response, r.created_at
			FROM session_flashcard_responses r
			JOIN learning_sessions s ON s.id = r.learning_session_id
			WHERE r.flashcard_id = f.id AND s.user_id = $2
			ORDER BY r.created_at DESC
			LIMIT 1
		) lr ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS cnt
			FROM session_flashcard_responses r
			JOIN learning_sessions s ON s.id = r.learning_session_id
			WHERE r.flashcard_id = f.id AND s.user_id = $2
		) rc ON TRUE
		WHERE f.topic_id = $1
		ORDER BY f.created_at, f.id`

	rows, err := r.pool.Query(ctx, query, topicID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranked []models.RankedFlashcard
	for rows.Next() {
		var (
			c            models.RankedFlashcard
			source       string
			lastResponse *string
			lastAt       *time.Time
		)
		if err := rows.Scan(&c.ID, &c.TopicID, &c.Front, &c.Back, &source, &c.CreatedAt, &c.UpdatedAt,
			&lastResponse, &lastAt, &c.ResponseCount); err != nil {
			return nil, err
		}
		c.Source = models.FlashcardSource(source)
		if lastResponse != nil {
			rating := models.Rating(*lastResponse)
			c.LastResponse = &rating
			c.LastRespondedAt = lastAt
		}
		ranked = append(ranked, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cards := r.ranker.Rank(ranked)
	if cards == nil {
		cards = []models.Flashcard{}
	}
	return cards, nil
}

func (r *FlashcardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM flashcards WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
