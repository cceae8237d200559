package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

// AcceptanceService persists flashcards the user decided to keep, whether
// typed by hand, taken as generated or edited first.
type AcceptanceService struct {
	topics     TopicStore
	flashcards FlashcardStore
	events     EventPublisher
	log        logrus.FieldLogger
}

func NewAcceptanceService(topics TopicStore, flashcards FlashcardStore, events EventPublisher, log logrus.FieldLogger) *AcceptanceService {
	return &AcceptanceService{
		topics:     topics,
		flashcards: flashcards,
		events:     publisherOrNop(events),
		log:        log,
	}
}

// Create stores one card in the user's topic. When the request carries an
// idempotency token that was already used for this topic, the stored card is
// returned with created=false.
func (s *AcceptanceService) Create(ctx context.Context, userID, topicID uuid.UUID, req models.AcceptFlashcardRequest, source models.FlashcardSource) (*models.Flashcard, bool, error) {
	if !source.Valid() {
		return nil, false, &ValidationError{Fields: map[string]string{"source": "source must be one of manual, ai-generated, ai-edited"}}
	}

	fields := models.FlashcardPair{Front: req.Front, Back: req.Back}.Validate()
	token := strings.TrimSpace(req.IdempotencyToken)
	if len(token) > models.IdempotencyTokenMaxLength {
		fields["idempotency_token"] = "idempotency_token must be at most 64 characters"
	}
	if len(fields) > 0 {
		return nil, false, &ValidationError{Fields: fields}
	}

	if _, err := ownedTopic(ctx, s.topics, userID, topicID); err != nil {
		return nil, false, err
	}

	card := &models.Flashcard{
		TopicID: topicID,
		Front:   req.Front,
		Back:    req.Back,
		Source:  source,
	}
	if token != "" {
		card.IdempotencyToken = &token
	}

	created, err := s.flashcards.Create(ctx, card)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, false, &NotFoundError{Message: topicNotFoundMessage}
		}
		return nil, false, &PersistenceError{Op: "create flashcard", Err: err}
	}

	logEntry := s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"topic_id":     topicID,
		"flashcard_id": card.ID,
		"source":       source,
	})
	if !created {
		logEntry.Info("flashcard accept replayed")
		return card, false, nil
	}

	logEntry.Info("flashcard created")
	s.events.Publish(ctx, userID, models.WSMessage{Type: models.EventFlashcardCreated, Payload: card})
	return card, true, nil
}
