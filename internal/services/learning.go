package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

const sessionNotFoundMessage = "Learning session not found or access denied"

type LearningSessionService struct {
	sessions   LearningSessionStore
	topics     TopicStore
	flashcards FlashcardStore
	events     EventPublisher
	log        logrus.FieldLogger
}

func NewLearningSessionService(sessions LearningSessionStore, topics TopicStore, flashcards FlashcardStore, events EventPublisher, log logrus.FieldLogger) *LearningSessionService {
	return &LearningSessionService{
		sessions:   sessions,
		topics:     topics,
		flashcards: flashcards,
		events:     publisherOrNop(events),
		log:        log,
	}
}

func (s *LearningSessionService) Create(ctx context.Context, userID uuid.UUID) (*models.LearningSession, error) {
	if userID == uuid.Nil {
		return nil, &UnauthorizedError{Message: "Not signed in"}
	}

	session := &models.LearningSession{UserID: userID}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, &PersistenceError{Op: "create learning session", Err: err}
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": session.ID}).Debug("learning session started")
	return session, nil
}

// RecordResponse appends one rating to a session the user owns, for a card
// in one of the user's topics.
func (s *LearningSessionService) RecordResponse(ctx context.Context, userID uuid.UUID, req models.RecordResponseRequest) (*models.SessionFlashcardResponse, error) {
	fields := make(map[string]string)
	if req.SessionID == uuid.Nil {
		fields["session_id"] = "session_id is required"
	}
	if req.FlashcardID == uuid.Nil {
		fields["flashcard_id"] = "flashcard_id is required"
	}
	if !req.UserResponse.Valid() {
		fields["user_response"] = "user_response must be one of Again, Hard, Easy"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: sessionNotFoundMessage}
		}
		return nil, &PersistenceError{Op: "load learning session", Err: err}
	}
	if session.UserID != userID {
		return nil, &NotFoundError{Message: sessionNotFoundMessage}
	}
	if err := s.checkFlashcardOwner(ctx, userID, req.FlashcardID); err != nil {
		return nil, err
	}

	resp := &models.SessionFlashcardResponse{
		LearningSessionID: req.SessionID,
		FlashcardID:       req.FlashcardID,
		UserResponse:      req.UserResponse,
	}
	if err := s.sessions.CreateResponse(ctx, resp); err != nil {
		if isForeignKeyViolation(err) {
			return nil, &NotFoundError{Message: "Flashcard not found"}
		}
		return nil, &PersistenceError{Op: "record session response", Err: err}
	}

	s.events.Publish(ctx, userID, models.WSMessage{Type: models.EventSessionResponseRecorded, Payload: resp})
	return resp, nil
}

func (s *LearningSessionService) checkFlashcardOwner(ctx context.Context, userID, flashcardID uuid.UUID) error {
	card, err := s.flashcards.GetByID(ctx, flashcardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Flashcard not found"}
		}
		return &PersistenceError{Op: "load flashcard", Err: err}
	}
	if _, err := ownedTopic(ctx, s.topics, userID, card.TopicID); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return &NotFoundError{Message: "Flashcard not found"}
		}
		return err
	}
	return nil
}
