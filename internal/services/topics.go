package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

const topicNotFoundMessage = "Topic not found or access denied"

type TopicService struct {
	topics     TopicStore
	flashcards FlashcardStore
	events     EventPublisher
	log        logrus.FieldLogger
}

func NewTopicService(topics TopicStore, flashcards FlashcardStore, events EventPublisher, log logrus.FieldLogger) *TopicService {
	return &TopicService{
		topics:     topics,
		flashcards: flashcards,
		events:     publisherOrNop(events),
		log:        log,
	}
}

// ownedTopic loads a topic and hides other users' topics behind NotFound.
func ownedTopic(ctx context.Context, topics TopicStore, userID, topicID uuid.UUID) (*models.Topic, error) {
	topic, err := topics.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: topicNotFoundMessage}
		}
		return nil, &PersistenceError{Op: "load topic", Err: err}
	}
	if topic.UserID != userID {
		return nil, &NotFoundError{Message: topicNotFoundMessage}
	}
	return topic, nil
}

func validateTopicName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", &ValidationError{Fields: map[string]string{"name": "name is required"}}
	case utf8.RuneCountInString(name) > models.TopicNameMaxLength:
		return "", &ValidationError{Fields: map[string]string{"name": "name must be at most 100 characters"}}
	}
	return name, nil
}

func (s *TopicService) List(ctx context.Context, userID uuid.UUID) ([]models.TopicSummary, error) {
	topics, err := s.topics.ListByUser(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list topics", Err: err}
	}
	return topics, nil
}

func (s *TopicService) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Topic, error) {
	name, err := validateTopicName(name)
	if err != nil {
		return nil, err
	}

	topic := &models.Topic{UserID: userID, Name: name}
	if err := s.topics.Create(ctx, topic); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Message: "A topic with this name already exists."}
		}
		return nil, &PersistenceError{Op: "create topic", Err: err}
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "topic_id": topic.ID}).Info("topic created")
	s.events.Publish(ctx, userID, models.WSMessage{Type: models.EventTopicCreated, Payload: topic})
	return topic, nil
}

// GetDetail returns the topic with its cards in study order.
func (s *TopicService) GetDetail(ctx context.Context, userID, topicID uuid.UUID) (*models.TopicDetail, error) {
	topic, err := ownedTopic(ctx, s.topics, userID, topicID)
	if err != nil {
		return nil, err
	}

	cards, err := s.flashcards.ListRanked(ctx, topicID, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "load flashcards", Err: err}
	}
	if cards == nil {
		cards = []models.Flashcard{}
	}

	return &models.TopicDetail{Topic: *topic, Flashcards: cards}, nil
}

func (s *TopicService) ListFlashcards(ctx context.Context, userID, topicID uuid.UUID) ([]models.Flashcard, error) {
	detail, err := s.GetDetail(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}
	return detail.Flashcards, nil
}

func (s *TopicService) Rename(ctx context.Context, userID, topicID uuid.UUID, name string) (*models.Topic, error) {
	name, err := validateTopicName(name)
	if err != nil {
		return nil, err
	}

	topic, err := ownedTopic(ctx, s.topics, userID, topicID)
	if err != nil {
		return nil, err
	}

	topic.Name = name
	if err := s.topics.Rename(ctx, topic); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Message: "A topic with this name already exists."}
		}
		return nil, &PersistenceError{Op: "rename topic", Err: err}
	}
	return topic, nil
}

// Delete removes the topic and, through the schema, its cards.
func (s *TopicService) Delete(ctx context.Context, userID, topicID uuid.UUID) error {
	if _, err := ownedTopic(ctx, s.topics, userID, topicID); err != nil {
		return err
	}
	if err := s.topics.Delete(ctx, topicID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: topicNotFoundMessage}
		}
		return &PersistenceError{Op: "delete topic", Err: err}
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "topic_id": topicID}).Info("topic deleted")
	return nil
}

func (s *TopicService) DeleteFlashcard(ctx context.Context, userID, topicID, flashcardID uuid.UUID) error {
	if _, err := ownedTopic(ctx, s.topics, userID, topicID); err != nil {
		return err
	}

	card, err := s.flashcards.GetByID(ctx, flashcardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Flashcard not found"}
		}
		return &PersistenceError{Op: "load flashcard", Err: err}
	}
	if card.TopicID != topicID {
		return &NotFoundError{Message: "Flashcard not found"}
	}

	if err := s.flashcards.Delete(ctx, flashcardID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Flashcard not found"}
		}
		return &PersistenceError{Op: "delete flashcard", Err: err}
	}
	return nil
}
