// Package study drives one learning session: pick a topic, walk its cards
// in store order, reveal, rate, finish.
package study

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"flashcards-backend/internal/models"
)

type State string

const (
	SelectingTopic    State = "SELECTING_TOPIC"
	LoadingFlashcards State = "LOADING_FLASHCARDS"
	ShowingFront      State = "SHOWING_FRONT"
	ShowingBack       State = "SHOWING_BACK"
	Finished          State = "FINISHED"
	Failed            State = "ERROR"
)

// ErrNoFlashcards is reported when the chosen topic has no cards.
var ErrNoFlashcards = errors.New("no flashcards available for this topic")

// ErrInvalidTransition is returned when an action is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrStale means Reset ran while the call was in flight; its result was dropped.
var ErrStale = errors.New("session was reset")

// Backend is what the machine needs from the API.
type Backend interface {
	GetTopicDetail(ctx context.Context, topicID uuid.UUID) (*models.TopicDetail, error)
	CreateLearningSession(ctx context.Context) (*models.LearningSessionCreated, error)
	RecordSessionResponse(ctx context.Context, sessionID, flashcardID uuid.UUID, rating models.Rating) (*models.SessionResponseCreated, error)
}

// Response is one rating given during the session.
type Response struct {
	FlashcardID uuid.UUID
	Rating      models.Rating
	Synced      bool
}

// Snapshot is a read-only view of the machine.
type Snapshot struct {
	State     State
	TopicID   uuid.UUID
	TopicName string
	Index     int
	Total     int
	Current   *models.Flashcard
	SessionID uuid.UUID
	Err       string
	// Unsynced counts ratings that were not stored.
	Unsynced int
}

type Machine struct {
	backend Backend
	log     logrus.FieldLogger

	mu           sync.Mutex
	state        State
	epoch        uint64
	topicID      uuid.UUID
	topicName    string
	cards        []models.Flashcard
	index        int
	rateInFlight bool
	sessionID    uuid.UUID
	errMsg       string
	responses    []Response
	unsynced     int
}

func NewMachine(backend Backend, log logrus.FieldLogger) *Machine {
	return &Machine{
		backend: backend,
		log:     log.WithField("component", "study"),
		state:   SelectingTopic,
	}
}

func (m *Machine) transitionError(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, m.state)
}

// SelectTopic loads the topic's cards and opens a learning session in
// parallel. A failed session open is logged and study continues without
// one. The call blocks until both finish.
func (m *Machine) SelectTopic(ctx context.Context, topicID uuid.UUID) error {
	m.mu.Lock()
	if m.state != SelectingTopic {
		defer m.mu.Unlock()
		return m.transitionError("select topic")
	}
	m.state = LoadingFlashcards
	m.topicID = topicID
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	var (
		detail  *models.TopicDetail
		session *models.LearningSessionCreated
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := m.backend.GetTopicDetail(gctx, topicID)
		if err != nil {
			return err
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		s, err := m.backend.CreateLearningSession(ctx)
		if err != nil {
			m.log.WithError(err).WithField("topic_id", topicID).Warn("failed to create learning session, ratings will not be saved")
			return nil
		}
		session = s
		return nil
	})
	loadErr := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return ErrStale
	}
	if session != nil {
		m.sessionID = session.SessionID
	}

	switch {
	case loadErr != nil:
		m.fail(loadErr.Error())
		return loadErr
	case len(detail.Flashcards) == 0:
		m.fail(ErrNoFlashcards.Error())
		return ErrNoFlashcards
	}

	m.topicName = detail.Name
	m.cards = detail.Flashcards
	m.index = 0
	m.state = ShowingFront
	m.log.WithFields(logrus.Fields{"topic_id": topicID, "cards": len(m.cards)}).Info("study session started")
	return nil
}

func (m *Machine) fail(msg string) {
	m.state = Failed
	m.errMsg = msg
	m.cards = nil
}

func (m *Machine) RevealAnswer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ShowingFront {
		return m.transitionError("reveal answer")
	}
	m.state = ShowingBack
	return nil
}

// Rate stores the rating for the current card and moves on. Storing is best
// effort: a failure is logged, counted as unsynced, and does not stop the
// session.
func (m *Machine) Rate(ctx context.Context, rating models.Rating) error {
	if !rating.Valid() {
		return fmt.Errorf("rating must be one of Again, Hard, Easy, got %q", rating)
	}

	m.mu.Lock()
	if m.state != ShowingBack || m.rateInFlight {
		defer m.mu.Unlock()
		return m.transitionError("rate")
	}
	m.rateInFlight = true
	card := m.cards[m.index]
	sessionID := m.sessionID
	epoch := m.epoch
	m.mu.Unlock()

	synced := false
	if sessionID != uuid.Nil {
		if _, err := m.backend.RecordSessionResponse(ctx, sessionID, card.ID, rating); err != nil {
			m.log.WithError(err).WithField("flashcard_id", card.ID).Warn("failed to save rating")
		} else {
			synced = true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return ErrStale
	}
	m.rateInFlight = false

	m.responses = append(m.responses, Response{FlashcardID: card.ID, Rating: rating, Synced: synced})
	if !synced {
		m.unsynced++
	}

	if m.index+1 < len(m.cards) {
		m.index++
		m.state = ShowingFront
		return nil
	}
	m.state = Finished
	m.log.WithFields(logrus.Fields{
		"topic_id": m.topicID,
		"cards":    len(m.cards),
		"unsynced": m.unsynced,
	}).Info("study session finished")
	return nil
}

// Reset returns to topic selection from any state. Calls still in flight
// are discarded when they return.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.state = SelectingTopic
	m.topicID = uuid.Nil
	m.topicName = ""
	m.cards = nil
	m.index = 0
	m.rateInFlight = false
	m.sessionID = uuid.Nil
	m.errMsg = ""
	m.responses = nil
	m.unsynced = 0
}

// EndSession acknowledges a finished session and clears the local rating
// cache. The state stays FINISHED.
func (m *Machine) EndSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Finished {
		return m.transitionError("end session")
	}
	m.responses = nil
	return nil
}

// Responses returns the ratings given so far in this session.
func (m *Machine) Responses() []Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Response, len(m.responses))
	copy(out, m.responses)
	return out
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:     m.state,
		TopicID:   m.topicID,
		TopicName: m.topicName,
		Index:     m.index,
		Total:     len(m.cards),
		SessionID: m.sessionID,
		Err:       m.errMsg,
		Unsynced:  m.unsynced,
	}
	if m.state == ShowingFront || m.state == ShowingBack {
		card := m.cards[m.index]
		s.Current = &card
	}
	return s
}
