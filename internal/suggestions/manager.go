// Package suggestions keeps the unsaved AI flashcard candidates for one
// topic and applies the per-card review actions.
package suggestions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

// DefaultAcceptDelay is how long an accepted card stays visible before it is
// removed from the list.
const DefaultAcceptDelay = 800 * time.Millisecond

var (
	ErrNotFound = errors.New("suggestion not found")
	ErrAccepted = errors.New("suggestion already accepted")
	ErrBusy     = errors.New("suggestion has a request in flight")
	ErrStale    = errors.New("generation superseded by a newer request")
)

type Generator interface {
	GenerateFlashcards(ctx context.Context, sourceText string, count int, topicID uuid.UUID) ([]models.FlashcardPair, error)
	GenerateAlternative(ctx context.Context, topicID uuid.UUID, sourceText, originalFront, originalBack string) (*models.AlternativeFlashcard, error)
}

type Acceptor interface {
	CreateFlashcard(ctx context.Context, topicID uuid.UUID, req models.AcceptFlashcardRequest, source models.FlashcardSource) (*models.Flashcard, error)
}

// ValidationError reports edited text that would be rejected by the store.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := lo.Keys(e.Fields)
	sort.Strings(keys)
	return "invalid flashcard: " + strings.Join(lo.Map(keys, func(k string, _ int) string { return e.Fields[k] }), "; ")
}

type Manager struct {
	generator   Generator
	acceptor    Acceptor
	acceptDelay time.Duration
	log         logrus.FieldLogger

	mu         sync.Mutex
	generation uint64
	topicID    uuid.UUID
	sourceText string
	items      []models.FlashcardSuggestion
	busy       map[uuid.UUID]bool
	timers     map[uuid.UUID]*time.Timer
	errMsg     string
}

func NewManager(generator Generator, acceptor Acceptor, acceptDelay time.Duration, log logrus.FieldLogger) *Manager {
	return &Manager{
		generator:   generator,
		acceptor:    acceptor,
		acceptDelay: acceptDelay,
		log:         log.WithField("component", "suggestions"),
		busy:        make(map[uuid.UUID]bool),
		timers:      make(map[uuid.UUID]*time.Timer),
	}
}

// Generate replaces the whole list with fresh suggestions. On failure the
// list is cleared and the error kept for Err. Only the latest call may
// change the list; older ones return ErrStale when they resolve.
func (m *Manager) Generate(ctx context.Context, sourceText string, topicID uuid.UUID, count int) error {
	m.mu.Lock()
	m.generation++
	generation := m.generation
	m.mu.Unlock()

	pairs, err := m.generator.GenerateFlashcards(ctx, sourceText, count, topicID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		return ErrStale
	}
	m.stopTimers()
	m.busy = make(map[uuid.UUID]bool)
	m.topicID = topicID
	m.sourceText = sourceText

	if err != nil {
		m.items = nil
		m.errMsg = err.Error()
		return err
	}

	items := make([]models.FlashcardSuggestion, 0, len(pairs))
	for _, p := range pairs {
		token, err := gonanoid.New()
		if err != nil {
			m.items = nil
			m.errMsg = err.Error()
			return fmt.Errorf("generate idempotency token: %w", err)
		}
		items = append(items, models.FlashcardSuggestion{
			ID:               uuid.New(),
			Front:            p.Front,
			Back:             p.Back,
			OriginalFront:    p.Front,
			OriginalBack:     p.Back,
			IdempotencyToken: token,
		})
	}
	m.items = items
	m.errMsg = ""
	m.log.WithFields(logrus.Fields{"topic_id": topicID, "count": len(items)}).Debug("suggestions generated")
	return nil
}

// AcceptOne stores the suggestion as an ai-generated card. It is marked
// accepted at once and removed after the accept delay.
func (m *Manager) AcceptOne(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, err := m.claim(id)
	topicID, generation := m.topicID, m.generation
	m.mu.Unlock()
	if err != nil {
		return err
	}

	req := models.AcceptFlashcardRequest{Front: s.Front, Back: s.Back, IdempotencyToken: s.IdempotencyToken}
	_, err = m.acceptor.CreateFlashcard(ctx, topicID, req, models.SourceAIGenerated)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, id)
	idx := m.indexOf(id)
	if m.generation != generation || idx < 0 {
		// The list was replaced while the call was in flight.
		return err
	}
	if err != nil {
		m.errMsg = err.Error()
		return err
	}

	m.items[idx].Accepted = true
	m.items[idx].IsEditing = false
	m.errMsg = ""
	m.scheduleRemoval(id)
	return nil
}

// RegenerateOne swaps a single suggestion for an alternative version.
func (m *Manager) RegenerateOne(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, err := m.claim(id)
	topicID, sourceText, generation := m.topicID, m.sourceText, m.generation
	m.mu.Unlock()
	if err != nil {
		return err
	}

	alt, err := m.generator.GenerateAlternative(ctx, topicID, sourceText, s.OriginalFront, s.OriginalBack)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, id)
	idx := m.indexOf(id)
	if m.generation != generation || idx < 0 {
		return err
	}
	if err != nil {
		m.errMsg = err.Error()
		return err
	}

	token, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate idempotency token: %w", err)
	}
	item := &m.items[idx]
	item.Front, item.Back = alt.Front, alt.Back
	item.OriginalFront, item.OriginalBack = alt.Front, alt.Back
	item.IsEditing = false
	item.IdempotencyToken = token
	m.errMsg = ""
	return nil
}

// ToggleEdit flips edit mode for one suggestion only.
func (m *Manager) ToggleEdit(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	if m.items[idx].Accepted {
		return ErrAccepted
	}
	m.items[idx].IsEditing = !m.items[idx].IsEditing
	return nil
}

// SaveEdit stores the edited text as an ai-edited card and drops the
// suggestion. The text is checked locally first; on any failure the edit
// stays in place so it can be retried.
func (m *Manager) SaveEdit(ctx context.Context, id uuid.UUID, front, back string) error {
	pair := models.FlashcardPair{Front: front, Back: back}
	if fields := pair.Validate(); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	m.mu.Lock()
	s, err := m.claim(id)
	if err == nil {
		m.items[m.indexOf(id)].Front = front
		m.items[m.indexOf(id)].Back = back
	}
	topicID, generation := m.topicID, m.generation
	m.mu.Unlock()
	if err != nil {
		return err
	}

	// Edited cards get their own token so a stored original cannot be
	// replayed in place of the edit.
	req := models.AcceptFlashcardRequest{Front: front, Back: back, IdempotencyToken: s.IdempotencyToken + "-edited"}
	_, err = m.acceptor.CreateFlashcard(ctx, topicID, req, models.SourceAIEdited)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, id)
	idx := m.indexOf(id)
	if m.generation != generation || idx < 0 {
		return err
	}
	if err != nil {
		m.errMsg = err.Error()
		return err
	}
	m.remove(id)
	m.errMsg = ""
	return nil
}

// CancelEdit restores the generated text and leaves edit mode. It never
// touches the store and is safe to repeat.
func (m *Manager) CancelEdit(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	item := &m.items[idx]
	item.Front, item.Back = item.OriginalFront, item.OriginalBack
	item.IsEditing = false
	return nil
}

// Suggestions returns a copy of the current list.
func (m *Manager) Suggestions() []models.FlashcardSuggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FlashcardSuggestion, len(m.items))
	copy(out, m.items)
	return out
}

func (m *Manager) Get(id uuid.UUID) (models.FlashcardSuggestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return models.FlashcardSuggestion{}, false
	}
	return m.items[idx], true
}

// Err is the message of the last failed action, or "".
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Close cancels pending removals and drops accepted items immediately.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimers()
	m.items = lo.Reject(m.items, func(s models.FlashcardSuggestion, _ int) bool { return s.Accepted })
}

// claim marks id busy and returns a copy. Callers hold m.mu.
func (m *Manager) claim(id uuid.UUID) (models.FlashcardSuggestion, error) {
	idx := m.indexOf(id)
	if idx < 0 {
		return models.FlashcardSuggestion{}, ErrNotFound
	}
	if m.items[idx].Accepted {
		return models.FlashcardSuggestion{}, ErrAccepted
	}
	if m.busy[id] {
		return models.FlashcardSuggestion{}, ErrBusy
	}
	m.busy[id] = true
	return m.items[idx], nil
}

func (m *Manager) indexOf(id uuid.UUID) int {
	_, idx, ok := lo.FindIndexOf(m.items, func(s models.FlashcardSuggestion) bool { return s.ID == id })
	if !ok {
		return -1
	}
	return idx
}

func (m *Manager) remove(id uuid.UUID) {
	m.items = lo.Reject(m.items, func(s models.FlashcardSuggestion, _ int) bool { return s.ID == id })
}

func (m *Manager) scheduleRemoval(id uuid.UUID) {
	if m.acceptDelay <= 0 {
		m.remove(id)
		return
	}
	m.timers[id] = time.AfterFunc(m.acceptDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.timers[id]; !ok {
			return
		}
		delete(m.timers, id)
		m.remove(id)
	})
}

func (m *Manager) stopTimers() {
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
