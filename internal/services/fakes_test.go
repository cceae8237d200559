package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ─── topics ───

type fakeTopicStore struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]*models.Topic
	err    error
}

func newFakeTopicStore() *fakeTopicStore {
	return &fakeTopicStore{topics: make(map[uuid.UUID]*models.Topic)}
}

func (s *fakeTopicStore) add(userID uuid.UUID, name string) *models.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Topic{ID: uuid.New(), UserID: userID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.topics[t.ID] = t
	return t
}

func (s *fakeTopicStore) Create(ctx context.Context, t *models.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.topics {
		if existing.UserID == t.UserID && existing.Name == t.Name {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.topics[t.ID] = &cp
	return nil
}

func (s *fakeTopicStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.topics[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTopicStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TopicSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TopicSummary
	for _, t := range s.topics {
		if t.UserID == userID {
			out = append(out, models.TopicSummary{Topic: *t})
		}
	}
	return out, nil
}

func (s *fakeTopicStore) Rename(ctx context.Context, t *models.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.topics {
		if existing.ID != t.ID && existing.UserID == t.UserID && existing.Name == t.Name {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	stored, ok := s.topics[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = t.Name
	return nil
}

func (s *fakeTopicStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.topics, id)
	return nil
}

// ─── flashcards ───

type fakeFlashcardStore struct {
	mu    sync.RWMutex
	cards []*models.Flashcard
	err   error
}

func (s *fakeFlashcardStore) Create(ctx context.Context, f *models.Flashcard) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if f.IdempotencyToken != nil {
		for _, c := range s.cards {
			if c.TopicID == f.TopicID && c.IdempotencyToken != nil && *c.IdempotencyToken == *f.IdempotencyToken {
				*f = *c
				return false, nil
			}
		}
	}
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	cp := *f
	s.cards = append(s.cards, &cp)
	return true, nil
}

func (s *fakeFlashcardStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeFlashcardStore) ListRanked(ctx context.Context, topicID, userID uuid.UUID) ([]models.Flashcard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Flashcard
	for _, c := range s.cards {
		if c.TopicID == topicID {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeFlashcardStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cards {
		if c.ID == id {
			s.cards = append(s.cards[:i], s.cards[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (s *fakeFlashcardStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

// ─── learning sessions ───

type fakeSessionStore struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*models.LearningSession
	responses []models.SessionFlashcardResponse
	err       error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*models.LearningSession)}
}

func (s *fakeSessionStore) Create(ctx context.Context, ls *models.LearningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	ls.ID = uuid.New()
	ls.CreatedAt = time.Now()
	cp := *ls
	s.sessions[ls.ID] = &cp
	return nil
}

func (s *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *ls
	return &cp, nil
}

func (s *fakeSessionStore) CreateResponse(ctx context.Context, r *models.SessionFlashcardResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	s.responses = append(s.responses, *r)
	return nil
}

// ─── users and tokens ───

type fakeUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

type fakeRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{tokens: make(map[string]uuid.UUID)}
}

func (s *fakeRefreshStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
	return nil
}

func (s *fakeRefreshStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return uuid.Nil, redis.Nil
	}
	return id, nil
}

func (s *fakeRefreshStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

type fakeIssuer struct{}

func (fakeIssuer) GenerateAccessToken(userID uuid.UUID, email string) (string, error) {
	return "access-" + userID.String(), nil
}

// ─── generation ───

type fakeJobStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]models.GenerationJob
	queue []uuid.UUID
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]models.GenerationJob)}
}

func (s *fakeJobStore) Save(ctx context.Context, job *models.GenerationJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, redis.Nil
	}
	return &job, nil
}

func (s *fakeJobStore) Enqueue(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, id)
	return nil
}

// scriptedClient returns its responses in order, repeating the last one.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []CompletionRequest
}

type scriptedReply struct {
	text string
	err  error
}

func (c *scriptedClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i].text, c.replies[i].err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
