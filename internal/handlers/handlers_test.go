package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/models"
	"flashcards-backend/internal/services"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRequest(method, target string, body interface{}, userID uuid.UUID, params map[string]string) *http.Request {
	var rdr io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set(middleware.RequestIDHeader, "req-1")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var env models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error
}

type stubAcceptance struct {
	card    *models.Flashcard
	created bool
	err     error

	gotSource models.FlashcardSource
	gotReq    models.AcceptFlashcardRequest
}

func (s *stubAcceptance) Create(ctx context.Context, userID, topicID uuid.UUID, req models.AcceptFlashcardRequest, source models.FlashcardSource) (*models.Flashcard, bool, error) {
	s.gotSource = source
	s.gotReq = req
	return s.card, s.created, s.err
}

func TestFlashcardHandler_SourcePerRoute(t *testing.T) {
	topicID := uuid.New()
	tests := []struct {
		name   string
		call   func(h *FlashcardHandler) http.HandlerFunc
		source models.FlashcardSource
	}{
		{"accept", func(h *FlashcardHandler) http.HandlerFunc { return h.Accept }, models.SourceAIGenerated},
		{"accept edited", func(h *FlashcardHandler) http.HandlerFunc { return h.AcceptEdited }, models.SourceAIEdited},
		{"manual", func(h *FlashcardHandler) http.HandlerFunc { return h.CreateManual }, models.SourceManual},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAcceptance{card: &models.Flashcard{ID: uuid.New(), TopicID: topicID}, created: true}
			h := NewFlashcardHandler(svc, testLogger())

			body := map[string]string{"front": "Q", "back": "A", "source": "manual"}
			req := newRequest(http.MethodPost, "/", body, uuid.New(), map[string]string{"id": topicID.String()})
			rr := httptest.NewRecorder()
			tc.call(h)(rr, req)

			if rr.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
			}
			if svc.gotSource != tc.source {
				t.Fatalf("expected source %q, got %q", tc.source, svc.gotSource)
			}
		})
	}
}

func TestFlashcardHandler_ReplayReturns200(t *testing.T) {
	svc := &stubAcceptance{card: &models.Flashcard{ID: uuid.New()}, created: false}
	h := NewFlashcardHandler(svc, testLogger())

	body := map[string]string{"front": "Q", "back": "A", "idempotency_token": "tok-1"}
	req := newRequest(http.MethodPost, "/", body, uuid.New(), map[string]string{"id": uuid.NewString()})
	rr := httptest.NewRecorder()
	h.Accept(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rr.Code)
	}
	if svc.gotReq.IdempotencyToken != "tok-1" {
		t.Fatalf("idempotency token not forwarded: %+v", svc.gotReq)
	}
}

func TestFlashcardHandler_BadTopicID(t *testing.T) {
	svc := &stubAcceptance{}
	h := NewFlashcardHandler(svc, testLogger())

	req := newRequest(http.MethodPost, "/", map[string]string{"front": "Q", "back": "A"}, uuid.New(), map[string]string{"id": "nope"})
	rr := httptest.NewRecorder()
	h.Accept(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	apiErr := decodeError(t, rr)
	if apiErr.Fields["id"] != "must be a UUID" {
		t.Fatalf("unexpected fields: %+v", apiErr.Fields)
	}
	if svc.gotSource != "" {
		t.Fatalf("service must not be called")
	}
}

func TestHandleServiceError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"front": "front is required"}}, http.StatusBadRequest, services.CodeValidation},
		{"conflict", &services.ConflictError{Message: "dup"}, http.StatusConflict, services.CodeConflict},
		{"not found", &services.NotFoundError{Message: "Topic not found or access denied"}, http.StatusNotFound, services.CodeNotFound},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, services.CodeUnauthorized},
		{"configuration", &services.ConfigurationError{Message: "no key"}, http.StatusInternalServerError, services.CodeAIConfiguration},
		{"network", &services.NetworkError{Message: "down"}, http.StatusServiceUnavailable, services.CodeAINetwork},
		{"upstream 429", services.NewUpstreamAPIError(429, nil), http.StatusTooManyRequests, services.CodeAIUpstream},
		{"upstream 503", services.NewUpstreamAPIError(503, nil), http.StatusServiceUnavailable, services.CodeAIUpstream},
		{"upstream 401", services.NewUpstreamAPIError(401, nil), http.StatusBadGateway, services.CodeAIUpstream},
		{"parsing", &services.ResponseParsingError{Message: "bad json"}, http.StatusBadGateway, services.CodeAIResponse},
		{"schema", &services.SchemaValidationError{Issues: []services.SchemaIssue{{Path: "flashcards", Message: "expected an array"}}}, http.StatusBadGateway, services.CodeAISchema},
		{"persistence", &services.PersistenceError{Op: "save flashcard", Err: errors.New("boom")}, http.StatusInternalServerError, services.CodePersistence},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, services.CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, "/", nil, uuid.Nil, nil)
			rr := httptest.NewRecorder()
			handleServiceError(rr, req, testLogger(), tc.err)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, apiErr.Code)
			}
			if apiErr.RequestID != "req-1" {
				t.Fatalf("expected request id to be echoed, got %q", apiErr.RequestID)
			}
		})
	}
}

type stubTopics struct {
	summaries []models.TopicSummary
	detail    *models.TopicDetail
	err       error
	created   string
}

func (s *stubTopics) List(ctx context.Context, userID uuid.UUID) ([]models.TopicSummary, error) {
	return s.summaries, s.err
}

func (s *stubTopics) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Topic, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = name
	return &models.Topic{ID: uuid.New(), UserID: userID, Name: name}, nil
}

func (s *stubTopics) GetDetail(ctx context.Context, userID, topicID uuid.UUID) (*models.TopicDetail, error) {
	return s.detail, s.err
}

func (s *stubTopics) ListFlashcards(ctx context.Context, userID, topicID uuid.UUID) ([]models.Flashcard, error) {
	if s.detail == nil {
		return nil, s.err
	}
	return s.detail.Flashcards, s.err
}

func (s *stubTopics) Rename(ctx context.Context, userID, topicID uuid.UUID, name string) (*models.Topic, error) {
	return &models.Topic{ID: topicID, Name: name}, s.err
}

func (s *stubTopics) Delete(ctx context.Context, userID, topicID uuid.UUID) error {
	return s.err
}

func (s *stubTopics) DeleteFlashcard(ctx context.Context, userID, topicID, flashcardID uuid.UUID) error {
	return s.err
}

func TestTopicHandler_ListEmptyIsArray(t *testing.T) {
	h := NewTopicHandler(&stubTopics{}, testLogger())

	rr := httptest.NewRecorder()
	h.List(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestTopicHandler_Create(t *testing.T) {
	svc := &stubTopics{}
	h := NewTopicHandler(svc, testLogger())

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(http.MethodPost, "/", map[string]string{"name": "Biology"}, uuid.New(), nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if svc.created != "Biology" {
		t.Fatalf("expected name forwarded, got %q", svc.created)
	}
}

func TestTopicHandler_GetNotFound(t *testing.T) {
	svc := &stubTopics{err: &services.NotFoundError{Message: "Topic not found or access denied"}}
	h := NewTopicHandler(svc, testLogger())

	rr := httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), map[string]string{"id": uuid.NewString()}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if msg := decodeError(t, rr).Message; msg != "Topic not found or access denied" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestTopicHandler_DeleteFlashcard(t *testing.T) {
	h := NewTopicHandler(&stubTopics{}, testLogger())

	params := map[string]string{"id": uuid.NewString(), "flashcardId": uuid.NewString()}
	rr := httptest.NewRecorder()
	h.DeleteFlashcard(rr, newRequest(http.MethodDelete, "/", nil, uuid.New(), params))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

type stubGeneration struct {
	resp *models.GenerateFlashcardsResponse
	err  error
	got  models.GenerateFlashcardsRequest
}

func (s *stubGeneration) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.GenerateFlashcardsResponse, error) {
	s.got = req
	return s.resp, s.err
}

func (s *stubGeneration) GenerateAlternative(ctx context.Context, userID, topicID uuid.UUID, req models.GenerateAlternativeRequest) (*models.AlternativeFlashcard, error) {
	return &models.AlternativeFlashcard{Front: "F2", Back: "B2"}, s.err
}

type stubJobs struct {
	job *models.GenerationJob
	err error
}

func (s *stubJobs) Submit(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) (*models.GenerationJob, error) {
	return s.job, s.err
}

func (s *stubJobs) Get(ctx context.Context, userID, jobID uuid.UUID) (*models.GenerationJob, error) {
	return s.job, s.err
}

func TestGenerationHandler_Generate(t *testing.T) {
	topicID := uuid.New()
	svc := &stubGeneration{resp: &models.GenerateFlashcardsResponse{
		Flashcards: []models.FlashcardPair{{Front: "What is photosynthesis?", Back: "Light to chemical energy."}},
	}}
	h := NewGenerationHandler(svc, &stubJobs{}, testLogger())

	body := map[string]interface{}{"sourceText": "Photosynthesis converts light energy.", "count": 2, "topicId": topicID}
	rr := httptest.NewRecorder()
	h.Generate(rr, newRequest(http.MethodPost, "/", body, uuid.New(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.got.Count != 2 || svc.got.TopicID != topicID {
		t.Fatalf("request not decoded: %+v", svc.got)
	}
	var resp models.GenerateFlashcardsResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if len(resp.Flashcards) != 1 {
		t.Fatalf("expected 1 flashcard, got %d", len(resp.Flashcards))
	}
}

func TestGenerationHandler_SubmitJobAccepted(t *testing.T) {
	job := &models.GenerationJob{ID: uuid.New(), Status: models.JobQueued}
	h := NewGenerationHandler(&stubGeneration{}, &stubJobs{job: job}, testLogger())

	rr := httptest.NewRecorder()
	h.SubmitJob(rr, newRequest(http.MethodPost, "/", map[string]interface{}{"sourceText": "long enough text"}, uuid.New(), nil))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["job_id"] != job.ID.String() {
		t.Fatalf("expected job id %s, got %v", job.ID, body)
	}
}

func TestGenerationHandler_UpstreamError(t *testing.T) {
	svc := &stubGeneration{err: services.NewUpstreamAPIError(503, nil)}
	h := NewGenerationHandler(svc, &stubJobs{}, testLogger())

	rr := httptest.NewRecorder()
	h.Generate(rr, newRequest(http.MethodPost, "/", map[string]interface{}{"sourceText": "x"}, uuid.New(), nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

type stubSessions struct {
	session *models.LearningSession
	resp    *models.SessionFlashcardResponse
	err     error
}

func (s *stubSessions) Create(ctx context.Context, userID uuid.UUID) (*models.LearningSession, error) {
	return s.session, s.err
}

func (s *stubSessions) RecordResponse(ctx context.Context, userID uuid.UUID, req models.RecordResponseRequest) (*models.SessionFlashcardResponse, error) {
	return s.resp, s.err
}

func TestLearningSessionHandler_CreateWithoutBody(t *testing.T) {
	session := &models.LearningSession{ID: uuid.New(), CreatedAt: time.Now()}
	h := NewLearningSessionHandler(&stubSessions{session: session}, testLogger())

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(http.MethodPost, "/", nil, uuid.New(), nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body models.LearningSessionCreated
	json.NewDecoder(rr.Body).Decode(&body)
	if body.SessionID != session.ID {
		t.Fatalf("expected session id %s, got %s", session.ID, body.SessionID)
	}
}

func TestLearningSessionHandler_RecordResponseNotFound(t *testing.T) {
	svc := &stubSessions{err: &services.NotFoundError{Message: "Learning session not found or access denied"}}
	h := NewLearningSessionHandler(svc, testLogger())

	body := map[string]string{"session_id": uuid.NewString(), "flashcard_id": uuid.NewString(), "user_response": "Easy"}
	rr := httptest.NewRecorder()
	h.RecordResponse(rr, newRequest(http.MethodPost, "/", body, uuid.New(), nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

type stubSources struct {
	filename string
	data     []byte
}

func (s *stubSources) ExtractFile(filename string, data []byte) (*models.SourceText, error) {
	s.filename = filename
	s.data = data
	return &models.SourceText{SourceText: string(data), Characters: len(data)}, nil
}

func (s *stubSources) FromYouTube(ctx context.Context, url string) (*models.SourceText, error) {
	return nil, &services.ValidationError{Fields: map[string]string{"url": "Invalid YouTube URL"}}
}

func TestSourceHandler_UploadFile(t *testing.T) {
	svc := &stubSources{}
	h := NewSourceHandler(svc, testLogger())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("Mitochondria are the powerhouse of the cell."))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.UploadFile(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.filename != "notes.txt" || !strings.HasPrefix(string(svc.data), "Mitochondria") {
		t.Fatalf("unexpected upload forwarded: %q %q", svc.filename, svc.data)
	}
}

func TestSourceHandler_UploadRequiresFile(t *testing.T) {
	h := NewSourceHandler(&stubSources{}, testLogger())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.UploadFile(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if decodeError(t, rr).Fields["file"] != "file is required" {
		t.Fatalf("expected file field error")
	}
}

func TestSourceHandler_YouTubeInvalid(t *testing.T) {
	h := NewSourceHandler(&stubSources{}, testLogger())

	rr := httptest.NewRecorder()
	h.YouTube(rr, newRequest(http.MethodPost, "/", map[string]string{"url": "https://example.com"}, uuid.New(), nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

type stubAuth struct {
	resp      *models.LoginResponse
	err       error
	loggedOut string
}

func (s *stubAuth) Signup(ctx context.Context, req models.SignupRequest) (*models.LoginResponse, error) {
	return s.resp, s.err
}

func (s *stubAuth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return s.resp, s.err
}

func (s *stubAuth) Refresh(ctx context.Context, refreshToken string) (*models.LoginResponse, error) {
	return s.resp, s.err
}

func (s *stubAuth) Logout(ctx context.Context, refreshToken string) error {
	s.loggedOut = refreshToken
	return s.err
}

func (s *stubAuth) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return &models.User{ID: userID}, s.err
}

func TestAuthHandler_LoginSetsCookie(t *testing.T) {
	svc := &stubAuth{resp: &models.LoginResponse{AuthTokens: models.AuthTokens{AccessToken: "access-1", RefreshToken: "refresh-1"}}}
	h := NewAuthHandler(svc, true, testLogger())

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/", map[string]string{"email": "a@b.co", "password": "password1"}, uuid.Nil, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.AuthCookieName || cookies[0].Value != "access-1" {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("auth cookie must be HttpOnly and Secure in production")
	}
}

func TestAuthHandler_LogoutWithoutBody(t *testing.T) {
	svc := &stubAuth{}
	h := NewAuthHandler(svc, false, testLogger())

	rr := httptest.NewRecorder()
	h.Logout(rr, newRequest(http.MethodPost, "/", nil, uuid.New(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("expected cleared cookie, got %+v", cookies)
	}
}

func TestAuthHandler_LoginInvalid(t *testing.T) {
	svc := &stubAuth{err: &services.UnauthorizedError{Message: "Invalid email or password"}}
	h := NewAuthHandler(svc, false, testLogger())

	rr := httptest.NewRecorder()
	h.Login(rr, newRequest(http.MethodPost, "/", map[string]string{"email": "a@b.co", "password": "x"}, uuid.Nil, nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("no cookie should be set on failure")
	}
}
