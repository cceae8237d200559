// Package apiclient talks to the flashcards HTTP API on behalf of one
// signed-in user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/models"
)

const defaultTimeout = 90 * time.Second

// Error is a non-2xx answer decoded from the API error envelope.
type Error struct {
	Status    int
	Code      string
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	fields := lo.Keys(e.Fields)
	sort.Strings(fields)
	parts := lo.Map(fields, func(f string, _ int) string { return f + ": " + e.Fields[f] })
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *Error) NotFound() bool     { return e.Status == http.StatusNotFound }
func (e *Error) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

type Client struct {
	baseURL string
	http    *http.Client
	auth    *AuthContext
	log     logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(cl *Client) { cl.log = log }
}

// New builds a client for baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, auth *AuthContext, opts ...Option) *Client {
	l := logrus.New()
	l.SetOutput(io.Discard)

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		auth:    auth,
		log:     l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Auth() *AuthContext { return c.auth }

// ──── Auth ────

func (c *Client) Signup(ctx context.Context, email, password, username string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.SignupRequest{Email: email, Password: password, Username: username}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", req, &resp); err != nil {
		return nil, err
	}
	c.auth.SignIn(resp.User, resp.AuthTokens)
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.auth.SignIn(resp.User, resp.AuthTokens)
	return &resp, nil
}

func (c *Client) Refresh(ctx context.Context) error {
	token := c.auth.RefreshToken()
	if token == "" {
		return &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Not signed in"}
	}

	var resp models.LoginResponse
	body, err := json.Marshal(models.RefreshRequest{RefreshToken: token})
	if err != nil {
		return err
	}
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", "application/json", body, &resp, false); err != nil {
		return err
	}
	c.auth.refreshed(resp.AuthTokens)
	return nil
}

// Logout revokes the refresh token and closes the auth context.
func (c *Client) Logout(ctx context.Context) error {
	req := models.RefreshRequest{RefreshToken: c.auth.RefreshToken()}
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", req, nil)
	c.auth.Close()
	return err
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/user", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ──── Topics ────

func (c *Client) ListTopics(ctx context.Context) ([]models.TopicSummary, error) {
	var topics []models.TopicSummary
	if err := c.doJSON(ctx, http.MethodGet, "/topics", nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (c *Client) CreateTopic(ctx context.Context, name string) (*models.Topic, error) {
	var topic models.Topic
	if err := c.doJSON(ctx, http.MethodPost, "/topics", models.TopicRequest{Name: name}, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// GetTopicDetail returns the topic with its cards in study order.
func (c *Client) GetTopicDetail(ctx context.Context, topicID uuid.UUID) (*models.TopicDetail, error) {
	var detail models.TopicDetail
	if err := c.doJSON(ctx, http.MethodGet, "/topics/"+topicID.String(), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateFlashcard posts to the entry point matching source.
func (c *Client) CreateFlashcard(ctx context.Context, topicID uuid.UUID, req models.AcceptFlashcardRequest, source models.FlashcardSource) (*models.Flashcard, error) {
	var path string
	switch source {
	case models.SourceAIGenerated:
		path = "/accept"
	case models.SourceAIEdited:
		path = "/accept-edited"
	case models.SourceManual:
		path = "/flashcards/manual"
	default:
		return nil, fmt.Errorf("unknown flashcard source %q", source)
	}

	var card models.Flashcard
	if err := c.doJSON(ctx, http.MethodPost, "/topics/"+topicID.String()+path, req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// ──── Learning sessions ────

func (c *Client) CreateLearningSession(ctx context.Context) (*models.LearningSessionCreated, error) {
	var resp models.LearningSessionCreated
	if err := c.doJSON(ctx, http.MethodPost, "/learning-sessions", models.CreateLearningSessionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RecordSessionResponse(ctx context.Context, sessionID, flashcardID uuid.UUID, rating models.Rating) (*models.SessionResponseCreated, error) {
	var resp models.SessionResponseCreated
	req := models.RecordResponseRequest{SessionID: sessionID, FlashcardID: flashcardID, UserResponse: rating}
	if err := c.doJSON(ctx, http.MethodPost, "/learning-sessions/responses", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ──── Generation ────

func (c *Client) GenerateFlashcards(ctx context.Context, sourceText string, count int, topicID uuid.UUID) ([]models.FlashcardPair, error) {
	var resp models.GenerateFlashcardsResponse
	req := models.GenerateFlashcardsRequest{SourceText: sourceText, Count: count, TopicID: topicID}
	if err := c.doJSON(ctx, http.MethodPost, "/ai/generate-flashcards", req, &resp); err != nil {
		return nil, err
	}
	return resp.Flashcards, nil
}

func (c *Client) GenerateAlternative(ctx context.Context, topicID uuid.UUID, sourceText, originalFront, originalBack string) (*models.AlternativeFlashcard, error) {
	var alt models.AlternativeFlashcard
	req := models.GenerateAlternativeRequest{SourceText: sourceText, OriginalFront: originalFront, OriginalBack: originalBack}
	if err := c.doJSON(ctx, http.MethodPost, "/topics/"+topicID.String()+"/generate/alternative", req, &alt); err != nil {
		return nil, err
	}
	return &alt, nil
}

// ──── Sources ────

func (c *Client) UploadSourceFile(ctx context.Context, filename string, data []byte) (*models.SourceText, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out models.SourceText
	if err := c.send(ctx, http.MethodPost, "/sources/file", mw.FormDataContentType(), buf.Bytes(), &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SourceFromYouTube(ctx context.Context, url string) (*models.SourceText, error) {
	var out models.SourceText
	if err := c.doJSON(ctx, http.MethodPost, "/sources/youtube", map[string]string{"url": url}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ──── Transport ────

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	return c.send(ctx, method, path, "application/json", body, out, true)
}

// send performs one call. An expired access token is refreshed once and the
// call replayed when allowRefresh is set.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte, out interface{}, allowRefresh bool) error {
	resp, err := c.roundTrip(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && allowRefresh && c.auth.RefreshToken() != "" {
		apiErr := decodeError(resp)
		if apiErr.Code != "TOKEN_EXPIRED" {
			return apiErr
		}
		c.log.WithField("path", path).Debug("access token expired, refreshing")
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		if resp, err = c.roundTrip(ctx, method, path, contentType, body); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.auth.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) *Error {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env models.ErrorResponse
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Code == "" {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: msg}
	}
	return &Error{
		Status:    resp.StatusCode,
		Code:      env.Error.Code,
		Message:   env.Error.Message,
		Fields:    env.Error.Fields,
		RequestID: env.Error.RequestID,
	}
}
