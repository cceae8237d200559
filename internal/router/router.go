package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/handlers"
	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/websocket"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth             *handlers.AuthHandler
	Topics           *handlers.TopicHandler
	Flashcards       *handlers.FlashcardHandler
	Generation       *handlers.GenerationHandler
	Sources          *handlers.SourceHandler
	LearningSessions *handlers.LearningSessionHandler
}

// Limiters are owned by the caller so they can be stopped on shutdown.
type Limiters struct {
	Auth *middleware.RateLimiter
	AI   *middleware.RateLimiter
}

func New(
	jwtAuth *middleware.JWTAuth,
	h Handlers,
	limiters Limiters,
	wsHub *websocket.Hub,
	frontendURL string,
	log logrus.FieldLogger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiters.Auth.Middleware)
			r.Post("/signup", h.Auth.Signup)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", h.Auth.Logout)
				r.Get("/user", h.Auth.Me)
			})
		})

		// ──── Topic Routes ────
		r.Route("/topics", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", h.Topics.List)
			r.Post("/", h.Topics.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Topics.Get)
				r.Patch("/", h.Topics.Rename)
				r.Delete("/", h.Topics.Delete)

				r.Get("/flashcards", h.Topics.ListFlashcards)
				r.Delete("/flashcards/{flashcardId}", h.Topics.DeleteFlashcard)
				r.Post("/flashcards/manual", h.Flashcards.CreateManual)
				r.Post("/accept", h.Flashcards.Accept)
				r.Post("/accept-edited", h.Flashcards.AcceptEdited)

				r.With(limiters.AI.Middleware).Post("/generate/alternative", h.Generation.GenerateAlternative)
			})
		})

		// ──── AI Routes ────
		r.Route("/ai", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(limiters.AI.Middleware).Post("/generate-flashcards", h.Generation.Generate)
			r.With(limiters.AI.Middleware).Post("/generation-jobs", h.Generation.SubmitJob)
			r.Get("/generation-jobs/{id}", h.Generation.GetJob)
		})

		// ──── Source Routes ────
		r.Route("/sources", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/file", h.Sources.UploadFile)
			r.Post("/youtube", h.Sources.YouTube)
		})

		// ──── Learning Session Routes ────
		r.Route("/learning-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", h.LearningSessions.Create)
			r.Post("/responses", h.LearningSessions.RecordResponse)
		})
	})

	// WebSocket authenticates with the token query parameter.
	r.Get("/ws", wsHub.HandleWebSocket)

	return r
}

// DefaultLimiters matches the production budgets: 10 auth attempts per
// minute per client and 20 AI calls per minute per user.
func DefaultLimiters() Limiters {
	return Limiters{
		Auth: middleware.NewRateLimiter(10, time.Minute),
		AI:   middleware.NewRateLimiter(20, time.Minute),
	}
}
