package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"flashcards-backend/internal/config"
	"flashcards-backend/internal/database"
	"flashcards-backend/internal/handlers"
	"flashcards-backend/internal/logger"
	"flashcards-backend/internal/middleware"
	"flashcards-backend/internal/repository"
	"flashcards-backend/internal/router"
	"flashcards-backend/internal/services"
	"flashcards-backend/internal/websocket"
	"flashcards-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logger configuration: %v\n", err)
		os.Exit(1)
	}
	log.Info("starting flashcards backend")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("PostgreSQL connection failed")
	}
	defer pool.Close()
	log.Info("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL, cfg.GenerationWorkers, log)
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	defer redisClients.Close()
	log.Info("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsPath, log); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}

	// ──── Initialize Repositories ────
	ranker, err := repository.RankerByName(cfg.RankingStrategy)
	if err != nil {
		log.WithError(err).Fatal("invalid ranking strategy")
	}
	userRepo := repository.NewUserRepo(pool)
	topicRepo := repository.NewTopicRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool, ranker)
	sessionRepo := repository.NewLearningSessionRepo(pool)
	refreshRepo := repository.NewRefreshTokenRepo(redisClients.Queue)
	jobRepo := repository.NewGenerationJobRepo(redisClients.Queue)

	// ──── Step 5: Initialize LLM Client ────
	completion, closeCompletion := newCompletionClient(cfg, log)
	defer closeCompletion()

	// ──── Initialize Services ────
	events := services.NewRedisPublisher(redisClients.Queue, log)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := services.NewAuthService(userRepo, refreshRepo, jwtAuth, cfg.AccessTokenTTL, log)
	topicService := services.NewTopicService(topicRepo, flashcardRepo, events, log)
	acceptanceService := services.NewAcceptanceService(topicRepo, flashcardRepo, events, log)
	sessionService := services.NewLearningSessionService(sessionRepo, topicRepo, flashcardRepo, events, log)
	generationService := services.NewGenerationService(completion, topicRepo, log)
	jobService := services.NewGenerationJobService(jobRepo, generationService, events, log)
	youtubeClient := services.NewYouTubeClient()
	sourceService := services.NewSourceService(youtubeClient, youtubeClient, log)

	// ──── Initialize Handlers ────
	h := router.Handlers{
		Auth:             handlers.NewAuthHandler(authService, cfg.IsProduction(), log),
		Topics:           handlers.NewTopicHandler(topicService, log),
		Flashcards:       handlers.NewFlashcardHandler(acceptanceService, log),
		Generation:       handlers.NewGenerationHandler(generationService, jobService, log),
		Sources:          handlers.NewSourceHandler(sourceService, log),
		LearningSessions: handlers.NewLearningSessionHandler(sessionService, log),
	}

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		worker.NewRedisQueue(redisClients.Queue, repository.GenerationQueue),
		jobService,
		cfg.GenerationWorkers,
		log,
	)
	workerPool.Start()

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, log)

	// ──── Step 8: Start HTTP Server ────
	limiters := router.DefaultLimiters()
	r := router.New(jwtAuth, h, limiters, wsHub, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. main waits on stopped so the deferred pool and
	// Redis closes run only after the workers have returned their jobs.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		workerPool.Stop()
		wsHub.Close()
		limiters.Auth.Stop()
		limiters.AI.Stop()
	}()

	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"provider": cfg.LLMProvider,
		"ranking":  cfg.RankingStrategy,
	}).Info("flashcards backend ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
	<-stopped
	log.Info("shutdown complete")
}

// newCompletionClient picks the configured provider. A missing key is not
// fatal: generation endpoints answer AI_CONFIGURATION_ERROR instead.
func newCompletionClient(cfg *config.Config, log logrus.FieldLogger) (services.CompletionClient, func()) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := services.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMConcurrentRequests, log)
		if err != nil {
			log.WithError(err).Warn("Gemini client unavailable, AI generation disabled")
			return nil, func() {}
		}
		log.WithField("model", cfg.GeminiModel).Info("Gemini client initialized")
		return client, client.Close
	default:
		if cfg.LLMProvider != "openrouter" {
			log.WithField("provider", cfg.LLMProvider).Warn("unknown LLM provider, falling back to openrouter")
		}
		if cfg.OpenRouterAPIKey == "" {
			log.Warn("OPENROUTER_API_KEY is not set, AI generation disabled")
			return nil, func() {}
		}
		client := services.NewOpenRouterClient(services.OpenRouterOptions{
			APIKey:             cfg.OpenRouterAPIKey,
			Model:              cfg.OpenRouterModel,
			BaseURL:            cfg.OpenRouterBaseURL,
			Referer:            cfg.FrontendURL,
			Timeout:            cfg.LLMTimeout,
			ConcurrentRequests: cfg.LLMConcurrentRequests,
		}, log)
		log.WithField("model", cfg.OpenRouterModel).Info("OpenRouter client initialized")
		return client, func() {}
	}
}
