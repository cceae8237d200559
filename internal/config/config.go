package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL    string
	MigrationsPath string

	// Redis
	RedisURL string

	// Auth
	JWTSecret      string
	AccessTokenTTL time.Duration

	// LLM
	LLMProvider           string
	LLMConcurrentRequests int
	LLMTimeout            time.Duration
	OpenRouterAPIKey      string
	OpenRouterModel       string
	OpenRouterBaseURL     string
	GeminiAPIKey          string
	GeminiModel           string

	// Study
	RankingStrategy string

	// Workers
	GenerationWorkers int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             getEnvOrDefault("LOG_FORMAT", "text"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		MigrationsPath:        getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		AccessTokenTTL:        getEnvAsDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		LLMProvider:           getEnvOrDefault("LLM_PROVIDER", "openrouter"),
		LLMConcurrentRequests: getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 5),
		LLMTimeout:            getEnvAsDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
		OpenRouterAPIKey:      getEnvOrDefault("OPENROUTER_API_KEY", ""),
		OpenRouterModel:       getEnvOrDefault("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterBaseURL:     getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		RankingStrategy:       getEnvOrDefault("RANKING_STRATEGY", "history"),
		GenerationWorkers:     getEnvAsIntOrDefault("GENERATION_WORKERS", 3),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:4321"),
	}

	return cfg
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
