package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins string
	// API key authentication
	APIKeyPepper string
	// OpenAI configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	MaxTokens     int
	Temperature   float64
	// Streaming
	StreamWorkers     int
	StreamIdleTimeout time.Duration
	ShutdownGrace     time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "dev"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),

		APIKeyPepper: getEnv("API_KEY_PEPPER", "default-pepper-change-in-prod"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MaxTokens:     getEnvInt("OPENAI_MAX_TOKENS", 1024),
		Temperature:   getEnvFloat("OPENAI_TEMPERATURE", 0.7),

		StreamWorkers:     getEnvInt("STREAM_WORKERS", StreamWorkerPoolSize),
		StreamIdleTimeout: getEnvDuration("STREAM_IDLE_TIMEOUT", StreamIdleTimeout),
		ShutdownGrace:     getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
