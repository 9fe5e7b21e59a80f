package server

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/acheong08/pyextras/internal/index"
)

// Config holds all environment configuration
type Config struct {
	// Server
	Port string

	// Index
	IndexURL         string
	IndexConcurrency int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig reads the environment, loading a .env file first if present
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	concurrency, err := strconv.Atoi(getEnv("INDEX_CONCURRENCY", "8"))
	if err != nil || concurrency <= 0 {
		return nil, fmt.Errorf("INDEX_CONCURRENCY must be a positive integer")
	}

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		IndexURL:         getEnv("PYPI_URL", index.DefaultBaseURL),
		IndexConcurrency: concurrency,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
