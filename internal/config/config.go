package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	Addr        string // HTTP listen address
	DatabaseURL string // Postgres DSN
	RedisAddr   string // host:port of the pub/sub broker
	JWTSecret   string
}

// Load reads a .env file if one exists, then environment variables.
// DATABASE_URL and JWT_SECRET are required; everything else has a default.
func Load() (*Config, error) {
	// Silent failure if no .env exists, which is fine (Docker passes real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getEnvOrDefault("ADDR", ":8080"),
		RedisAddr:   getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
