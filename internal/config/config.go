package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config is the service configuration, read from the environment with an
// optional .env file layered underneath for local development.
type Config struct {
	Port        string
	DBSource    string // empty selects the in-memory store
	JournalPath string // journal file for the in-memory store; empty disables it
	AdminToken  string
	Env         string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	return &Config{
		Port:        getEnv("SERVER_PORT", "8080"),
		DBSource:    getEnv("DB_SOURCE", ""),
		JournalPath: getEnv("JOURNAL_PATH", ""),
		AdminToken:  getEnv("BOOTSTRAP_ADMIN_TOKEN", ""),
		Env:         getEnv("ENVIRONMENT", "development"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
