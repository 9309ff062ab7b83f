package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Sync      SyncConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// SyncConfig holds the connection settings for the central server.
// Sync is disabled entirely when no server URL is configured.
type SyncConfig struct {
	ServerURL  string
	APIToken   string
	StoreID    string
	TerminalID string
	Enabled    bool
	Interval   time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	serverURL := os.Getenv("SERVER_API_URL")

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "beizuri_pos"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Sync: SyncConfig{
			ServerURL:  serverURL,
			APIToken:   os.Getenv("SERVER_API_TOKEN"),
			StoreID:    os.Getenv("STORE_ID"),
			TerminalID: getEnv("TERMINAL_ID", uuid.NewString()),
			Enabled:    serverURL != "" && getEnv("ENABLE_SYNC", "true") == "true",
			Interval:   time.Duration(getEnvInt("SYNC_INTERVAL", 30)) * time.Second,
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
