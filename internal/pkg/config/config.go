package config

import (
	"fmt"
	"os"
	"time"
)

// Storage backend identifiers. Selection is a process-wide switch read once
// at startup.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

type StorageConfig struct {
	Backend     string
	DataDir     string
	Bucket      string
	CredsFile   string
	LockTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiration time.Duration
}

type Config struct {
	Storage      StorageConfig
	Auth         AuthConfig
	RoutesDir    string
	InvitesPath  string
	GeminiAPIKey string
	AdminToken   string
	ServerPort   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Backend:     getEnvOrDefault("RW_STORAGE_BACKEND", BackendLocal),
			DataDir:     getEnvOrDefault("RW_DATA_DIR", "data"),
			Bucket:      os.Getenv("RW_GCS_BUCKET"),
			CredsFile:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			LockTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:       getEnvOrDefault("RW_JWT_SECRET", ""),
			TokenExpiration: 30 * 24 * time.Hour,
		},
		RoutesDir:    getEnvOrDefault("RW_ROUTES_DIR", "routes"),
		InvitesPath:  getEnvOrDefault("RW_INVITES_PATH", "data/invites.json"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		AdminToken:   os.Getenv("RW_ADMIN_TOKEN"),
		ServerPort:   getEnvOrDefault("SERVER_PORT", "8091"),
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("RW_JWT_SECRET environment variable is required")
	}

	// The remote backend cannot guess its bucket; fail at startup rather
	// than on the first write.
	if cfg.Storage.Backend == BackendGCS && cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("RW_GCS_BUCKET environment variable is required when RW_STORAGE_BACKEND=gcs")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
