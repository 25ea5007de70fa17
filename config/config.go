package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment.
// A .env file is honored when present so local runs match deployments.
type Config struct {
	Port string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret     string
	SessionSecret string
	AuthProvider  string // "jwt" or "google"

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	StorageBackend string // "s3" or "drive"
	StorageBucket  string
	S3Region       string
	DriveFolderID  string

	MaxUploadBytes     int64
	NormalizeThreshold int64
	MaxImageWidth      int
	JPEGQuality        int

	FeedMode         string // "push" or "poll"
	FeedSize         int
	FeedPollInterval time.Duration

	CORSOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             getEnv("DB_NAME", "wander_stories"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionSecret:      getEnv("SESSION_SECRET", "something-very-secret"),
		AuthProvider:       getEnv("AUTH_PROVIDER", "jwt"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		StorageBackend:     getEnv("STORAGE_BACKEND", "s3"),
		StorageBucket:      getEnv("STORAGE_BUCKET", "posts"),
		S3Region:           getEnv("AWS_REGION", "us-east-1"),
		DriveFolderID:      os.Getenv("GOOGLE_DRIVE_FOLDER_ID"),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		NormalizeThreshold: getEnvInt64("NORMALIZE_THRESHOLD_BYTES", 10<<20),
		MaxImageWidth:      getEnvInt("MAX_IMAGE_WIDTH", 1600),
		JPEGQuality:        getEnvInt("JPEG_QUALITY", 75),
		FeedMode:           getEnv("FEED_MODE", "push"),
		FeedSize:           getEnvInt("FEED_SIZE", 50),
		FeedPollInterval:   getEnvDuration("FEED_POLL_INTERVAL", 5*time.Second),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AuthProvider != "jwt" && cfg.AuthProvider != "google" {
		return nil, fmt.Errorf("unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}
	if cfg.StorageBackend != "s3" && cfg.StorageBackend != "drive" {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.FeedMode != "push" && cfg.FeedMode != "poll" {
		return nil, fmt.Errorf("unknown FEED_MODE %q", cfg.FeedMode)
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName)
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvInt64(key string, fallback int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
