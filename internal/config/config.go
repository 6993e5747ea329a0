package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Everything comes from the environment,
// with development defaults; a .env file is honored when present.
type Config struct {
	ListenPort string

	DBType     string // sqlite or postgres
	SQLitePath string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	MigrationsPath string

	StorageType string // s3 or local
	MediaBucket string
	AWSRegion   string
	LocalMedia  string
	PublicURL   string

	WorkerBaseURL string
	WebhookURL    string
	WebhookSecret string

	UploadURLTTL   time.Duration
	DownloadURLTTL time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ListenPort:     getenv("LISTEN_PORT", "8080"),
		DBType:         getenv("DB_TYPE", "sqlite"),
		SQLitePath:     getenv("DB_PATH", "./movaia.db"),
		DBHost:         getenv("DB_HOST", "localhost"),
		DBUser:         getenv("DB_USER", "movaia"),
		DBPassword:     getenv("DB_PASSWORD", "movaia_dev"),
		DBName:         getenv("DB_NAME", "movaia"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "./migrations"),
		StorageType:    getenv("STORAGE_TYPE", "s3"),
		MediaBucket:    getenv("MEDIA_BUCKET", "movaia-media"),
		AWSRegion:      getenv("AWS_REGION", "us-east-1"),
		LocalMedia:     getenv("LOCAL_MEDIA_PATH", "./media"),
		PublicURL:      getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		WorkerBaseURL:  getenv("WORKER_BASE_URL", "http://localhost:9000"),
		WebhookURL:     getenv("WEBHOOK_URL", "http://localhost:8080/api/analyses/webhook"),
		WebhookSecret:  os.Getenv("WORKER_WEBHOOK_SECRET"),
	}

	dbPort, err := strconv.Atoi(getenv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.DBPort = dbPort

	cfg.UploadURLTTL, err = getDuration("UPLOAD_URL_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.DownloadURLTTL, err = getDuration("DOWNLOAD_URL_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
