package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers
const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

// ErrMissingS3Config is returned when the s3 driver is selected without credentials.
var ErrMissingS3Config = errors.New("Faltan variables de entorno de S3")

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// Storage
	StorageDriver string
	StoragePath   string
	PublicBaseURL string
	S3            S3Config
	MaxUploadSize int64

	// Cédula validation service
	Validator ValidatorConfig

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string
}

// S3Config describes an S3-compatible bucket (AWS, MinIO, DigitalOcean Spaces...).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string

	// SignedURLs makes uploads return presigned GET URLs instead of public ones.
	SignedURLs   bool
	SignedURLTTL time.Duration
}

// Complete reports whether every connection setting is present.
func (c S3Config) Complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Region != "" && c.Endpoint != "" && c.Bucket != ""
}

// ValidatorConfig tunes the simulated civil registry service.
type ValidatorConfig struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		StoragePath:   getEnv("STORAGE_PATH", "./storage"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		S3: S3Config{
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("S3_REGION", ""),
			Endpoint:        strings.TrimRight(getEnv("S3_ENDPOINT", ""), "/"),
			Bucket:          getEnv("S3_BUCKET_NAME", ""),
			SignedURLs:      getEnvAsBool("S3_SIGNED_URLS", false),
			SignedURLTTL:    time.Duration(getEnvAsInt("S3_SIGNED_URL_TTL_HOURS", 168)) * time.Hour,
		},
		MaxUploadSize: int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) * 1024 * 1024,
		Validator: ValidatorConfig{
			MinLatency:  time.Duration(getEnvAsInt("VALIDATOR_MIN_LATENCY_MS", 500)) * time.Millisecond,
			MaxLatency:  time.Duration(getEnvAsInt("VALIDATOR_MAX_LATENCY_MS", 1500)) * time.Millisecond,
			FailureRate: getEnvAsFloat("VALIDATOR_FAILURE_RATE", 0.3),
		},
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
	}

	// Default to S3 whenever it is configured, local disk otherwise
	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", ""))
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = StorageDriverLocal
		if cfg.S3.Complete() {
			cfg.StorageDriver = StorageDriverS3
		}
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.StorageDriver {
	case StorageDriverS3:
		if !cfg.S3.Complete() {
			return nil, ErrMissingS3Config
		}
	case StorageDriverLocal:
		if cfg.PublicBaseURL == "" {
			cfg.PublicBaseURL = "http://localhost:" + cfg.Port
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.Validator.MaxLatency < cfg.Validator.MinLatency {
		return nil, fmt.Errorf("VALIDATOR_MAX_LATENCY_MS must be >= VALIDATOR_MIN_LATENCY_MS")
	}
	if cfg.Validator.FailureRate < 0 || cfg.Validator.FailureRate > 1 {
		return nil, fmt.Errorf("VALIDATOR_FAILURE_RATE must be between 0 and 1")
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
