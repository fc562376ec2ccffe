// Package config provides configuration management for the application
package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds process-wide settings for the HTTP server and the room engine
type ServerConfig struct {
	Port     string
	LogLevel string
	// ScheduleHorizon is added to server time to produce execution deadlines
	ScheduleHorizon time.Duration
	// TickInterval is the period of every motion generator
	TickInterval time.Duration
}

// GridConfig describes the square plane participants and the source live on
type GridConfig struct {
	Size         float64
	OriginX      float64
	OriginY      float64
	ClientRadius float64
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	Enabled bool
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string
	Host      string
	Port      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// TTL for room snapshots (0 means no expiration)
	SnapshotTTL time.Duration
}

// StorageConfig holds S3/MinIO configuration for uploaded audio assets
type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	// CleanupMinAge keeps objects younger than this when a room is cleaned up
	CleanupMinAge time.Duration
	PresignExpiry time.Duration
}

// UploadConfig holds settings for the upload-completion webhook
type UploadConfig struct {
	WebhookSecret string
}

// GetServerConfig loads server configuration from environment variables
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ScheduleHorizon: time.Duration(getEnvInt("SCHEDULE_HORIZON_MS", 500)) * time.Millisecond,
		TickInterval:    time.Duration(getEnvInt("GENERATOR_TICK_MS", 50)) * time.Millisecond,
	}
}

// GetGridConfig loads the plane geometry from environment variables
func GetGridConfig() GridConfig {
	return GridConfig{
		Size:         getEnvFloat("GRID_SIZE", 100),
		OriginX:      getEnvFloat("GRID_ORIGIN_X", 50),
		OriginY:      getEnvFloat("GRID_ORIGIN_Y", 50),
		ClientRadius: getEnvFloat("GRID_CLIENT_RADIUS", 25),
	}
}

// GetRedisConfig loads Redis/Valkey configuration from environment variables
func GetRedisConfig() RedisConfig {
	ttlMinutes := getEnvInt("REDIS_SNAPSHOT_TTL_MINUTES", 60)

	return RedisConfig{
		Enabled:     getEnvBool("REDIS_ENABLED", false),
		URI:         getEnv("REDIS_URI_ZSPATIAL", ""),
		Host:        getEnv("REDIS_HOST_ZSPATIAL", getEnv("REDIS_ADDRESS", "localhost")),
		Port:        getEnv("REDIS_PORT_ZSPATIAL", "6379"),
		Username:    getEnv("REDIS_USERNAME_ZSPATIAL", ""),
		Password:    getEnv("REDIS_PASSWORD_ZSPATIAL", getEnv("REDIS_PASSWORD", "")),
		DB:          getEnvInt("REDIS_DB", 0),
		KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "zspatial:"),
		SnapshotTTL: time.Duration(ttlMinutes) * time.Minute,
	}
}

// GetStorageConfig loads object storage configuration from environment variables
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Enabled:       getEnvBool("STORAGE_ENABLED", false),
		Endpoint:      getEnv("S3_ENDPOINT", "localhost:9000"),
		AccessKey:     getEnv("S3_ACCESS_KEY", "minioadmin"),
		SecretKey:     getEnv("S3_SECRET_KEY", "minioadmin"),
		Bucket:        getEnv("S3_BUCKET", "zspatial-audio"),
		Region:        getEnv("S3_REGION", "us-east-1"),
		UseSSL:        getEnvBool("S3_USE_SSL", false),
		PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		CleanupMinAge: time.Duration(getEnvInt("STORAGE_CLEANUP_MIN_AGE_HOURS", 0)) * time.Hour,
		PresignExpiry: time.Duration(getEnvInt("S3_PRESIGN_EXPIRY_MINUTES", 15)) * time.Minute,
	}
}

// GetUploadConfig loads webhook configuration from environment variables
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		WebhookSecret: getEnv("UPLOAD_WEBHOOK_SECRET", ""),
	}
}

// IsStorageConfigValid checks if the storage credentials needed to connect are present
func (c StorageConfig) IsStorageConfigValid() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return f
}
