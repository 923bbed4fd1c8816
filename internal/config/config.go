package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Queue backends.
const (
	QueueRedis  = "redis"
	QueueMemory = "memory"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Chat platform
	TelegramToken         string  `validate:"required"`
	TelegramWebhook       bool
	TelegramWebhookURL    string  `validate:"required_if=TelegramWebhook true"`
	TelegramWebhookSecret string  `validate:"required_if=TelegramWebhook true"`
	TelegramRate          float64 `validate:"gt=0"`
	TelegramBurst         int     `validate:"gte=1"`

	// Database
	DatabaseURL       string `validate:"required"`
	DBMaxOpenConns    int    `validate:"gte=1"`
	DBMaxIdleConns    int    `validate:"gte=0"`
	DBConnMaxLifetime time.Duration

	// Queue
	QueueBackend      string `validate:"oneof=redis memory"`
	RedisURL          string `validate:"required_if=QueueBackend redis"`
	JobTimeout        time.Duration
	JobMaxRetry       int `validate:"gte=0,lte=10"`
	WorkerConcurrency int `validate:"gte=1"`

	// Extraction service
	ExtractionURL     string `validate:"required,url"`
	ExtractionTimeout time.Duration

	// Receipt images shared by bot and worker
	ImageDir string `validate:"required"`

	// Ops HTTP API
	HTTPPort  string `validate:"required,numeric"`
	OpsAPIKey string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		TelegramToken:         os.Getenv("TELEGRAM_TOKEN"),
		TelegramWebhook:       getBool("TELEGRAM_WEBHOOK", false),
		TelegramWebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TelegramRate:          getFloat("TELEGRAM_RATE", 25),
		TelegramBurst:         getInt("TELEGRAM_BURST", 5),

		DatabaseURL:       getEnv("DATABASE_URL", os.Getenv("DATABASE_PUBLIC_URL")),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),

		QueueBackend:      getEnv("QUEUE_BACKEND", QueueRedis),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JobTimeout:        getDuration("JOB_TIMEOUT", 300*time.Second),
		JobMaxRetry:       getInt("JOB_MAX_RETRY", 3),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),

		ExtractionURL:     os.Getenv("N8N_ENDPOINT"),
		ExtractionTimeout: getDuration("EXTRACTION_TIMEOUT", 60*time.Second),

		ImageDir: getEnv("IMAGE_DIR", "./data/boletas"),

		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		OpsAPIKey: os.Getenv("OPS_API_KEY"),
	}

	appConfig = config
	return config, nil
}

// Validate checks the full configuration needed by the bot and the worker.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %v\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
