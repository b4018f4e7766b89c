package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	API      APIConfig
	Worker   WorkerConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration (job queues + cooldown store)
type RedisConfig struct {
	URL string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// WorkerConfig holds per-queue concurrency ceilings. Message-send and
// webhook volume dominate; campaign-batch runs are lightweight orchestration.
type WorkerConfig struct {
	BatchConcurrency   int
	SendConcurrency    int
	WebhookConcurrency int
}

// EngineConfig holds dispatch engine tuning
type EngineConfig struct {
	CooldownWindow     time.Duration
	UnsubscribeBaseURL string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := intEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	apiPort, err := intEnv("API_PORT", 8080)
	if err != nil {
		return nil, err
	}

	batchConc, err := intEnv("BATCH_CONCURRENCY", 5)
	if err != nil {
		return nil, err
	}

	sendConc, err := intEnv("SEND_CONCURRENCY", 10)
	if err != nil {
		return nil, err
	}

	webhookConc, err := intEnv("WEBHOOK_CONCURRENCY", 20)
	if err != nil {
		return nil, err
	}

	cooldown, err := durationEnv("COOLDOWN_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "outflow"),
			Password: getEnv("DB_PASSWORD", "outflow"),
			DBName:   getEnv("DB_NAME", "outflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Worker: WorkerConfig{
			BatchConcurrency:   batchConc,
			SendConcurrency:    sendConc,
			WebhookConcurrency: webhookConc,
		},
		Engine: EngineConfig{
			CooldownWindow:     cooldown,
			UnsubscribeBaseURL: getEnv("UNSUBSCRIBE_BASE_URL", "https://links.outflow.dev/u"),
		},
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
