package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	WorkerPort     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	DBDriver         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLiteDSN        string

	// Cache
	CacheBackend          string
	RedisHost             string
	RedisPort             string
	RedisPassword         string
	RedisDB               int
	ModerationCacheTTL    time.Duration
	AdvertisementCacheTTL time.Duration

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	ModerationTopic    string
	ModerationDLQTopic string

	// Worker
	MaxRetries int
	RetryDelay time.Duration

	// Model
	ModelPath           string
	ModelTrainIfMissing bool
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is applied first without overriding variables
// that are already set.
func Load() *Config {
	_ = godotenv.Load()

	brokers := getStringSliceEnv("KAFKA_BROKERS", nil)
	if len(brokers) == 0 {
		brokers = getStringSliceEnv("KAFKA_BOOTSTRAP", []string{"localhost:9092"})
	}

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8000"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		WorkerPort:     getEnv("WORKER_PORT", "8091"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "moderation"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "moderation"),
		PostgresDB:       getEnv("POSTGRES_DB", "moderation"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLiteDSN:        getEnv("SQLITE_DSN", "file:moderation.db?_pragma=foreign_keys(1)"),

		CacheBackend:          strings.ToLower(getEnv("CACHE_BACKEND", "redis")),
		RedisHost:             getEnv("REDIS_HOST", "localhost"),
		RedisPort:             getEnv("REDIS_PORT", "6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getIntEnv("REDIS_DB", 0),
		ModerationCacheTTL:    getDuration("MODERATION_CACHE_TTL", time.Hour),
		AdvertisementCacheTTL: getDuration("ADVERTISEMENT_CACHE_TTL", time.Hour),

		KafkaBrokers:       brokers,
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "moderation_worker_group"),
		ModerationTopic:    getEnv("MODERATION_TOPIC", "moderation"),
		ModerationDLQTopic: getEnv("MODERATION_DLQ_TOPIC", "moderation_dlq"),

		MaxRetries: getIntEnv("MODERATION_MAX_RETRIES", 3),
		RetryDelay: getDuration("MODERATION_RETRY_DELAY", 5*time.Second),

		ModelPath:           getEnv("MODEL_PATH", "model.json"),
		ModelTrainIfMissing: getBoolEnv("MODEL_TRAIN_IF_MISSING", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated list, dropping empty entries.
func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
