package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	JWTSecret string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	DBNameTest string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioHost      string
	MinioPort      string
	MinioUsername  string
	MinioPassword  string
	BucketName     string
	BucketNameTest string

	RabbitMQURL      string
	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPass     string
	RabbitMQVhost    string
	RabbitMQPrefetch int

	// Presigned transfer handles issued during negotiation.
	PartURLExpiry    time.Duration
	SessionTTL       time.Duration
	ConfirmLockTTL   time.Duration
	FingerprintCache time.Duration

	GCWorkerConcurrency int
	GCRate              float64
	GCBurst             int
	GCRetryMax          int
	GCRetryDelays       []time.Duration

	// Client (syncd) settings.
	ServerURL           string
	DeviceID            string
	DeviceName          string
	DeviceSecret        string
	SyncDir             string
	ChunkCacheDir       string
	LocalDBPath         string
	ChunkSize           int64
	SyncInterval        time.Duration
	RequestTimeout      time.Duration
	MaxRetries          int
	UploadConcurrency   int
	DownloadConcurrency int
}

var AppConfig Config

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := time.ParseDuration(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// InitConfig loads configuration from the environment.
func InitConfig() {
	rabbitHost := getEnv("RABBITMQ_HOST", "localhost")
	rabbitPort := getEnv("RABBITMQ_PORT", "5672")
	rabbitUser := getEnv("RABBITMQ_USER", "guest")
	rabbitPass := getEnv("RABBITMQ_PASSWORD", "guest")
	rabbitVhost := getEnv("RABBITMQ_VHOST", "/")
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(rabbitUser),
			url.PathEscape(rabbitPass),
			rabbitHost,
			rabbitPort,
			url.PathEscape(rabbitVhost),
		)
	}
	gcRetryDelays := getEnvDurationList(
		"GC_RETRY_DELAYS",
		[]time.Duration{10 * time.Second, 30 * time.Second, 2 * time.Minute, 10 * time.Minute},
	)
	home, _ := os.UserHomeDir()
	AppConfig = Config{
		JWTSecret:  getEnv("JWT_SECRET", "l=ax+b"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPass:     getEnv("DB_PASS", "root"),
		DBName:     getEnv("DB_NAME", "FireBox"),
		DBNameTest: getEnv("DB_NAME_TEST", "FireBox_Test"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		MinioHost:      getEnv("MINIO_HOST", "localhost"),
		MinioPort:      getEnv("MINIO_PORT", "9000"),
		MinioUsername:  getEnv("MINIO_USERNAME", "minioadmin"),
		MinioPassword:  getEnv("MINIO_PASSWORD", "minioadmin"),
		BucketName:     getEnv("BUCKET_NAME", "firebox"),
		BucketNameTest: getEnv("BUCKET_NAME_TEST", "firebox-test"),

		RabbitMQURL:      rabbitURL,
		RabbitMQHost:     rabbitHost,
		RabbitMQPort:     rabbitPort,
		RabbitMQUser:     rabbitUser,
		RabbitMQPass:     rabbitPass,
		RabbitMQVhost:    rabbitVhost,
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 8),

		PartURLExpiry:    getEnvDuration("PART_URL_EXPIRY", 15*time.Minute),
		SessionTTL:       getEnvDuration("SESSION_TTL", 30*time.Minute),
		ConfirmLockTTL:   getEnvDuration("CONFIRM_LOCK_TTL", 30*time.Second),
		FingerprintCache: getEnvDuration("FINGERPRINT_CACHE_TTL", 10*time.Minute),

		GCWorkerConcurrency: getEnvInt("GC_WORKER_CONCURRENCY", 4),
		GCRate:              getEnvFloat("GC_RATE", 8),
		GCBurst:             getEnvInt("GC_BURST", 16),
		GCRetryMax:          getEnvInt("GC_RETRY_MAX", 5),
		GCRetryDelays:       gcRetryDelays,

		ServerURL:           getEnv("SERVER_URL", "http://localhost:8000"),
		DeviceID:            getEnv("DEVICE_ID", ""),
		DeviceName:          getEnv("DEVICE_NAME", hostname()),
		DeviceSecret:        getEnv("DEVICE_SECRET", ""),
		SyncDir:             getEnv("SYNC_DIR", filepath.Join(home, "firebox")),
		ChunkCacheDir:       getEnv("CHUNK_CACHE_DIR", filepath.Join(home, ".firebox", "chunks")),
		LocalDBPath:         getEnv("LOCAL_DB_PATH", filepath.Join(home, ".firebox", "firebox.db")),
		ChunkSize:           getEnvInt64("CHUNK_SIZE", 5*1024*1024),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 2*time.Minute),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		UploadConcurrency:   getEnvInt("UPLOAD_CONCURRENCY", 4),
		DownloadConcurrency: getEnvInt("DOWNLOAD_CONCURRENCY", 4),
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "firebox-client"
	}
	return name
}
