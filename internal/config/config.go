package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string

	AIProvider          string
	AIFallbackProvider  string
	AIModel             string
	AIBaseURL           string
	AIRequestTimeout    time.Duration
	AIRequestsPerMinute int
	OpenAIKey           string
	AnthropicKey        string
	AnthropicModel      string

	ConfidenceFloor     int
	SimilarityThreshold float64
	CaptureConfigFile   string

	GmailCredentialsFile string
	GmailRefreshToken    string
	GmailUser            string
	MailboxScanInterval  time.Duration

	RecurrenceScanInterval time.Duration
	DLQRetention           time.Duration
	DLQGCInterval          time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AIProvider:          getEnv("AI_PROVIDER", "openai"),
		AIFallbackProvider:  getEnv("AI_FALLBACK_PROVIDER", ""),
		AIModel:             getEnv("AI_MODEL", ""),
		AIBaseURL:           getEnv("AI_BASE_URL", ""),
		AIRequestTimeout:    getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),
		AIRequestsPerMinute: getEnvInt("AI_REQUESTS_PER_MINUTE", 50),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:        getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnv("ANTHROPIC_MODEL", ""),

		ConfidenceFloor:     getEnvInt("CONFIDENCE_FLOOR", 40),
		SimilarityThreshold: float64(getEnvInt("SIMILARITY_THRESHOLD", 85)),
		CaptureConfigFile:   getEnv("CAPTURE_CONFIG_FILE", ""),

		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", ""),
		GmailRefreshToken:    getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailUser:            getEnv("GMAIL_USER", "me"),
		MailboxScanInterval:  getEnvDuration("MAILBOX_SCAN_INTERVAL", time.Hour),

		RecurrenceScanInterval: getEnvDuration("RECURRENCE_SCAN_INTERVAL", time.Minute),
		DLQRetention:           getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
		DLQGCInterval:          getEnvDuration("DLQ_GC_INTERVAL", time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for job queueing (batch and mailbox scans run on the worker)")
	}

	if cfg.ConfidenceFloor < 0 || cfg.ConfidenceFloor > 100 {
		return nil, fmt.Errorf("CONFIDENCE_FLOOR must be between 0 and 100, got %d", cfg.ConfidenceFloor)
	}

	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 100 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be between 1 and 100, got %v", cfg.SimilarityThreshold)
	}

	return cfg, nil
}

// MailboxConfigured reports whether Gmail credentials are present
func (c *Config) MailboxConfigured() bool {
	return c.GmailCredentialsFile != "" && c.GmailRefreshToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
