// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	Env       string
	SecretKey string
	DataDir   string

	// Completion API.
	APIKeys           []string
	Model             string
	BaseURL           string
	CompletionTimeout time.Duration

	// Session store.
	MaxChats      int
	EvictionBatch int
	HistorySize   int
	SessionTTL    time.Duration

	// Request throttling.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	AllowedOrigins []string

	Transcript TranscriptConfig
}

// TranscriptConfig controls NDJSON transcript logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("APP_ENV", "development"),
		SecretKey:         getEnv("SECRET_KEY", "dev_key"),
		DataDir:           getEnv("DATA_DIR", "./documentos"),
		APIKeys:           splitList(getEnv("OPENROUTER_API_KEYS", "")),
		Model:             getEnv("OPENROUTER_MODEL", "meta-llama/llama-3.2-3b-instruct:free"),
		BaseURL:           getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 30*time.Second),
		MaxChats:          getEnvInt("MAX_CHATS", 20),
		EvictionBatch:     getEnvInt("EVICTION_BATCH", 10),
		HistorySize:       getEnvInt("HISTORY_SIZE", 10),
		SessionTTL:        getEnvDuration("SESSION_TTL", 60*time.Minute),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", false),
			Dir:       getEnv("TRANSCRIPT_DIR", "./data/transcripts"),
			QueueSize: getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// An empty API key list is allowed: the general-query path degrades to a
// fixed reply instead of crashing.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}
	if c.MaxChats <= 0 {
		return fmt.Errorf("MAX_CHATS must be > 0")
	}
	if c.EvictionBatch <= 0 || c.EvictionBatch > c.MaxChats {
		return fmt.Errorf("EVICTION_BATCH must be in 1..MAX_CHATS")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("HISTORY_SIZE must be > 0")
	}
	if c.CompletionTimeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be > 0")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty when transcripts are enabled")
	}
	if c.Transcript.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// AIAvailable reports whether at least one completion credential is set.
func (c *Config) AIAvailable() bool {
	return len(c.APIKeys) > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
