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
	Port        string
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration

	AI              AIConfig
	ServiceNow      ServiceNowConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig

	MaxRequestBodySize int64
}

// AIConfig holds completion-gateway settings.
type AIConfig struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ServiceNowConfig holds ticketing-gateway settings.
type ServiceNowConfig struct {
	InstanceURL string
	Username    string
	Password    string
	Category    string
	Timeout     time.Duration
}

// RateLimitConfig controls the per-session request limiter.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/helpdesk.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 24*time.Hour),
		AI: AIConfig{
			APIURL:  getEnv("AI_API_URL", "https://api.groq.com/openai/v1/chat/completions"),
			APIKey:  getEnv("AI_API_KEY", ""),
			Model:   getEnv("AI_MODEL", "llama3-8b-8192"),
			Timeout: getEnvDuration("AI_TIMEOUT", 60*time.Second),
		},
		ServiceNow: ServiceNowConfig{
			InstanceURL: getEnv("SERVICENOW_URL", ""),
			Username:    getEnv("SERVICENOW_USERNAME", ""),
			Password:    getEnv("SERVICENOW_PASSWORD", ""),
			Category:    getEnv("SERVICENOW_CATEGORY", "inquiry"),
			Timeout:     getEnvDuration("TICKET_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set. Gateway
// credentials may be empty: the gateways then answer with their fallback
// text or failure sentinel, which is their contract anyway.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AI.APIURL == "" {
		return fmt.Errorf("AI_API_URL cannot be empty")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("AI_MODEL cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
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
