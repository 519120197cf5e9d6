package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the support chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	RedisURL      string
	RedisPassword string
	DatabaseURL   string

	HistoryMaxEntries int
	HistoryReadLimit  int
	HistoryTTL        time.Duration
	EscalationTTL     time.Duration
	PendingChoiceTTL  time.Duration

	LLMAdapterMode string
	LLMGatewayURL  string
	LLMTimeout     time.Duration

	KnowledgeBaseURL string
	KnowledgeTopK    int

	OdooURL      string
	OdooDatabase string
	OdooUsername string
	OdooPassword string

	BridgeMode            string
	SlackBotToken         string
	SlackSupportChannel   string
	SlackSigningSecret    string
	DiscordBotToken       string
	DiscordSupportChannel string

	StreamFragmentSize  int
	StreamFragmentDelay time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "vybuddy"),
		AllowAnyOrigin:        false,
		RedisURL:              envTrimmed("REDIS_URL"),
		RedisPassword:         envTrimmed("REDIS_PASSWORD"),
		DatabaseURL:           envTrimmed("DATABASE_URL"),
		HistoryMaxEntries:     100,
		HistoryReadLimit:      20,
		HistoryTTL:            7 * 24 * time.Hour,
		EscalationTTL:         12 * time.Hour,
		PendingChoiceTTL:      time.Hour,
		LLMAdapterMode:        envOrDefault("LLM_ADAPTER_MODE", "auto"),
		LLMGatewayURL:         envTrimmed("LLM_GATEWAY_URL"),
		LLMTimeout:            60 * time.Second,
		KnowledgeBaseURL:      envTrimmed("KNOWLEDGE_BASE_URL"),
		KnowledgeTopK:         2,
		OdooURL:               envTrimmed("ODOO_URL"),
		OdooDatabase:          envTrimmed("ODOO_DATABASE"),
		OdooUsername:          envTrimmed("ODOO_USERNAME"),
		OdooPassword:          envTrimmed("ODOO_PASSWORD"),
		BridgeMode:            envOrDefault("BRIDGE_MODE", "auto"),
		SlackBotToken:         envTrimmed("SLACK_BOT_TOKEN"),
		SlackSupportChannel:   envTrimmed("SLACK_SUPPORT_CHANNEL"),
		SlackSigningSecret:    envTrimmed("SLACK_SIGNING_SECRET"),
		DiscordBotToken:       envTrimmed("DISCORD_BOT_TOKEN"),
		DiscordSupportChannel: envTrimmed("DISCORD_SUPPORT_CHANNEL"),
		StreamFragmentSize:    48,
		StreamFragmentDelay:   20 * time.Millisecond,
		ShutdownTimeout:       15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryTTL, err = durationFromEnv("HISTORY_TTL", cfg.HistoryTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.EscalationTTL, err = durationFromEnv("ESCALATION_TTL", cfg.EscalationTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.PendingChoiceTTL, err = durationFromEnv("PENDING_CHOICE_TTL", cfg.PendingChoiceTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.StreamFragmentDelay, err = durationFromEnv("STREAM_FRAGMENT_DELAY", cfg.StreamFragmentDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryMaxEntries, err = intFromEnv("HISTORY_MAX_ENTRIES", cfg.HistoryMaxEntries)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryReadLimit, err = intFromEnv("HISTORY_READ_LIMIT", cfg.HistoryReadLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.KnowledgeTopK, err = intFromEnv("KNOWLEDGE_TOP_K", cfg.KnowledgeTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.StreamFragmentSize, err = intFromEnv("STREAM_FRAGMENT_SIZE", cfg.StreamFragmentSize)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.HistoryMaxEntries <= 0 {
		return Config{}, fmt.Errorf("HISTORY_MAX_ENTRIES must be positive")
	}
	if cfg.HistoryReadLimit <= 0 {
		return Config{}, fmt.Errorf("HISTORY_READ_LIMIT must be positive")
	}
	if cfg.HistoryTTL < time.Minute {
		return Config{}, fmt.Errorf("HISTORY_TTL must be at least 1m")
	}
	if cfg.EscalationTTL < time.Minute {
		return Config{}, fmt.Errorf("ESCALATION_TTL must be at least 1m")
	}
	if cfg.KnowledgeTopK <= 0 {
		return Config{}, fmt.Errorf("KNOWLEDGE_TOP_K must be positive")
	}
	if cfg.StreamFragmentSize <= 0 {
		return Config{}, fmt.Errorf("STREAM_FRAGMENT_SIZE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
