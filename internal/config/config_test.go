package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.LLMAdapterMode != "auto" {
		t.Fatalf("LLMAdapterMode = %q, want %q", cfg.LLMAdapterMode, "auto")
	}
	if cfg.HistoryTTL != 7*24*time.Hour {
		t.Fatalf("HistoryTTL = %v, want 168h", cfg.HistoryTTL)
	}
	if cfg.EscalationTTL != 12*time.Hour {
		t.Fatalf("EscalationTTL = %v, want 12h", cfg.EscalationTTL)
	}
	if cfg.HistoryMaxEntries != 100 {
		t.Fatalf("HistoryMaxEntries = %d, want 100", cfg.HistoryMaxEntries)
	}
	if cfg.KnowledgeTopK != 2 {
		t.Fatalf("KnowledgeTopK = %d, want 2", cfg.KnowledgeTopK)
	}
}

func TestLoadExplicitOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_GATEWAY_URL", "http://localhost:7777/v1/generate")
	t.Setenv("HISTORY_READ_LIMIT", "5")
	t.Setenv("ESCALATION_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMGatewayURL != "http://localhost:7777/v1/generate" {
		t.Fatalf("LLMGatewayURL = %q, want explicit value", cfg.LLMGatewayURL)
	}
	if cfg.HistoryReadLimit != 5 {
		t.Fatalf("HistoryReadLimit = %d, want 5", cfg.HistoryReadLimit)
	}
	if cfg.EscalationTTL != 30*time.Minute {
		t.Fatalf("EscalationTTL = %v, want 30m", cfg.EscalationTTL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("HISTORY_MAX_ENTRIES", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for HISTORY_MAX_ENTRIES=0")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"REDIS_URL",
		"REDIS_PASSWORD",
		"DATABASE_URL",
		"HISTORY_MAX_ENTRIES",
		"HISTORY_READ_LIMIT",
		"HISTORY_TTL",
		"ESCALATION_TTL",
		"PENDING_CHOICE_TTL",
		"LLM_ADAPTER_MODE",
		"LLM_GATEWAY_URL",
		"LLM_TIMEOUT",
		"KNOWLEDGE_BASE_URL",
		"KNOWLEDGE_TOP_K",
		"ODOO_URL",
		"ODOO_DATABASE",
		"ODOO_USERNAME",
		"ODOO_PASSWORD",
		"BRIDGE_MODE",
		"SLACK_BOT_TOKEN",
		"SLACK_SUPPORT_CHANNEL",
		"SLACK_SIGNING_SECRET",
		"DISCORD_BOT_TOKEN",
		"DISCORD_SUPPORT_CHANNEL",
		"STREAM_FRAGMENT_SIZE",
		"STREAM_FRAGMENT_DELAY",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
