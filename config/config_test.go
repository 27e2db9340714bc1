package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Policy.MaxAutonomyRisk != 0.3 {
		t.Errorf("expected default max autonomy risk 0.3, got %f", cfg.Policy.MaxAutonomyRisk)
	}
	if cfg.Policy.ConfidenceThreshold != 0.8 {
		t.Errorf("expected default confidence threshold 0.8, got %f", cfg.Policy.ConfidenceThreshold)
	}
	if cfg.Quota.Daily != 50 {
		t.Errorf("expected default daily quota 50, got %d", cfg.Quota.Daily)
	}
	if cfg.Quota.Hourly != 10 {
		t.Errorf("expected default hourly quota 10, got %d", cfg.Quota.Hourly)
	}
	if len(cfg.Sandbox.AllowedCommands) == 0 {
		t.Error("expected a non-empty default allowed-commands list")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name: "valid default config",
			modify: func(c *Config) {
				c.Broker.URL = "nats://localhost:4222"
				c.Store.DatabaseURL = "postgres://localhost/sentinel"
			},
			wantErr: false,
		},
		{
			name:    "risk ceiling too high",
			modify:  func(c *Config) { c.Policy.MaxAutonomyRisk = 1.5 },
			wantErr: true,
		},
		{
			name:    "confidence threshold negative",
			modify:  func(c *Config) { c.Policy.ConfidenceThreshold = -0.1 },
			wantErr: true,
		},
		{
			name:    "invalid auto approve level",
			modify:  func(c *Config) { c.Policy.AutoApproveRiskLevel = "extreme" },
			wantErr: true,
		},
		{
			name:    "non-positive daily quota",
			modify:  func(c *Config) { c.Quota.Daily = 0 },
			wantErr: true,
		},
		{
			name:    "empty sandbox root",
			modify:  func(c *Config) { c.Sandbox.Root = "" },
			wantErr: true,
		},
		{
			name:    "missing database url",
			modify:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Broker.URL = "nats://localhost:4222"
				c.Store.DatabaseURL = "postgres://localhost/sentinel"
				c.Observ.LogFormat = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MAX_AUTONOMY_RISK", "0.5")
	t.Setenv("DAILY_QUOTA", "100")
	t.Setenv("ALLOWED_COMMANDS", "kubectl, sh, helm")
	t.Setenv("BROKER_URL", "nats://broker:4222")
	t.Setenv("DATABASE_URL", "postgres://db/sentinel")
	t.Setenv("DLE_TTL_S", "3600")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PUBLIC_KNOWLEDGE_URL", "https://search.example.com/v1")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.Policy.MaxAutonomyRisk != 0.5 {
		t.Errorf("expected max autonomy risk 0.5, got %f", cfg.Policy.MaxAutonomyRisk)
	}
	if cfg.Quota.Daily != 100 {
		t.Errorf("expected daily quota 100, got %d", cfg.Quota.Daily)
	}
	if len(cfg.Sandbox.AllowedCommands) != 3 {
		t.Errorf("expected 3 allowed commands, got %d: %v", len(cfg.Sandbox.AllowedCommands), cfg.Sandbox.AllowedCommands)
	}
	if cfg.Broker.URL != "nats://broker:4222" {
		t.Errorf("expected broker url override, got %q", cfg.Broker.URL)
	}
	if cfg.Store.DatabaseURL != "postgres://db/sentinel" {
		t.Errorf("expected database url override, got %q", cfg.Store.DatabaseURL)
	}
	if cfg.Broker.DLQTTL != time.Hour {
		t.Errorf("expected dlq ttl 1h, got %v", cfg.Broker.DLQTTL)
	}
	if cfg.Observ.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Observ.LogLevel)
	}
	if cfg.Enrich.PublicKnowledgeURL != "https://search.example.com/v1" {
		t.Errorf("expected public knowledge url override, got %q", cfg.Enrich.PublicKnowledgeURL)
	}

	// Untouched settings keep their defaults.
	if cfg.Quota.Hourly != 10 {
		t.Errorf("expected hourly quota to keep default 10, got %d", cfg.Quota.Hourly)
	}
}

func TestFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("MAX_AUTONOMY_RISK", "not-a-number")

	if _, err := FromEnv(); err == nil {
		t.Error("expected error for invalid MAX_AUTONOMY_RISK value")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir + "/sentinel.local.yaml"

	content := `
policy:
  max_autonomy_risk: 0.45
sandbox:
  root: "/test/sandbox"
  allowed_commands:
    - kubectl
broker:
  url: "nats://test:4222"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Policy.MaxAutonomyRisk != 0.45 {
		t.Errorf("expected max autonomy risk 0.45, got %f", cfg.Policy.MaxAutonomyRisk)
	}
	if cfg.Sandbox.Root != "/test/sandbox" {
		t.Errorf("expected sandbox root /test/sandbox, got %s", cfg.Sandbox.Root)
	}
	if cfg.Broker.URL != "nats://test:4222" {
		t.Errorf("expected broker URL nats://test:4222, got %s", cfg.Broker.URL)
	}
	// Fields the overlay doesn't mention stay at zero value, so Merge
	// leaves the base config's value untouched.
	if cfg.Quota.Daily != 0 {
		t.Errorf("expected overlay quota.daily to be unset (zero), got %d", cfg.Quota.Daily)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{
		Policy: PolicyConfig{
			MaxAutonomyRisk: 0.6,
		},
		Sandbox: SandboxConfig{
			Root: "/override/sandbox",
		},
	}

	base.Merge(overlay)

	if base.Policy.MaxAutonomyRisk != 0.6 {
		t.Errorf("expected max autonomy risk 0.6, got %f", base.Policy.MaxAutonomyRisk)
	}
	// Confidence threshold should remain from base since overlay didn't set it.
	if base.Policy.ConfidenceThreshold != 0.8 {
		t.Errorf("expected confidence threshold to remain default, got %f", base.Policy.ConfidenceThreshold)
	}
	if base.Sandbox.Root != "/override/sandbox" {
		t.Errorf("expected sandbox root /override/sandbox, got %s", base.Sandbox.Root)
	}
}
