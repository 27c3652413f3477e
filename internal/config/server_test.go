package config

import (
	"testing"
)

func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "MCP_TOOL", "SCRIPTED_SETTLEMENT", "GCP_PROJECT"} {
		t.Setenv(k, "")
	}
}

func TestLoadServerDefaults(t *testing.T) {
	clearServerEnv(t)

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error: %v", err)
	}
	if cfg.Port != "8088" || cfg.ScriptedSettlement {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Tool != "proceed_payment_and_settlement_detail_info" {
		t.Errorf("Tool = %s", cfg.Tool)
	}
}

func TestLoadServerProductionNeedsNoSecrets(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SCRIPTED_SETTLEMENT", "true")
	t.Setenv("PORT", "9090")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error: %v", err)
	}
	if cfg.Environment != "production" || cfg.Port != "9090" || !cfg.ScriptedSettlement {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadServerInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"bad bool", "SCRIPTED_SETTLEMENT", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearServerEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := LoadServer(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
