package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Server.Port = 0
	cfg.Bridge.SlippageBps = 20000
	cfg.Workflow.SettleMaxAttempts = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"unknown mode", "port", "slippage_bps", "settle_max_attempts"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestValidate_CheckpointPathRequiredWithoutRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Enabled = false
	cfg.Workflow.CheckpointPath = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "checkpoint_path") {
		t.Fatalf("expected checkpoint_path error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARIVISION_BSC_RPC", "https://rpc.example")
	t.Setenv("PARIVISION_WORKFLOW_STALENESS_WINDOW", "5m")
	t.Setenv("PARIVISION_REDIS_ENABLED", "false")
	t.Setenv("PARIVISION_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.BSC.RPC != "https://rpc.example" {
		t.Errorf("bsc rpc override not applied: %s", cfg.BSC.RPC)
	}
	if cfg.Workflow.StalenessWindow.Duration != 5*time.Minute {
		t.Errorf("staleness window override not applied: %s", cfg.Workflow.StalenessWindow)
	}
	if cfg.Redis.Enabled {
		t.Error("redis enabled override not applied")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins override not applied: %v", cfg.Server.CORSOrigins)
	}
}
