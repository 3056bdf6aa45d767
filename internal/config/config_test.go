package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Port != 7321 {
		t.Fatalf("expected default port 7321, got %d", cfg.Port)
	}
	if cfg.MaxFileSize != 10*1024*1024 {
		t.Fatalf("unexpected max file size: %d", cfg.MaxFileSize)
	}
	if cfg.Engine.Timeout != 0 {
		t.Fatalf("expected engine timeout disabled by default, got %s", cfg.Engine.Timeout)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
port: 9000
log_level: debug
max_file_size: 2048
engine:
  kind: grpc
  addr: engine:50051
  timeout: 30s
redis:
  addr: redis:6379
  ttl: 1m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Addr())
	}
	if cfg.LogLevel != "debug" || cfg.MaxFileSize != 2048 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Engine.Kind != EngineGRPC || cfg.Engine.Addr != "engine:50051" || cfg.Engine.Timeout != 30*time.Second {
		t.Fatalf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Redis.TTL != time.Minute {
		t.Fatalf("unexpected redis ttl: %s", cfg.Redis.TTL)
	}
}

func TestLoadAppliesPortOverride(t *testing.T) {
	path := writeConfig(t, "port: 9000\n")
	t.Setenv("PORT", "8088")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if cfg.Port != 8088 {
		t.Fatalf("expected env port to win, got %d", cfg.Port)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, "port: 9000\n")
	t.Setenv("PORT", "not-a-port")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}

func TestValidateRejectsGRPCWithoutAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Kind = EngineGRPC
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for grpc engine without addr")
	}
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Kind = "vision"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}
