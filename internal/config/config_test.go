package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != "5001" {
		t.Errorf("default port = %q", cfg.Server.Port)
	}
	if cfg.Quota.DailyLimit != 3 {
		t.Errorf("default daily limit = %d", cfg.Quota.DailyLimit)
	}
	if cfg.Pool.DefaultMaxConcurrent != 3 || cfg.Pool.DefaultMaxStartsPerMinute != 3 {
		t.Errorf("default pool ceilings = %d/%d", cfg.Pool.DefaultMaxConcurrent, cfg.Pool.DefaultMaxStartsPerMinute)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: "8080"
  debug: true
pool:
  credentials:
    - secret: sk-aaa
      max_concurrent: 5
      max_starts_per_minute: 10
quota:
  backend: memory
  daily_limit: 7
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8080" || !cfg.Server.Debug {
		t.Errorf("server config not applied: %+v", cfg.Server)
	}
	if len(cfg.Pool.Credentials) != 1 {
		t.Fatalf("expected 1 pool credential, got %d", len(cfg.Pool.Credentials))
	}
	pc := cfg.Pool.Credentials[0]
	if pc.Secret != "sk-aaa" || pc.MaxConcurrent != 5 || pc.MaxStartsPerMinute != 10 {
		t.Errorf("pool credential not applied: %+v", pc)
	}
	if cfg.Quota.DailyLimit != 7 {
		t.Errorf("daily limit = %d", cfg.Quota.DailyLimit)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.Port != "5001" {
		t.Errorf("expected defaults, got port %q", cfg.Server.Port)
	}
}

func TestEnvPoolKeys(t *testing.T) {
	t.Setenv("SVGFORGE_POOL_KEY_0", "env-key-zero")
	t.Setenv("SVGFORGE_POOL_KEY_1", "env-key-one")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Pool.Credentials) != 2 {
		t.Fatalf("expected 2 env credentials, got %d", len(cfg.Pool.Credentials))
	}
	if cfg.Pool.Credentials[0].Secret != "env-key-zero" {
		t.Errorf("first env credential = %q", cfg.Pool.Credentials[0].Secret)
	}
	// Env keys pick up the configured defaults.
	if cfg.Pool.Credentials[1].MaxConcurrent != 3 || cfg.Pool.Credentials[1].MaxStartsPerMinute != 3 {
		t.Errorf("env credential ceilings = %+v", cfg.Pool.Credentials[1])
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("SVGFORGE_DAILY_LIMIT", "11")
	t.Setenv("SVGFORGE_QUOTA_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("PORT override not applied: %q", cfg.Server.Port)
	}
	if cfg.Quota.DailyLimit != 11 {
		t.Errorf("daily limit override not applied: %d", cfg.Quota.DailyLimit)
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Quota.Backend = "cassandra"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown quota backend")
	}

	cfg = Defaults()
	cfg.Keys.Backend = "dynamo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown keys backend")
	}

	cfg = Defaults()
	cfg.Pool.Credentials = []PoolCredential{{Secret: ""}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty pool secret")
	}
}
