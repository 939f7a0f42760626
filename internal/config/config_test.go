package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("SOIL_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{
		"PORT", "SOIL_API_ADDR", "DATABASE_URL", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"SOIL_RULES_FILE", "SOIL_SETTLE_RPS", "SOIL_SETTLE_BURST", "SOIL_SETTLE_EVERY",
		"SOIL_WORKER_RUN_ONCE", "SOIL_API_BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAPIDefaults(t *testing.T) {
	isolate(t)
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DatabaseURL != "" || cfg.AuthEnabled() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SettleRPS != 2 || cfg.SettleBurst != 4 {
		t.Fatalf("rate got=%v/%d want=2/4", cfg.SettleRPS, cfg.SettleBurst)
	}
}

func TestLoadAPIPortAndAuth(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9000")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr got=%s want=:9000", cfg.Addr)
	}
	if cfg.SupabaseURL != "https://example.supabase.co" || !cfg.AuthEnabled() {
		t.Fatalf("auth config %+v", cfg)
	}
}

func TestLoadAPIRejectsHalfAuth(t *testing.T) {
	isolate(t)
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error without anon key")
	}
}

func TestLoadWorker(t *testing.T) {
	isolate(t)
	if _, err := LoadWorkerFromEnv(); err == nil {
		t.Fatalf("expected DATABASE_URL error")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/soil")
	t.Setenv("SOIL_SETTLE_EVERY", "30s")
	t.Setenv("SOIL_WORKER_RUN_ONCE", "true")
	cfg, err := LoadWorkerFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SettleEvery != 30*time.Second || !cfg.RunOnce {
		t.Fatalf("got every=%s once=%v", cfg.SettleEvery, cfg.RunOnce)
	}
}

func TestDotEnvFillsUnsetKeys(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SOIL_API_BASE_URL=http://farm.local:9090/\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SOIL_ENV_FILE", path)
	os.Unsetenv("SOIL_API_BASE_URL")
	cfg := LoadCLIFromEnv()
	if cfg.APIBaseURL != "http://farm.local:9090" {
		t.Fatalf("base url got=%s", cfg.APIBaseURL)
	}
	os.Unsetenv("SOIL_API_BASE_URL")
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("SOIL_TEST_DURATION", "soon")
	t.Setenv("SOIL_TEST_BOOL", "maybe")
	if got := envDurationDefault("SOIL_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("duration got=%s", got)
	}
	if got := envBoolDefault("SOIL_TEST_BOOL", true); !got {
		t.Fatalf("bool got=%v", got)
	}
}
