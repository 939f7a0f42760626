package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	SupabaseURL     string
	SupabaseAnonKey string
	RulesFile       string
	SettleRPS       float64
	SettleBurst     int
}

// AuthEnabled reports whether bearer tokens are verified against Supabase.
func (c APIConfig) AuthEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

type WorkerConfig struct {
	DatabaseURL string
	RulesFile   string
	SettleEvery time.Duration
	RunOnce     bool
}

type CLIConfig struct {
	APIBaseURL      string
	SupabaseURL     string
	SupabaseAnonKey string
}

// loadDotEnv reads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func loadDotEnv() {
	path := envDefault("SOIL_ENV_FILE", ".env")
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

func LoadAPIFromEnv() (APIConfig, error) {
	loadDotEnv()
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("SOIL_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SupabaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		RulesFile:       strings.TrimSpace(os.Getenv("SOIL_RULES_FILE")),
		SettleRPS:       envFloatDefault("SOIL_SETTLE_RPS", 2),
		SettleBurst:     envIntDefault("SOIL_SETTLE_BURST", 4),
	}
	if (cfg.SupabaseURL == "") != (cfg.SupabaseAnonKey == "") {
		return cfg, fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY must be set together")
	}
	if cfg.SettleRPS <= 0 {
		return cfg, fmt.Errorf("SOIL_SETTLE_RPS must be > 0")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	loadDotEnv()
	cfg := WorkerConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RulesFile:   strings.TrimSpace(os.Getenv("SOIL_RULES_FILE")),
		SettleEvery: envDurationDefault("SOIL_SETTLE_EVERY", time.Minute),
		RunOnce:     envBoolDefault("SOIL_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SettleEvery <= 0 {
		return cfg, fmt.Errorf("SOIL_SETTLE_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	loadDotEnv()
	return CLIConfig{
		APIBaseURL:      strings.TrimRight(envDefault("SOIL_API_BASE_URL", "http://localhost:8080"), "/"),
		SupabaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
