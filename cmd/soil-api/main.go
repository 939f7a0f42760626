package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soil/internal/api"
	"soil/internal/auth"
	"soil/internal/config"
	"soil/internal/db"
	"soil/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rules, err := game.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("load rules failed", "err", err, "path", cfg.RulesFile)
		os.Exit(1)
	}

	var store game.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = db.NewStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, games are kept in memory")
		store = game.NewMemoryStore()
	}

	var verifier auth.Verifier
	if cfg.AuthEnabled() {
		verifier = auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	} else {
		logger.Warn("supabase not configured, authentication disabled")
	}

	gameSvc := game.NewService(store, rules, logger)
	server := api.New(cfg, logger, verifier, gameSvc)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("soil api listening", "addr", cfg.Addr, "auth", cfg.AuthEnabled())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
