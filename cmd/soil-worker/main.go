package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soil/internal/config"
	"soil/internal/db"
	"soil/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
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
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := game.NewService(db.NewStore(pool), rules, logger)

	if cfg.RunOnce {
		advanced, err := svc.SettleActive(ctx)
		if err != nil {
			logger.Error("settle pass failed", "err", err, "advanced", advanced)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "advanced", advanced)
		return
	}

	ticker := time.NewTicker(cfg.SettleEvery)
	defer ticker.Stop()

	logger.Info("worker started", "settle_every", cfg.SettleEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			advanced, err := svc.SettleActive(ctx)
			if err != nil {
				logger.Error("settle pass failed", "err", err, "advanced", advanced)
				continue
			}
			if advanced > 0 {
				logger.Info("settle pass complete", "advanced", advanced)
			}
		}
	}
}
