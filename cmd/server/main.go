package main

import (
	"fmt"
	"log/slog"
	"os"

	"go-freelance/internal/app"
	"go-freelance/internal/config"
	"go-freelance/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.IsProduction(), cfg.LogLevel))
	slog.Info("configuration loaded", "env", cfg.Env, "memory_store", cfg.UsesMemoryStore())

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
