package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wasipo/harbor-sub000/internal/infra/app"
	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rbac-admin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set RBAC_* variables directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return application.Run(ctx)
}
