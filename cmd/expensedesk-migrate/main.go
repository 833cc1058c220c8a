package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/expense/postgres"
	"github.com/expensedesk/expensedesk/internal/migrations"
	"github.com/expensedesk/expensedesk/internal/observability"
)

func main() {
	direction := flag.String("direction", "up", "up, down or status")
	steps := flag.Int("steps", 0, "steps to run; 0 applies every pending migration on up and one on down")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("expensedesk-migrate")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)
	if cfg.Database.DSN == "" {
		logger.Error("EXPENSEDESK_DB_DSN is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := postgres.Open(ctx, postgres.DBConfig{DSN: cfg.Database.DSN, ApplicationName: cfg.Service.Name, MaxOpenConns: 1})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner(migrations.WithLogger(logger))
	switch *direction {
	case "up", "down":
		run := runner.Up
		if *direction == "down" {
			run = runner.Down
		}
		count, err := run(ctx, db, *steps)
		if err != nil {
			logger.Error("migration failed",
				slog.String("direction", *direction),
				slog.Int("completed", count),
				slog.Any("error", err),
			)
			os.Exit(1)
		}
		logger.Info("migrations complete", slog.String("direction", *direction), slog.Int("count", count))
	case "status":
		status, err := runner.Status(ctx, db)
		if err != nil {
			logger.Error("failed to read migration status", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("applied: %v\npending: %v\n", status.Applied, status.Pending)
		if len(status.Pending) > 0 {
			os.Exit(3)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown direction %q: want up, down or status\n", *direction)
		os.Exit(2)
	}
}
