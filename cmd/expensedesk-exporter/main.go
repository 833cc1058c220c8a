package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/expensedesk/expensedesk/internal/bootstrap"
	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/export"
	"github.com/expensedesk/expensedesk/internal/observability"
)

func main() {
	once := flag.Bool("once", false, "run a single export and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("expensedesk-exporter")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	gateway, err := bootstrap.OpenGateway(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open expense database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = gateway.Close() }()

	store, err := bootstrap.OpenObjectStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}
	if store == nil {
		logger.Error("exporter requires EXPENSEDESK_OBJECTSTORE_ENABLED=true")
		os.Exit(1)
	}

	svc := &export.Service{
		Gateway:     gateway,
		ObjectStore: store,
		Config: export.Config{
			Interval:  cfg.Export.Interval,
			Prefix:    cfg.Export.Prefix,
			CreatedBy: cfg.Export.CreatedBy,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		summary, err := svc.ExportOnce(ctx)
		if err != nil {
			logger.Error("export failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("export finished",
			slog.String("object_key", summary.ObjectKey),
			slog.Int64("rows", summary.Rows),
			slog.Bool("skipped", summary.Skipped),
		)
		return
	}

	logger.Info("exporter worker started", slog.Duration("interval", cfg.Export.Interval))
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exporter worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("exporter worker stopped")
}
