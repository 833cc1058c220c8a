package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/expensedesk/expensedesk/internal/api"
	"github.com/expensedesk/expensedesk/internal/auth"
	"github.com/expensedesk/expensedesk/internal/bootstrap"
	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/export"
	"github.com/expensedesk/expensedesk/internal/observability"
	"github.com/expensedesk/expensedesk/internal/reports"
	duckdbengine "github.com/expensedesk/expensedesk/internal/reports/duckdb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("expensedesk-api")
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

	objectStore, err := bootstrap.OpenObjectStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	model, err := bootstrap.NewModelClient(cfg)
	if err != nil {
		logger.Error("failed to initialize chat model client", slog.Any("error", err))
		os.Exit(1)
	}
	if model == nil {
		logger.Info("chat disabled, EXPENSEDESK_AI_ENDPOINT is not set")
	}

	deps := api.Dependencies{
		Logger:  logger,
		Gateway: gateway,
		Chat:    bootstrap.NewChatService(cfg, gateway, model, logger),
		Readiness: api.CombineReadinessChecks(
			api.CheckGateway(gateway),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if objectStore != nil {
		deps.Receipts = objectStore
		deps.Exporter = &export.Service{
			Gateway:     gateway,
			ObjectStore: objectStore,
			Config: export.Config{
				Interval:  cfg.Export.Interval,
				Prefix:    cfg.Export.Prefix,
				CreatedBy: cfg.Service.Name,
			},
			Logger: logger,
		}
		deps.Reports = &reports.Service{
			Store:  objectStore,
			Engine: duckdbengine.NewEngine(objectStore),
			Prefix: cfg.Export.Prefix,
		}
	}
	if cfg.Auth.Required {
		validator, err := bootstrap.NewAuthValidator(cfg)
		if err != nil {
			logger.Error("failed to configure auth", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Bool("demo_mode", cfg.Demo.Enabled),
			slog.Bool("genai_enabled", model != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
