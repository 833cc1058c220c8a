// Package bootstrap builds the runtime dependencies shared by the binaries
// from a loaded config.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/expensedesk/expensedesk/internal/auth"
	"github.com/expensedesk/expensedesk/internal/chat"
	"github.com/expensedesk/expensedesk/internal/chat/openai"
	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/expense/memory"
	"github.com/expensedesk/expensedesk/internal/expense/postgres"
	"github.com/expensedesk/expensedesk/internal/storage"
	memstore "github.com/expensedesk/expensedesk/internal/storage/memory"
	s3store "github.com/expensedesk/expensedesk/internal/storage/s3"
)

// Gateway wraps the configured expense gateway together with its health
// check and the database handle to close on shutdown.
type Gateway struct {
	expense.Gateway
	db *sql.DB
}

func (g *Gateway) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

// OpenGateway connects to PostgreSQL, or returns the seeded in-memory
// gateway when demo mode is on. Every call goes through the instrumented
// wrapper.
func OpenGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Gateway, error) {
	if cfg.Demo.Enabled {
		if logger != nil {
			logger.Warn("demo mode enabled, expenses are kept in memory")
		}
		return &Gateway{Gateway: expense.NewInstrumentedGateway(memory.NewSeeded(), cfg.Database.CallTimeout)}, nil
	}

	db, err := postgres.Open(ctx, postgres.DBConfig{
		DSN:              cfg.Database.DSN,
		ApplicationName:  cfg.Service.Name,
		StatementTimeout: cfg.Database.CallTimeout,
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxIdleTime:  cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	inner := postgres.NewGateway(db)
	return &Gateway{Gateway: expense.NewInstrumentedGateway(inner, cfg.Database.CallTimeout), db: db}, nil
}

// OpenObjectStore returns the S3 store, an in-memory store in demo mode, or
// nil when object storage is disabled.
func OpenObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if cfg.Demo.Enabled {
		return memstore.New(), nil
	}
	if !cfg.ObjectStore.Enabled {
		return nil, nil
	}
	store, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewModelClient returns nil when no chat endpoint is configured. A static
// key wins over the Azure identity; Azure deployments expect it in the
// api-key header.
func NewModelClient(cfg config.Config) (chat.ModelClient, error) {
	if !cfg.AI.Enabled() {
		return nil, nil
	}

	var credential openai.Credential
	if key := strings.TrimSpace(cfg.AI.APIKey); key != "" {
		header := ""
		if strings.TrimSpace(cfg.AI.Deployment) != "" {
			header = "api-key"
		}
		credential = openai.APIKeyCredential{Key: key, Header: header}
	} else {
		azure, err := openai.NewAzureCredential(cfg.AI.IdentityClientID)
		if err != nil {
			return nil, err
		}
		credential = azure
	}

	client, err := openai.New(openai.Config{
		Endpoint:    cfg.AI.Endpoint,
		Deployment:  cfg.AI.Deployment,
		APIVersion:  cfg.AI.APIVersion,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
		Credential:  credential,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func NewChatService(cfg config.Config, gateway expense.Gateway, model chat.ModelClient, logger *slog.Logger) *chat.Service {
	return chat.NewService(gateway, model, chat.Config{
		MaxToolRounds:   cfg.Chat.MaxToolRounds,
		MaxHistoryTurns: cfg.Chat.MaxHistoryTurns,
		DefaultCurrency: cfg.Chat.DefaultCurrency,
		Logger:          logger,
	})
}

// NewAuthValidator accepts static API keys and, when a secret is set,
// HS256 bearer tokens.
func NewAuthValidator(cfg config.Config) (auth.APIKeyValidator, error) {
	static, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
	if err != nil {
		return nil, fmt.Errorf("parse static auth keys: %w", err)
	}
	validators := auth.ChainValidator{static}
	if strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
		jwtValidator, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			return nil, err
		}
		validators = append(validators, jwtValidator)
	}
	if static.Len() == 0 && len(validators) == 1 {
		return nil, fmt.Errorf("auth is required but no static keys or jwt secret are configured")
	}
	return validators, nil
}
