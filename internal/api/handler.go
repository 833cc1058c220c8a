package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/expensedesk/expensedesk/internal/chat"
	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/export"
	"github.com/expensedesk/expensedesk/internal/observability"
	"github.com/expensedesk/expensedesk/internal/reports"
	"github.com/expensedesk/expensedesk/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

type ChatService interface {
	Enabled() bool
	Send(ctx context.Context, req chat.Request) (chat.Result, error)
}

type ExportRunner interface {
	ExportOnce(ctx context.Context) (export.Summary, error)
}

type ReportService interface {
	CategorySummary(ctx context.Context, objectKey string) (reports.CategorySummary, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Gateway           expense.Gateway
	Chat              ChatService
	Receipts          storage.ObjectStore
	Exporter          ExportRunner
	Reports           ReportService
	Now               func() time.Time
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Chat == nil {
		deps.Chat = chat.NewService(deps.Gateway, nil, chat.Config{})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	settings := handlerSettings{
		defaultCurrency: cfg.Chat.DefaultCurrency,
		receiptMaxBytes: cfg.Receipts.MaxBytes,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, sourceDatabase, "NOT_READY", err.Error(), true)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := map[string]func(w http.ResponseWriter, r *http.Request){
		"GET /v1/expenses": func(w http.ResponseWriter, r *http.Request) {
			handleListExpenses(deps, w, r)
		},
		"POST /v1/expenses": func(w http.ResponseWriter, r *http.Request) {
			handleCreateExpense(deps, settings, w, r)
		},
		"GET /v1/expenses/{id}": func(w http.ResponseWriter, r *http.Request) {
			handleGetExpense(deps, w, r)
		},
		"POST /v1/expenses/{id}/submit": func(w http.ResponseWriter, r *http.Request) {
			handleSubmitExpense(deps, w, r)
		},
		"POST /v1/expenses/{id}/approve": func(w http.ResponseWriter, r *http.Request) {
			handleReviewExpense(deps, w, r, expense.StatusApproved)
		},
		"POST /v1/expenses/{id}/reject": func(w http.ResponseWriter, r *http.Request) {
			handleReviewExpense(deps, w, r, expense.StatusRejected)
		},
		"PUT /v1/expenses/{id}/receipt": func(w http.ResponseWriter, r *http.Request) {
			handleUploadReceipt(deps, settings, w, r)
		},
		"GET /v1/expenses/{id}/receipt": func(w http.ResponseWriter, r *http.Request) {
			handleDownloadReceipt(deps, w, r)
		},
		"GET /v1/approvals/pending": func(w http.ResponseWriter, r *http.Request) {
			handleListPendingApprovals(deps, w, r)
		},
		"GET /v1/categories": func(w http.ResponseWriter, r *http.Request) {
			handleListCategories(deps, w, r)
		},
		"GET /v1/statuses": func(w http.ResponseWriter, r *http.Request) {
			handleListStatuses(deps, w, r)
		},
		"GET /v1/users": func(w http.ResponseWriter, r *http.Request) {
			handleListUsers(deps, w, r)
		},
		"GET /v1/dashboard": func(w http.ResponseWriter, r *http.Request) {
			handleDashboard(deps, settings, w, r)
		},
		"POST /v1/chat": func(w http.ResponseWriter, r *http.Request) {
			handleChat(deps, w, r)
		},
		"GET /v1/chat/status": func(w http.ResponseWriter, r *http.Request) {
			writeData(r.Context(), w, http.StatusOK, map[string]any{"genai_enabled": deps.Chat.Enabled()})
		},
		"POST /v1/exports": func(w http.ResponseWriter, r *http.Request) {
			handleRunExport(deps, w, r)
		},
		"GET /v1/reports/categories": func(w http.ResponseWriter, r *http.Request) {
			handleCategoryReport(deps, w, r)
		},
	}

	protected := http.NewServeMux()
	for pattern, handle := range routes {
		protected.HandleFunc(pattern, handle)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, sourceAuth, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

type handlerSettings struct {
	defaultCurrency string
	receiptMaxBytes int64
}

// CheckGateway probes the store through the gateway health check.
func CheckGateway(gateway expense.Gateway) ReadinessCheck {
	return func(ctx context.Context) error {
		if gateway == nil {
			return errors.New("expense gateway is not configured")
		}
		return gateway.HealthCheck(ctx)
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
