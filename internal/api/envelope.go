package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/observability"
)

const (
	sourceDatabase = "database"
	sourceGenAI    = "genai"
	sourceRequest  = "request"
	sourceAuth     = "auth"
	sourceStorage  = "storage"
)

type envelope struct {
	Success     bool   `json:"success"`
	Data        any    `json:"data"`
	Error       string `json:"error,omitempty"`
	ErrorSource string `json:"error_source,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
	TraceID     string `json:"trace_id,omitempty"`
}

func writeData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data, TraceID: observability.TraceIDFromContext(ctx)})
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, source, code, message string, retryable bool) {
	writeJSON(w, status, envelope{
		Success:     false,
		Error:       message,
		ErrorSource: source,
		ErrorCode:   code,
		Retryable:   retryable,
		TraceID:     observability.TraceIDFromContext(ctx),
	})
}

// writeGatewayError maps a classified gateway failure onto a status code.
// Store outages are logged with their cause and reported generically.
func writeGatewayError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	kind := expense.KindOf(err)
	switch kind {
	case expense.KindValidation:
		writeError(ctx, w, http.StatusBadRequest, sourceRequest, "VALIDATION_FAILED", causeMessage(err), false)
		return
	case expense.KindNotFound:
		writeError(ctx, w, http.StatusNotFound, sourceDatabase, "NOT_FOUND", "expense was not found", false)
		return
	case expense.KindConstraint:
		writeError(ctx, w, http.StatusConflict, sourceDatabase, "CONSTRAINT_VIOLATION", causeMessage(err), false)
		return
	}

	if deps.Logger != nil {
		deps.Logger.ErrorContext(ctx, "gateway call failed",
			slog.String("kind", string(kind)),
			slog.String("route", r.Pattern),
			slog.Any("error", err),
		)
	}
	switch kind {
	case expense.KindAuthentication:
		writeError(ctx, w, http.StatusServiceUnavailable, sourceDatabase, "DATABASE_AUTHENTICATION_FAILED", "the database rejected the service credentials", false)
	case expense.KindConnectivity:
		writeError(ctx, w, http.StatusServiceUnavailable, sourceDatabase, "DATABASE_UNAVAILABLE", "the database could not be reached", true)
	case expense.KindSchema:
		writeError(ctx, w, http.StatusServiceUnavailable, sourceDatabase, "DATABASE_SCHEMA_MISMATCH", "the database schema is missing a required procedure", false)
	default:
		writeError(ctx, w, http.StatusInternalServerError, sourceDatabase, "INTERNAL", "unexpected database error", false)
	}
}

func causeMessage(err error) string {
	var typed *expense.Error
	if errors.As(err, &typed) && typed.Err != nil {
		return typed.Err.Error()
	}
	return err.Error()
}

func traceID(r *http.Request) string {
	return observability.TraceIDFromContext(r.Context())
}
