package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/expensedesk/expensedesk/internal/config"
)

type traceContextKey struct{}

// NewLogger builds the process logger. Dev profile records source positions.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Observability.LogLevel,
		AddSource: cfg.Profile == config.ProfileDev,
	}

	var handler slog.Handler = slog.NewTextHandler(writer, opts)
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	}
	attrs := []slog.Attr{
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	}
	if cfg.Demo.Enabled {
		attrs = append(attrs, slog.Bool("demo_mode", true))
	}
	return slog.New(handler.WithAttrs(attrs))
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceContextKey{}).(string)
	return traceID
}
