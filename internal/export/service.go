// Package export periodically writes the full expense list to object
// storage as parquet for offline reporting.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/observability"
	"github.com/expensedesk/expensedesk/internal/storage"
)

type Config struct {
	Interval  time.Duration
	Prefix    string
	CreatedBy string
}

type Service struct {
	Gateway     expense.Gateway
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
	NewRunID    func() string
}

type Summary struct {
	RunID       string    `json:"run_id"`
	ObjectKey   string    `json:"object_key,omitempty"`
	Rows        int64     `json:"rows"`
	SizeBytes   int64     `json:"size_bytes"`
	Skipped     bool      `json:"skipped"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.ExportOnce(ctx); err != nil {
			if s.Logger != nil {
				s.Logger.ErrorContext(ctx, "expense export failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ExportOnce writes one parquet object containing every expense. Nothing is
// written when there are no expenses.
func (s *Service) ExportOnce(ctx context.Context) (summary Summary, err error) {
	s.ensureDefaults()
	if s.Gateway == nil || s.ObjectStore == nil {
		return Summary{}, fmt.Errorf("export requires a gateway and an object store")
	}
	defer func() { observability.ObserveExport(int(summary.Rows), err) }()

	started := s.Clock().UTC()
	summary = Summary{RunID: s.NewRunID(), StartedAt: started}

	items, err := s.Gateway.ListExpenses(ctx, expense.ListFilter{})
	if err != nil {
		return summary, fmt.Errorf("list expenses: %w", err)
	}
	if len(items) == 0 {
		summary.Skipped = true
		summary.CompletedAt = s.Clock().UTC()
		return summary, nil
	}

	encoded, err := EncodeExpensesToParquet(items)
	if err != nil {
		return summary, fmt.Errorf("encode parquet: %w", err)
	}
	key, err := storage.BuildExportPath(s.Config.Prefix, started, summary.RunID)
	if err != nil {
		return summary, err
	}
	info, err := s.ObjectStore.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata: map[string]string{
			"run-id":     summary.RunID,
			"created-by": s.Config.CreatedBy,
			"row-count":  strconv.FormatInt(encoded.RecordCount, 10),
		},
	})
	if err != nil {
		return summary, fmt.Errorf("upload export: %w", err)
	}

	summary.ObjectKey = key
	summary.Rows = encoded.RecordCount
	summary.SizeBytes = info.Size
	summary.CompletedAt = s.Clock().UTC()
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "expense export written",
			slog.String("run_id", summary.RunID),
			slog.String("object_key", key),
			slog.Int64("rows", summary.Rows),
			slog.Int64("size_bytes", summary.SizeBytes),
		)
	}
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.Interval <= 0 {
		s.Config.Interval = time.Hour
	}
	if s.Config.Prefix == "" {
		s.Config.Prefix = "exports/expenses"
	}
	if s.Config.CreatedBy == "" {
		s.Config.CreatedBy = "expensedesk-exporter"
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.NewRunID == nil {
		s.NewRunID = uuid.NewString
	}
}
