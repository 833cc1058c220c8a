// Package reports aggregates exported expense snapshots.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expensedesk/expensedesk/internal/storage"
)

var (
	ErrNoExports      = errors.New("no expense exports available")
	ErrNotAnExportKey = errors.New("object is not an expense export")
)

type CategoryTotal struct {
	CategoryName string `json:"category_name"`
	StatusName   string `json:"status_name"`
	Currency     string `json:"currency"`
	Count        int64  `json:"count"`
	AmountMinor  int64  `json:"amount_minor"`
}

type CategorySummary struct {
	ObjectKey   string          `json:"object_key"`
	Totals      []CategoryTotal `json:"totals"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Engine aggregates one export object already stored under objectKey.
type Engine interface {
	CategoryTotals(ctx context.Context, objectKey string) ([]CategoryTotal, error)
}

type Service struct {
	Store  storage.ObjectStore
	Engine Engine
	Prefix string
	Clock  func() time.Time
}

// CategorySummary reports totals for objectKey, or for the most recent
// export when objectKey is empty.
func (s *Service) CategorySummary(ctx context.Context, objectKey string) (CategorySummary, error) {
	if s.Store == nil || s.Engine == nil {
		return CategorySummary{}, fmt.Errorf("reports require an object store and an engine")
	}
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		latest, err := s.LatestExport(ctx)
		if err != nil {
			return CategorySummary{}, err
		}
		objectKey = latest
	} else {
		cleaned, err := storage.CleanKey(objectKey)
		if err != nil || !strings.HasPrefix(cleaned, s.prefix()+"/") {
			return CategorySummary{}, fmt.Errorf("%w: %q", ErrNotAnExportKey, objectKey)
		}
		objectKey = cleaned
	}

	totals, err := s.Engine.CategoryTotals(ctx, objectKey)
	if err != nil {
		return CategorySummary{}, err
	}
	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	return CategorySummary{ObjectKey: objectKey, Totals: totals, GeneratedAt: clock().UTC()}, nil
}

// LatestExport returns the newest export key. Export keys sort
// chronologically.
func (s *Service) LatestExport(ctx context.Context) (string, error) {
	items, err := s.Store.List(ctx, s.prefix()+"/")
	if err != nil {
		return "", fmt.Errorf("list exports: %w", err)
	}
	latest := ""
	for _, item := range items {
		if strings.HasSuffix(item.Key, ".parquet") && item.Key > latest {
			latest = item.Key
		}
	}
	if latest == "" {
		return "", ErrNoExports
	}
	return latest, nil
}

func (s *Service) prefix() string {
	prefix := strings.Trim(strings.TrimSpace(s.Prefix), "/")
	if prefix == "" {
		return "exports/expenses"
	}
	return prefix
}
