package reports

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/expensedesk/expensedesk/internal/storage"
	"github.com/expensedesk/expensedesk/internal/storage/memory"
)

type fakeEngine struct {
	lastKey string
}

func (f *fakeEngine) CategoryTotals(_ context.Context, objectKey string) ([]CategoryTotal, error) {
	f.lastKey = objectKey
	return []CategoryTotal{{CategoryName: "Travel", StatusName: "Approved", Currency: "GBP", Count: 1, AmountMinor: 100}}, nil
}

func putExport(t *testing.T, store storage.ObjectStore, key string) {
	t.Helper()
	if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err != nil {
		t.Fatalf("Put(%q) error = %v", key, err)
	}
}

func TestCategorySummaryUsesLatestExport(t *testing.T) {
	store := memory.New()
	putExport(t, store, "exports/expenses/date=2026-03-01/expenses-1772323200-a.parquet")
	putExport(t, store, "exports/expenses/date=2026-03-02/expenses-1772409600-b.parquet")
	putExport(t, store, "receipts/1/zzz.png")

	engine := &fakeEngine{}
	now := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	svc := &Service{Store: store, Engine: engine, Clock: func() time.Time { return now }}

	summary, err := svc.CategorySummary(context.Background(), "")
	if err != nil {
		t.Fatalf("CategorySummary() error = %v", err)
	}
	want := "exports/expenses/date=2026-03-02/expenses-1772409600-b.parquet"
	if summary.ObjectKey != want || engine.lastKey != want {
		t.Fatalf("ObjectKey = %q, engine key = %q", summary.ObjectKey, engine.lastKey)
	}
	if !summary.GeneratedAt.Equal(now) || len(summary.Totals) != 1 {
		t.Fatalf("summary = %#v", summary)
	}
}

func TestCategorySummaryWithoutExports(t *testing.T) {
	svc := &Service{Store: memory.New(), Engine: &fakeEngine{}}
	if _, err := svc.CategorySummary(context.Background(), ""); !errors.Is(err, ErrNoExports) {
		t.Fatalf("CategorySummary() error = %v, want ErrNoExports", err)
	}
}

func TestCategorySummaryRejectsForeignKeys(t *testing.T) {
	svc := &Service{Store: memory.New(), Engine: &fakeEngine{}}
	for _, key := range []string{"receipts/1/a.png", "exports/expenses/../../receipts/1/a.png", "../exports/expenses/x.parquet"} {
		if _, err := svc.CategorySummary(context.Background(), key); !errors.Is(err, ErrNotAnExportKey) {
			t.Fatalf("CategorySummary(%q) error = %v, want ErrNotAnExportKey", key, err)
		}
	}
}
