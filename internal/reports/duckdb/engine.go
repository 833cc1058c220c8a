package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/expensedesk/expensedesk/internal/reports"
	"github.com/expensedesk/expensedesk/internal/storage"
)

const categoryTotalsSQL = `
SELECT category_name, status_name, currency, count(*) AS expense_count, CAST(sum(amount_minor) AS BIGINT) AS amount_minor
FROM expenses
GROUP BY category_name, status_name, currency
ORDER BY category_name, status_name, currency`

// Engine downloads an export into a temporary directory and aggregates it
// with an in-process DuckDB database.
type Engine struct {
	Store storage.ObjectStore
}

func NewEngine(store storage.ObjectStore) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) CategoryTotals(ctx context.Context, objectKey string) ([]reports.CategoryTotal, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp("", "expensedesk-report-")
	if err != nil {
		return nil, fmt.Errorf("create report temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath, err := e.download(ctx, objectKey, workDir)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW expenses AS SELECT * FROM read_parquet(%s)`, quoteStringArray([]string{localPath}))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		return nil, fmt.Errorf("create expenses view: %w", err)
	}

	rows, err := db.QueryContext(ctx, categoryTotalsSQL)
	if err != nil {
		return nil, fmt.Errorf("execute category totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]reports.CategoryTotal, 0)
	for rows.Next() {
		var item reports.CategoryTotal
		if err := rows.Scan(&item.CategoryName, &item.StatusName, &item.Currency, &item.Count, &item.AmountMinor); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

// download copies an export object into dir; DuckDB reads parquet from the
// local filesystem only.
func (e *Engine) download(ctx context.Context, objectKey, dir string) (string, error) {
	reader, err := e.Store.Get(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("get object %q: %w", objectKey, err)
	}
	defer func() { _ = reader.Close() }()

	localPath := filepath.Join(dir, path.Base(objectKey))
	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create local copy of %q: %w", objectKey, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("copy %q: %w", objectKey, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("flush local copy of %q: %w", objectKey, err)
	}
	return localPath, nil
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
