// Package migrations owns the expense schema, its reference data and the
// usp_* functions the gateway calls. Scripts are embedded and applied in
// version order, one transaction per step.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const (
	migrationTable = "expensedesk_schema_migrations"

	// advisoryLockKey serialises migrators running against the same database.
	advisoryLockKey int64 = 0x6578706e73646b
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

type Status struct {
	Applied []int64
	Pending []int64
}

type Runner struct {
	source fs.FS
	logger *slog.Logger
}

type Option func(*Runner)

// WithSource reads scripts from source instead of the embedded set. source
// must hold a sql/ directory.
func WithSource(source fs.FS) Option {
	return func(r *Runner) {
		if source != nil {
			r.source = source
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{source: embeddedFS}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) (Status, error) {
	plan, applied, err := r.prepare(ctx, db)
	if err != nil {
		return Status{}, err
	}
	status := Status{Applied: sortedVersions(applied, false)}
	for _, m := range plan {
		if !applied[m.Version] {
			status.Pending = append(status.Pending, m.Version)
		}
	}
	return status, nil
}

// Up applies pending migrations oldest first. steps <= 0 applies all of them.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	plan, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range plan {
		if applied[m.Version] {
			continue
		}
		if steps > 0 && count == steps {
			break
		}
		ran, err := r.step(ctx, db, m, directionUp)
		if err != nil {
			return count, err
		}
		if ran {
			count++
		}
	}
	return count, nil
}

// Down rolls back applied migrations newest first. steps <= 0 means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	plan, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]Migration, len(plan))
	for _, m := range plan {
		byVersion[m.Version] = m
	}

	count := 0
	for _, version := range sortedVersions(applied, true) {
		if count == steps {
			break
		}
		m, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("applied migration %d has no script", version)
		}
		ran, err := r.step(ctx, db, m, directionDown)
		if err != nil {
			return count, err
		}
		if ran {
			count++
		}
	}
	return count, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]Migration, map[int64]bool, error) {
	plan, err := load(r.source)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return nil, nil, fmt.Errorf("ensure migration table: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable)
	if err != nil {
		return nil, nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := map[int64]bool{}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return plan, applied, nil
}

type direction string

const (
	directionUp   direction = "up"
	directionDown direction = "down"
)

// step runs one script under the advisory lock. It re-reads the bookkeeping
// row inside the transaction and reports false when another migrator got
// there first.
func (r *Runner) step(ctx context.Context, db *sql.DB, m Migration, dir direction) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migration %d %s: %w", m.Version, dir, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}
	var recorded bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+migrationTable+` WHERE version = $1)`, m.Version).Scan(&recorded); err != nil {
		return false, fmt.Errorf("check migration %d: %w", m.Version, err)
	}
	if recorded == (dir == directionUp) {
		return false, nil
	}

	script, bookkeeping, args := m.Up, `INSERT INTO `+migrationTable+` (version, name) VALUES ($1, $2)`, []any{m.Version, m.Name}
	if dir == directionDown {
		script, bookkeeping, args = m.Down, `DELETE FROM `+migrationTable+` WHERE version = $1`, []any{m.Version}
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return false, fmt.Errorf("run migration %d_%s %s: %w", m.Version, m.Name, dir, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return false, fmt.Errorf("record migration %d %s: %w", m.Version, dir, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %d %s: %w", m.Version, dir, err)
	}

	if r.logger != nil {
		r.logger.Info("migration finished",
			slog.Int64("version", m.Version),
			slog.String("name", m.Name),
			slog.String("direction", string(dir)),
		)
	}
	return true, nil
}

// load pairs NNNNNN_name.up.sql with NNNNNN_name.down.sql. Every version needs
// both halves under the same name.
func load(source fs.FS) ([]Migration, error) {
	files, err := fs.Glob(source, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migration scripts: %w", err)
	}

	byVersion := map[int64]*Migration{}
	for _, file := range files {
		base := path.Base(file)
		parts := fileNamePattern.FindStringSubmatch(base)
		if parts == nil {
			return nil, fmt.Errorf("migration file %q does not match NNNNNN_name.(up|down).sql", base)
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %q: %w", base, err)
		}
		body, err := fs.ReadFile(source, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", base, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, m.Name, parts[2])
		}
		if parts[3] == string(directionUp) {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	plan := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", m.Version)
		}
		if strings.TrimSpace(m.Down) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", m.Version)
		}
		plan = append(plan, *m)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Version < plan[j].Version })
	return plan, nil
}

func sortedVersions(set map[int64]bool, descending bool) []int64 {
	out := make([]int64, 0, len(set))
	for version := range set {
		out = append(out, version)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i] > out[j]
		}
		return out[i] < out[j]
	})
	return out
}
