package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const defaultPingTimeout = 5 * time.Second

type DBConfig struct {
	DSN              string
	ApplicationName  string
	StatementTimeout time.Duration
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxIdleTime  time.Duration
	ConnMaxLifetime  time.Duration
	PingTimeout      time.Duration
}

// Open builds a database/sql pool over pgx and pings it once. A ping failure
// is classified like any gateway failure so callers can tell bad credentials
// from an unreachable server.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	connConfig, err := connConfigFor(cfg)
	if err != nil {
		return nil, err
	}
	db := stdlib.OpenDB(*connConfig)

	pool := []struct {
		set   bool
		apply func()
	}{
		{cfg.MaxOpenConns > 0, func() { db.SetMaxOpenConns(cfg.MaxOpenConns) }},
		{cfg.MaxIdleConns > 0, func() { db.SetMaxIdleConns(cfg.MaxIdleConns) }},
		{cfg.ConnMaxIdleTime > 0, func() { db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime) }},
		{cfg.ConnMaxLifetime > 0, func() { db.SetConnMaxLifetime(cfg.ConnMaxLifetime) }},
	}
	for _, option := range pool {
		if option.set {
			option.apply()
		}
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classify("ping expense db", err)
	}
	return db, nil
}

// connConfigFor parses the DSN and adds session settings. Values already in
// the DSN win.
func connConfigFor(cfg DBConfig) (*pgx.ConnConfig, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	defaults := map[string]string{}
	if name := strings.TrimSpace(cfg.ApplicationName); name != "" {
		defaults["application_name"] = name
	}
	if cfg.StatementTimeout > 0 {
		defaults["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	for key, value := range defaults {
		if _, set := connConfig.RuntimeParams[key]; !set {
			connConfig.RuntimeParams[key] = value
		}
	}
	return connConfig, nil
}
