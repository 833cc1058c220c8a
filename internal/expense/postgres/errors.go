package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/expensedesk/expensedesk/internal/expense"
)

// classify converts a driver error into a typed gateway error so callers
// never see raw driver failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := kindFor(err)
	if kind == expense.KindNotFound {
		return expense.NewError(op, kind, expense.ErrNotFound)
	}
	return expense.NewError(op, kind, err)
}

func kindFor(err error) expense.Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return expense.KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return kindForSQLState(pgErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return expense.KindConnectivity
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return expense.KindConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return expense.KindConnectivity
	}
	return expense.KindGeneric
}

func kindForSQLState(code string) expense.Kind {
	switch {
	case strings.HasPrefix(code, "28"):
		return expense.KindAuthentication
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "57P"):
		return expense.KindConnectivity
	case strings.HasPrefix(code, "23"), code == "P0001":
		return expense.KindConstraint
	case strings.HasPrefix(code, "42"):
		return expense.KindSchema
	case strings.HasPrefix(code, "22"):
		return expense.KindValidation
	default:
		return expense.KindGeneric
	}
}
