package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/expensedesk/expensedesk/internal/expense"
)

const expenseColumns = `id, user_id, user_name, category_id, category_name, status_id, status_name,
       amount_minor, currency, expense_date, description, receipt_file,
       submitted_at, reviewed_by, reviewed_by_name, reviewed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Gateway calls the usp_* stored functions installed by the migrations.
type Gateway struct {
	db *sql.DB
}

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) HealthCheck(ctx context.Context) error {
	if err := g.db.PingContext(ctx); err != nil {
		return classify("ping expense db", err)
	}
	return nil
}

func (g *Gateway) ListExpenses(ctx context.Context, filter expense.ListFilter) ([]expense.Expense, error) {
	query := `
SELECT ` + expenseColumns + `
FROM usp_list_expenses($1, $2)`
	return g.queryExpenses(ctx, "list expenses", query, nullableString(filter.Text), nullableString(filter.Status))
}

func (g *Gateway) GetExpense(ctx context.Context, id int64) (expense.Expense, error) {
	query := `
SELECT ` + expenseColumns + `
FROM usp_get_expense($1)`
	item, err := scanExpense(g.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return expense.Expense{}, classify("get expense", err)
	}
	return item, nil
}

func (g *Gateway) CreateExpense(ctx context.Context, in expense.CreateExpenseInput) (expense.Expense, error) {
	if err := in.Validate(); err != nil {
		return expense.Expense{}, err
	}
	query := `
SELECT ` + expenseColumns + `
FROM usp_create_expense($1, $2, $3, $4, $5, $6)`
	item, err := scanExpense(g.db.QueryRowContext(ctx, query,
		in.UserID,
		in.CategoryID,
		expense.MinorFromMajor(in.Amount),
		strings.ToUpper(strings.TrimSpace(in.Currency)),
		dateOnly(in.ExpenseDate),
		nullableString(in.Description),
	))
	if err != nil {
		return expense.Expense{}, classify("create expense", err)
	}
	return item, nil
}

func (g *Gateway) SubmitExpense(ctx context.Context, id int64) (bool, error) {
	return g.execAffected(ctx, "submit expense", `SELECT usp_submit_expense($1)`, id)
}

func (g *Gateway) ApproveExpense(ctx context.Context, id, reviewerID int64) (bool, error) {
	return g.execAffected(ctx, "approve expense", `SELECT usp_approve_expense($1, $2)`, id, reviewerID)
}

func (g *Gateway) RejectExpense(ctx context.Context, id, reviewerID int64) (bool, error) {
	return g.execAffected(ctx, "reject expense", `SELECT usp_reject_expense($1, $2)`, id, reviewerID)
}

func (g *Gateway) AttachReceipt(ctx context.Context, id int64, receiptFile string) (bool, error) {
	return g.execAffected(ctx, "attach receipt", `SELECT usp_attach_receipt($1, $2)`, id, receiptFile)
}

func (g *Gateway) ListPendingApprovals(ctx context.Context) ([]expense.Expense, error) {
	query := `
SELECT ` + expenseColumns + `
FROM usp_list_pending_approvals()`
	return g.queryExpenses(ctx, "list pending approvals", query)
}

func (g *Gateway) ListCategories(ctx context.Context) ([]expense.Category, error) {
	rows, err := g.db.QueryContext(ctx, `
SELECT id, name, active
FROM usp_list_categories()`)
	if err != nil {
		return nil, classify("list categories", err)
	}
	defer func() { _ = rows.Close() }()

	categories := make([]expense.Category, 0)
	for rows.Next() {
		var category expense.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Active); err != nil {
			return nil, classify("scan category row", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate category rows", err)
	}
	return categories, nil
}

func (g *Gateway) ListStatuses(ctx context.Context) ([]expense.Status, error) {
	rows, err := g.db.QueryContext(ctx, `
SELECT id, name
FROM usp_list_statuses()`)
	if err != nil {
		return nil, classify("list statuses", err)
	}
	defer func() { _ = rows.Close() }()

	statuses := make([]expense.Status, 0, 4)
	for rows.Next() {
		var status expense.Status
		if err := rows.Scan(&status.ID, &status.Name); err != nil {
			return nil, classify("scan status row", err)
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate status rows", err)
	}
	return statuses, nil
}

func (g *Gateway) ListUsers(ctx context.Context) ([]expense.User, error) {
	rows, err := g.db.QueryContext(ctx, `
SELECT id, name, email, role_id, role_name, active
FROM usp_list_users()`)
	if err != nil {
		return nil, classify("list users", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]expense.User, 0)
	for rows.Next() {
		var user expense.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.RoleID, &user.RoleName, &user.Active); err != nil {
			return nil, classify("scan user row", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate user rows", err)
	}
	return users, nil
}

func (g *Gateway) GetDashboardStats(ctx context.Context) (expense.DashboardStats, error) {
	query := `
SELECT total_expenses, pending_approvals, approved_amount_minor, approved_count
FROM usp_get_dashboard_stats()`
	var stats expense.DashboardStats
	if err := g.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalExpenses,
		&stats.PendingApprovals,
		&stats.ApprovedAmountMinor,
		&stats.ApprovedCount,
	); err != nil {
		return expense.DashboardStats{}, classify("get dashboard stats", err)
	}
	return stats, nil
}

func (g *Gateway) queryExpenses(ctx context.Context, op, query string, args ...any) ([]expense.Expense, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]expense.Expense, 0)
	for rows.Next() {
		item, err := scanExpense(rows)
		if err != nil {
			return nil, classify(fmt.Sprintf("scan %s row", op), err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return items, nil
}

func (g *Gateway) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	var affected int64
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&affected); err != nil {
		return false, classify(op, err)
	}
	return affected > 0, nil
}

func scanExpense(row rowScanner) (expense.Expense, error) {
	var (
		item           expense.Expense
		description    sql.NullString
		receiptFile    sql.NullString
		reviewedBy     sql.NullInt64
		reviewedByName sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.UserName,
		&item.CategoryID,
		&item.CategoryName,
		&item.StatusID,
		&item.StatusName,
		&item.AmountMinor,
		&item.Currency,
		&item.ExpenseDate,
		&description,
		&receiptFile,
		&item.SubmittedAt,
		&reviewedBy,
		&reviewedByName,
		&item.ReviewedAt,
		&item.CreatedAt,
	); err != nil {
		return expense.Expense{}, err
	}
	item.Description = description.String
	item.ReceiptFile = receiptFile.String
	item.ReviewedByName = reviewedByName.String
	if reviewedBy.Valid {
		reviewer := reviewedBy.Int64
		item.ReviewedBy = &reviewer
	}
	return item, nil
}

func nullableString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func dateOnly(value time.Time) time.Time {
	year, month, day := value.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
