package expense

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusDraft     int64 = 1
	StatusSubmitted int64 = 2
	StatusApproved  int64 = 3
	StatusRejected  int64 = 4
)

var statusNames = map[int64]string{
	StatusDraft:     "Draft",
	StatusSubmitted: "Submitted",
	StatusApproved:  "Approved",
	StatusRejected:  "Rejected",
}

// StatusName returns the display name for a status id, or "" when unknown.
func StatusName(id int64) string {
	return statusNames[id]
}

// Gateway is the data access boundary. Every method maps to exactly one
// stored procedure.
type Gateway interface {
	HealthCheck(ctx context.Context) error
	ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	CreateExpense(ctx context.Context, in CreateExpenseInput) (Expense, error)
	SubmitExpense(ctx context.Context, id int64) (bool, error)
	ApproveExpense(ctx context.Context, id, reviewerID int64) (bool, error)
	RejectExpense(ctx context.Context, id, reviewerID int64) (bool, error)
	AttachReceipt(ctx context.Context, id int64, receiptFile string) (bool, error)
	ListPendingApprovals(ctx context.Context) ([]Expense, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListStatuses(ctx context.Context) ([]Status, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetDashboardStats(ctx context.Context) (DashboardStats, error)
}

type Expense struct {
	ID             int64
	UserID         int64
	UserName       string
	CategoryID     int64
	CategoryName   string
	StatusID       int64
	StatusName     string
	AmountMinor    int64
	Currency       string
	ExpenseDate    time.Time
	Description    string
	ReceiptFile    string
	SubmittedAt    *time.Time
	ReviewedBy     *int64
	ReviewedByName string
	ReviewedAt     *time.Time
	CreatedAt      time.Time
}

// Amount is the major-unit value derived from AmountMinor.
func (e Expense) Amount() decimal.Decimal {
	return MajorFromMinor(e.AmountMinor)
}

type Category struct {
	ID     int64
	Name   string
	Active bool
}

type Status struct {
	ID   int64
	Name string
}

type User struct {
	ID       int64
	Name     string
	Email    string
	RoleID   int64
	RoleName string
	Active   bool
}

type DashboardStats struct {
	TotalExpenses       int64
	PendingApprovals    int64
	ApprovedAmountMinor int64
	ApprovedCount       int64
}

func (s DashboardStats) ApprovedAmount() decimal.Decimal {
	return MajorFromMinor(s.ApprovedAmountMinor)
}

type ListFilter struct {
	Text   string
	Status string
}

type CreateExpenseInput struct {
	UserID      int64
	CategoryID  int64
	Amount      decimal.Decimal
	Currency    string
	ExpenseDate time.Time
	Description string
}

func (in CreateExpenseInput) Validate() error {
	switch {
	case in.UserID <= 0:
		return validationError("create expense", "user_id is required")
	case in.CategoryID <= 0:
		return validationError("create expense", "category_id is required")
	case !in.Amount.IsPositive():
		return validationError("create expense", "amount must be greater than zero")
	case !fitsMinor(in.Amount):
		return validationError("create expense", "amount is too large")
	case MinorFromMajor(in.Amount) <= 0:
		return validationError("create expense", "amount must be at least 0.01")
	case in.ExpenseDate.IsZero():
		return validationError("create expense", "expense_date is required")
	case len(strings.TrimSpace(in.Currency)) != 3:
		return validationError("create expense", "currency must be a three letter ISO code")
	}
	return nil
}
