// Package memory is an in-process expense.Gateway used for the explicit demo
// mode and for tests. It mirrors the stored procedure semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expensedesk/expensedesk/internal/expense"
)

type Gateway struct {
	mu         sync.Mutex
	now        func() time.Time
	nextID     int64
	expenses   map[int64]*expense.Expense
	categories []expense.Category
	users      []expense.User
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func WithCategories(categories ...expense.Category) Option {
	return func(g *Gateway) {
		g.categories = append([]expense.Category(nil), categories...)
	}
}

func WithUsers(users ...expense.User) Option {
	return func(g *Gateway) {
		g.users = append([]expense.User(nil), users...)
	}
}

// New returns an empty gateway with the default reference data.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		now:        time.Now,
		nextID:     1,
		expenses:   map[int64]*expense.Expense{},
		categories: defaultCategories(),
		users:      defaultUsers(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSeeded returns a gateway preloaded with a handful of demo expenses.
func NewSeeded(opts ...Option) *Gateway {
	g := New(opts...)
	g.seed()
	return g
}

func (g *Gateway) HealthCheck(context.Context) error {
	return nil
}

func (g *Gateway) ListExpenses(ctx context.Context, filter expense.ListFilter) ([]expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, expense.NewError("list expenses", expense.KindConnectivity, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	text := strings.ToLower(strings.TrimSpace(filter.Text))
	status := strings.TrimSpace(filter.Status)
	out := make([]expense.Expense, 0, len(g.expenses))
	for _, item := range g.expenses {
		if status != "" && !strings.EqualFold(item.StatusName, status) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(item.Description), text) &&
			!strings.Contains(strings.ToLower(item.UserName), text) &&
			!strings.Contains(strings.ToLower(item.CategoryName), text) {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (g *Gateway) GetExpense(ctx context.Context, id int64) (expense.Expense, error) {
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, expense.NewError("get expense", expense.KindConnectivity, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.expenses[id]
	if !ok {
		return expense.Expense{}, expense.NewError("get expense", expense.KindNotFound, expense.ErrNotFound)
	}
	return *item, nil
}

func (g *Gateway) CreateExpense(ctx context.Context, in expense.CreateExpenseInput) (expense.Expense, error) {
	if err := in.Validate(); err != nil {
		return expense.Expense{}, err
	}
	if err := ctx.Err(); err != nil {
		return expense.Expense{}, expense.NewError("create expense", expense.KindConnectivity, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	user, ok := g.userByID(in.UserID)
	if !ok {
		return expense.Expense{}, expense.NewError("create expense", expense.KindConstraint, fmt.Errorf("user %d does not exist", in.UserID))
	}
	category, ok := g.categoryByID(in.CategoryID)
	if !ok {
		return expense.Expense{}, expense.NewError("create expense", expense.KindConstraint, fmt.Errorf("category %d does not exist", in.CategoryID))
	}

	item := &expense.Expense{
		ID:           g.nextID,
		UserID:       user.ID,
		UserName:     user.Name,
		CategoryID:   category.ID,
		CategoryName: category.Name,
		StatusID:     expense.StatusDraft,
		StatusName:   expense.StatusName(expense.StatusDraft),
		AmountMinor:  expense.MinorFromMajor(in.Amount),
		Currency:     strings.ToUpper(in.Currency),
		ExpenseDate:  truncateDate(in.ExpenseDate),
		Description:  strings.TrimSpace(in.Description),
		CreatedAt:    g.now().UTC(),
	}
	g.nextID++
	g.expenses[item.ID] = item
	return *item, nil
}

func (g *Gateway) SubmitExpense(ctx context.Context, id int64) (bool, error) {
	return g.update(ctx, "submit expense", id, func(item *expense.Expense, now time.Time) error {
		item.StatusID = expense.StatusSubmitted
		item.StatusName = expense.StatusName(expense.StatusSubmitted)
		item.SubmittedAt = &now
		return nil
	})
}

func (g *Gateway) ApproveExpense(ctx context.Context, id, reviewerID int64) (bool, error) {
	return g.review(ctx, "approve expense", id, reviewerID, expense.StatusApproved)
}

func (g *Gateway) RejectExpense(ctx context.Context, id, reviewerID int64) (bool, error) {
	return g.review(ctx, "reject expense", id, reviewerID, expense.StatusRejected)
}

func (g *Gateway) AttachReceipt(ctx context.Context, id int64, receiptFile string) (bool, error) {
	return g.update(ctx, "attach receipt", id, func(item *expense.Expense, _ time.Time) error {
		item.ReceiptFile = receiptFile
		return nil
	})
}

func (g *Gateway) ListPendingApprovals(ctx context.Context) ([]expense.Expense, error) {
	items, err := g.ListExpenses(ctx, expense.ListFilter{Status: expense.StatusName(expense.StatusSubmitted)})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		left, right := submittedOrCreated(items[i]), submittedOrCreated(items[j])
		if !left.Equal(right) {
			return left.Before(right)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (g *Gateway) ListCategories(context.Context) ([]expense.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]expense.Category, 0, len(g.categories))
	for _, category := range g.categories {
		if category.Active {
			out = append(out, category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *Gateway) ListStatuses(context.Context) ([]expense.Status, error) {
	return []expense.Status{
		{ID: expense.StatusDraft, Name: expense.StatusName(expense.StatusDraft)},
		{ID: expense.StatusSubmitted, Name: expense.StatusName(expense.StatusSubmitted)},
		{ID: expense.StatusApproved, Name: expense.StatusName(expense.StatusApproved)},
		{ID: expense.StatusRejected, Name: expense.StatusName(expense.StatusRejected)},
	}, nil
}

func (g *Gateway) ListUsers(context.Context) ([]expense.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]expense.User, 0, len(g.users))
	for _, user := range g.users {
		if user.Active {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *Gateway) GetDashboardStats(ctx context.Context) (expense.DashboardStats, error) {
	if err := ctx.Err(); err != nil {
		return expense.DashboardStats{}, expense.NewError("get dashboard stats", expense.KindConnectivity, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var stats expense.DashboardStats
	for _, item := range g.expenses {
		stats.TotalExpenses++
		switch item.StatusID {
		case expense.StatusSubmitted:
			stats.PendingApprovals++
		case expense.StatusApproved:
			stats.ApprovedCount++
			stats.ApprovedAmountMinor += item.AmountMinor
		}
	}
	return stats, nil
}

func (g *Gateway) review(ctx context.Context, op string, id, reviewerID int64, statusID int64) (bool, error) {
	return g.update(ctx, op, id, func(item *expense.Expense, now time.Time) error {
		reviewer, ok := g.userByID(reviewerID)
		if !ok {
			return expense.NewError(op, expense.KindConstraint, fmt.Errorf("reviewer %d does not exist", reviewerID))
		}
		item.StatusID = statusID
		item.StatusName = expense.StatusName(statusID)
		item.ReviewedBy = &reviewer.ID
		item.ReviewedByName = reviewer.Name
		item.ReviewedAt = &now
		return nil
	})
}

// update applies a change to one row and reports whether the row existed,
// like an UPDATE returning its affected row count.
func (g *Gateway) update(ctx context.Context, op string, id int64, apply func(*expense.Expense, time.Time) error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, expense.NewError(op, expense.KindConnectivity, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.expenses[id]
	if !ok {
		return false, nil
	}
	if err := apply(item, g.now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

// userByID and categoryByID stand in for foreign keys, which accept
// inactive rows.
func (g *Gateway) userByID(id int64) (expense.User, bool) {
	for _, user := range g.users {
		if user.ID == id {
			return user, true
		}
	}
	return expense.User{}, false
}

func (g *Gateway) categoryByID(id int64) (expense.Category, bool) {
	for _, category := range g.categories {
		if category.ID == id {
			return category, true
		}
	}
	return expense.Category{}, false
}

func submittedOrCreated(item expense.Expense) time.Time {
	if item.SubmittedAt != nil {
		return *item.SubmittedAt
	}
	return item.CreatedAt
}

func truncateDate(value time.Time) time.Time {
	year, month, day := value.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
