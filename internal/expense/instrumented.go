package expense

import (
	"context"
	"time"

	"github.com/expensedesk/expensedesk/internal/observability"
)

// InstrumentedGateway bounds every call with a timeout and records call
// metrics. Cancellation of the caller's context still applies.
type InstrumentedGateway struct {
	inner       Gateway
	callTimeout time.Duration
}

func NewInstrumentedGateway(inner Gateway, callTimeout time.Duration) *InstrumentedGateway {
	return &InstrumentedGateway{inner: inner, callTimeout: callTimeout}
}

func (g *InstrumentedGateway) HealthCheck(ctx context.Context) error {
	return observe(ctx, g, "health_check", func(ctx context.Context) error {
		return g.inner.HealthCheck(ctx)
	})
}

func (g *InstrumentedGateway) ListExpenses(ctx context.Context, filter ListFilter) ([]Expense, error) {
	var out []Expense
	err := observe(ctx, g, "list_expenses", func(ctx context.Context) (err error) {
		out, err = g.inner.ListExpenses(ctx, filter)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) GetExpense(ctx context.Context, id int64) (Expense, error) {
	var out Expense
	err := observe(ctx, g, "get_expense", func(ctx context.Context) (err error) {
		out, err = g.inner.GetExpense(ctx, id)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) CreateExpense(ctx context.Context, in CreateExpenseInput) (Expense, error) {
	var out Expense
	err := observe(ctx, g, "create_expense", func(ctx context.Context) (err error) {
		out, err = g.inner.CreateExpense(ctx, in)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) SubmitExpense(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := observe(ctx, g, "submit_expense", func(ctx context.Context) (err error) {
		ok, err = g.inner.SubmitExpense(ctx, id)
		return err
	})
	return ok, err
}

func (g *InstrumentedGateway) ApproveExpense(ctx context.Context, id, reviewerID int64) (bool, error) {
	var ok bool
	err := observe(ctx, g, "approve_expense", func(ctx context.Context) (err error) {
		ok, err = g.inner.ApproveExpense(ctx, id, reviewerID)
		return err
	})
	return ok, err
}

func (g *InstrumentedGateway) RejectExpense(ctx context.Context, id, reviewerID int64) (bool, error) {
	var ok bool
	err := observe(ctx, g, "reject_expense", func(ctx context.Context) (err error) {
		ok, err = g.inner.RejectExpense(ctx, id, reviewerID)
		return err
	})
	return ok, err
}

func (g *InstrumentedGateway) AttachReceipt(ctx context.Context, id int64, receiptFile string) (bool, error) {
	var ok bool
	err := observe(ctx, g, "attach_receipt", func(ctx context.Context) (err error) {
		ok, err = g.inner.AttachReceipt(ctx, id, receiptFile)
		return err
	})
	return ok, err
}

func (g *InstrumentedGateway) ListPendingApprovals(ctx context.Context) ([]Expense, error) {
	var out []Expense
	err := observe(ctx, g, "list_pending_approvals", func(ctx context.Context) (err error) {
		out, err = g.inner.ListPendingApprovals(ctx)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := observe(ctx, g, "list_categories", func(ctx context.Context) (err error) {
		out, err = g.inner.ListCategories(ctx)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) ListStatuses(ctx context.Context) ([]Status, error) {
	var out []Status
	err := observe(ctx, g, "list_statuses", func(ctx context.Context) (err error) {
		out, err = g.inner.ListStatuses(ctx)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := observe(ctx, g, "list_users", func(ctx context.Context) (err error) {
		out, err = g.inner.ListUsers(ctx)
		return err
	})
	return out, err
}

func (g *InstrumentedGateway) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var out DashboardStats
	err := observe(ctx, g, "get_dashboard_stats", func(ctx context.Context) (err error) {
		out, err = g.inner.GetDashboardStats(ctx)
		return err
	})
	return out, err
}

func observe(ctx context.Context, g *InstrumentedGateway, operation string, call func(context.Context) error) error {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}
	start := time.Now()
	err := call(ctx)
	if err != nil && KindOf(err) == KindNotFound {
		observability.ObserveGatewayCall(operation, nil, time.Since(start))
		return err
	}
	observability.ObserveGatewayCall(operation, err, time.Since(start))
	return err
}
