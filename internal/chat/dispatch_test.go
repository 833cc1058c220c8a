package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/expense/memory"
)

type failingGateway struct {
	expense.Gateway
}

func (failingGateway) GetDashboardStats(context.Context) (expense.DashboardStats, error) {
	return expense.DashboardStats{}, expense.NewError("get dashboard stats", expense.KindConnectivity, errors.New("connection refused"))
}

func memoryClock() memory.Option {
	return memory.WithClock(func() time.Time { return testNow })
}

func TestDispatchFormatsListsAndStats(t *testing.T) {
	svc := newTestService(&fakeModel{}, memory.NewSeeded(memoryClock()))

	out, err := svc.dispatch(context.Background(), Caller{UserID: 1}, ToolCall{Name: ToolListExpenses, Arguments: `{"filter": "taxi", "status": "approved"}`})
	if err != nil {
		t.Fatalf("dispatch(list_expenses) error = %v", err)
	}
	if !strings.HasPrefix(out, "1 expense(s):\n#1 | 26 Feb 2026 | Alice Example | Travel | £25.40 | Approved") {
		t.Fatalf("list output = %q", out)
	}

	out, err = svc.dispatch(context.Background(), Caller{}, ToolCall{Name: ToolGetDashboardStats})
	if err != nil {
		t.Fatalf("dispatch(get_dashboard_stats) error = %v", err)
	}
	if !strings.Contains(out, "Pending approvals: 2") || !strings.Contains(out, "Approved amount: £324.40") {
		t.Fatalf("stats output = %q", out)
	}

	out, err = svc.dispatch(context.Background(), Caller{}, ToolCall{Name: ToolListCategories, Arguments: "{}"})
	if err != nil {
		t.Fatalf("dispatch(list_categories) error = %v", err)
	}
	if !strings.HasPrefix(out, "Categories:\n3: Accommodation") || strings.Contains(out, "Entertainment") {
		t.Fatalf("categories output = %q", out)
	}
}

func TestDispatchApproveUsesCaller(t *testing.T) {
	gateway := memory.NewSeeded(memoryClock())
	svc := newTestService(&fakeModel{}, gateway)

	_, err := svc.dispatch(context.Background(), Caller{UserID: 1}, ToolCall{Name: ToolApproveExpense, Arguments: `{"expense_id": 2}`})
	if !recoverable(err) || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("dispatch() error = %v, want permission tool error", err)
	}

	out, err := svc.dispatch(context.Background(), Caller{UserID: 2, CanApprove: true}, ToolCall{Name: ToolApproveExpense, Arguments: `{"expense_id": 2}`})
	if err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	if out != "Expense #2 approved." {
		t.Fatalf("output = %q", out)
	}
	approved, _ := gateway.GetExpense(context.Background(), 2)
	if approved.ReviewedBy == nil || *approved.ReviewedBy != 2 {
		t.Fatalf("reviewer = %v", approved.ReviewedBy)
	}

	_, err = svc.dispatch(context.Background(), Caller{UserID: 2, CanApprove: true}, ToolCall{Name: ToolApproveExpense, Arguments: `{"expense_id": 999}`})
	if !recoverable(err) || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("missing expense error = %v", err)
	}
}

func TestDispatchRejectsUnknownToolAndStatus(t *testing.T) {
	svc := newTestService(&fakeModel{}, memory.New())
	if _, err := svc.dispatch(context.Background(), Caller{}, ToolCall{Name: "reject_expense"}); !recoverable(err) {
		t.Fatalf("unknown tool error = %v", err)
	}
	if _, err := svc.dispatch(context.Background(), Caller{}, ToolCall{Name: ToolListExpenses, Arguments: `{"status": "Paid"}`}); !recoverable(err) {
		t.Fatalf("unknown status error = %v", err)
	}
}

func TestDispatchStoreOutageIsNotRecoverable(t *testing.T) {
	svc := newTestService(&fakeModel{}, failingGateway{Gateway: memory.New()})
	_, err := svc.dispatch(context.Background(), Caller{}, ToolCall{Name: ToolGetDashboardStats})
	if err == nil || recoverable(err) {
		t.Fatalf("dispatch() error = %v, want unrecoverable", err)
	}
}

func TestSendStoreOutageFailsConversation(t *testing.T) {
	model := &fakeModel{responses: []Completion{toolCall("c1", ToolGetDashboardStats, "")}}
	svc := newTestService(model, failingGateway{Gateway: memory.New()})
	result, err := svc.Send(context.Background(), Request{Message: "totals?"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.Success || result.Failure != FailureDatabase || result.Answer != StoreFailedMessage {
		t.Fatalf("result = %#v", result)
	}
}
