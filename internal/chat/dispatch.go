package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expensedesk/expensedesk/internal/expense"
)

// toolError is reported back to the model as the tool result so it can
// correct its arguments or explain the problem to the user.
type toolError struct {
	message string
}

func (e *toolError) Error() string {
	return e.message
}

func toolErrorf(format string, args ...any) error {
	return &toolError{message: fmt.Sprintf(format, args...)}
}

// recoverable reports whether a dispatch failure belongs in the transcript.
// Store outages end the conversation instead.
func recoverable(err error) bool {
	var te *toolError
	if errors.As(err, &te) {
		return true
	}
	switch expense.KindOf(err) {
	case expense.KindValidation, expense.KindNotFound, expense.KindConstraint:
		return true
	}
	return false
}

func toolErrorPayload(err error) string {
	message := err.Error()
	var typed *expense.Error
	if errors.As(err, &typed) && typed.Err != nil {
		message = typed.Err.Error()
	}
	payload, _ := json.Marshal(map[string]string{"error": message})
	return string(payload)
}

type listExpensesArgs struct {
	Filter string `json:"filter"`
	Status string `json:"status"`
}

type createExpenseArgs struct {
	CategoryID  *int64           `json:"category_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	UserID      *int64           `json:"user_id"`
}

type approveExpenseArgs struct {
	ExpenseID *int64 `json:"expense_id"`
}

type noArgs struct{}

func decodeArgs(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		raw = "{}"
	}
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return toolErrorf("invalid arguments: %v", err)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, caller Caller, call ToolCall) (string, error) {
	switch call.Name {
	case ToolListExpenses:
		var args listExpensesArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return "", err
		}
		status, err := canonicalStatus(args.Status)
		if err != nil {
			return "", err
		}
		items, err := s.gateway.ListExpenses(ctx, expense.ListFilter{Text: strings.TrimSpace(args.Filter), Status: status})
		if err != nil {
			return "", err
		}
		return formatExpenses(items, "No expenses found."), nil

	case ToolListPendingApprovals:
		if err := decodeArgs(call.Arguments, &noArgs{}); err != nil {
			return "", err
		}
		items, err := s.gateway.ListPendingApprovals(ctx)
		if err != nil {
			return "", err
		}
		return formatExpenses(items, "No expenses are waiting for approval."), nil

	case ToolGetDashboardStats:
		if err := decodeArgs(call.Arguments, &noArgs{}); err != nil {
			return "", err
		}
		stats, err := s.gateway.GetDashboardStats(ctx)
		if err != nil {
			return "", err
		}
		return formatDashboard(stats, s.currency), nil

	case ToolListCategories:
		if err := decodeArgs(call.Arguments, &noArgs{}); err != nil {
			return "", err
		}
		categories, err := s.gateway.ListCategories(ctx)
		if err != nil {
			return "", err
		}
		return formatCategories(categories), nil

	case ToolCreateExpense:
		var args createExpenseArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return "", err
		}
		input, err := s.createInput(caller, args)
		if err != nil {
			return "", err
		}
		created, err := s.gateway.CreateExpense(ctx, input)
		if err != nil {
			return "", err
		}
		return formatCreated(created), nil

	case ToolApproveExpense:
		var args approveExpenseArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return "", err
		}
		if args.ExpenseID == nil || *args.ExpenseID <= 0 {
			return "", toolErrorf("expense_id is required and must be a positive integer")
		}
		if caller.UserID <= 0 {
			return "", toolErrorf("approving requires a signed-in reviewer")
		}
		if !caller.CanApprove {
			return "", toolErrorf("the current user is not allowed to approve expenses")
		}
		ok, err := s.gateway.ApproveExpense(ctx, *args.ExpenseID, caller.UserID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", toolErrorf("expense %d was not found", *args.ExpenseID)
		}
		return fmt.Sprintf("Expense #%d approved.", *args.ExpenseID), nil
	}
	return "", toolErrorf("unknown tool %q", call.Name)
}

func (s *Service) createInput(caller Caller, args createExpenseArgs) (expense.CreateExpenseInput, error) {
	if args.CategoryID == nil || *args.CategoryID <= 0 {
		return expense.CreateExpenseInput{}, toolErrorf("category_id is required and must be a positive integer")
	}
	if args.Amount == nil || !args.Amount.IsPositive() {
		return expense.CreateExpenseInput{}, toolErrorf("amount is required and must be greater than zero")
	}

	owner := caller.UserID
	if args.UserID != nil {
		if *args.UserID != caller.UserID && !caller.CanApprove {
			return expense.CreateExpenseInput{}, toolErrorf("only approvers can create expenses for other users")
		}
		owner = *args.UserID
	}
	if owner <= 0 {
		return expense.CreateExpenseInput{}, toolErrorf("user_id is required when no user is signed in")
	}

	date := s.now().UTC()
	if raw := strings.TrimSpace(args.Date); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return expense.CreateExpenseInput{}, toolErrorf("date must be formatted as YYYY-MM-DD")
		}
		date = parsed
	}

	return expense.CreateExpenseInput{
		UserID:      owner,
		CategoryID:  *args.CategoryID,
		Amount:      *args.Amount,
		Currency:    s.currency,
		ExpenseDate: date,
		Description: strings.TrimSpace(args.Description),
	}, nil
}

func canonicalStatus(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, id := range []int64{expense.StatusDraft, expense.StatusSubmitted, expense.StatusApproved, expense.StatusRejected} {
		if name := expense.StatusName(id); strings.EqualFold(name, raw) {
			return name, nil
		}
	}
	return "", toolErrorf("unknown status %q", raw)
}
