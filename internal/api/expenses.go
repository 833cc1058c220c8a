package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expensedesk/expensedesk/internal/auth"
	"github.com/expensedesk/expensedesk/internal/expense"
)

type expenseResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	UserName        string     `json:"user_name"`
	CategoryID      int64      `json:"category_id"`
	CategoryName    string     `json:"category_name"`
	StatusID        int64      `json:"status_id"`
	StatusName      string     `json:"status_name"`
	Amount          string     `json:"amount"`
	AmountMinor     int64      `json:"amount_minor"`
	Currency        string     `json:"currency"`
	FormattedAmount string     `json:"formatted_amount"`
	ExpenseDate     string     `json:"expense_date"`
	Description     string     `json:"description"`
	ReceiptFile     string     `json:"receipt_file,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ReviewedBy      *int64     `json:"reviewed_by,omitempty"`
	ReviewedByName  string     `json:"reviewed_by_name,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toExpenseResponse(item expense.Expense) expenseResponse {
	return expenseResponse{
		ID:              item.ID,
		UserID:          item.UserID,
		UserName:        item.UserName,
		CategoryID:      item.CategoryID,
		CategoryName:    item.CategoryName,
		StatusID:        item.StatusID,
		StatusName:      item.StatusName,
		Amount:          item.Amount().StringFixed(2),
		AmountMinor:     item.AmountMinor,
		Currency:        item.Currency,
		FormattedAmount: expense.FormatMinor(item.AmountMinor, item.Currency),
		ExpenseDate:     item.ExpenseDate.Format("2006-01-02"),
		Description:     item.Description,
		ReceiptFile:     item.ReceiptFile,
		SubmittedAt:     item.SubmittedAt,
		ReviewedBy:      item.ReviewedBy,
		ReviewedByName:  item.ReviewedByName,
		ReviewedAt:      item.ReviewedAt,
		CreatedAt:       item.CreatedAt,
	}
}

func toExpenseResponses(items []expense.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toExpenseResponse(item))
	}
	return out
}

type createExpenseRequest struct {
	UserID      *int64          `json:"user_id"`
	CategoryID  int64           `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ExpenseDate string          `json:"expense_date"`
	Description string          `json:"description"`
}

func handleListExpenses(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	query := r.URL.Query()
	items, err := deps.Gateway.ListExpenses(r.Context(), expense.ListFilter{
		Text:   strings.TrimSpace(query.Get("filter")),
		Status: strings.TrimSpace(query.Get("status")),
	})
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	writeData(r.Context(), w, http.StatusOK, toExpenseResponses(items))
}

func handleGetExpense(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_ID", err.Error(), false)
		return
	}
	item, err := deps.Gateway.GetExpense(r.Context(), id)
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	writeData(r.Context(), w, http.StatusOK, toExpenseResponse(item))
}

func handleCreateExpense(deps Dependencies, settings handlerSettings, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}

	var request createExpenseRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_JSON", "invalid expense request body: "+err.Error(), false)
		return
	}

	callerID, hasCaller := callerFromRequest(r)
	owner := callerID
	if request.UserID != nil {
		if hasCaller && *request.UserID != callerID {
			if err := requireAnyRole(r, auth.RoleApprover, auth.RoleAdmin); err != nil {
				writeError(r.Context(), w, http.StatusForbidden, sourceAuth, "FORBIDDEN", "only approvers can create expenses for other users", false)
				return
			}
		}
		owner = *request.UserID
	}
	if owner <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "USER_REQUIRED", "user_id is required when the caller is unknown", false)
		return
	}

	expenseDate := deps.Now().UTC()
	if raw := strings.TrimSpace(request.ExpenseDate); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_DATE", "expense_date must be formatted as YYYY-MM-DD", false)
			return
		}
		expenseDate = parsed
	}
	currency := strings.ToUpper(strings.TrimSpace(request.Currency))
	if currency == "" {
		currency = settings.defaultCurrency
	}

	created, err := deps.Gateway.CreateExpense(r.Context(), expense.CreateExpenseInput{
		UserID:      owner,
		CategoryID:  request.CategoryID,
		Amount:      request.Amount,
		Currency:    currency,
		ExpenseDate: expenseDate,
		Description: request.Description,
	})
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	writeData(r.Context(), w, http.StatusCreated, toExpenseResponse(created))
}

func handleSubmitExpense(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_ID", err.Error(), false)
		return
	}
	ok, err := deps.Gateway.SubmitExpense(r.Context(), id)
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, sourceDatabase, "NOT_FOUND", "expense was not found", false)
		return
	}
	writeData(r.Context(), w, http.StatusOK, map[string]any{"id": id, "status_name": expense.StatusName(expense.StatusSubmitted)})
}

func handleReviewExpense(deps Dependencies, w http.ResponseWriter, r *http.Request, statusID int64) {
	if !requireGateway(deps, w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_ID", err.Error(), false)
		return
	}
	reviewerID, ok := callerFromRequest(r)
	if !ok {
		writeError(r.Context(), w, http.StatusUnauthorized, sourceAuth, "REVIEWER_REQUIRED", "a signed-in reviewer is required", false)
		return
	}
	if err := requireAnyRole(r, auth.RoleApprover, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, sourceAuth, "FORBIDDEN", err.Error(), false)
		return
	}

	review := deps.Gateway.ApproveExpense
	if statusID == expense.StatusRejected {
		review = deps.Gateway.RejectExpense
	}
	updated, err := review(r.Context(), id, reviewerID)
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	if !updated {
		writeError(r.Context(), w, http.StatusNotFound, sourceDatabase, "NOT_FOUND", "expense was not found", false)
		return
	}
	writeData(r.Context(), w, http.StatusOK, map[string]any{
		"id":          id,
		"status_name": expense.StatusName(statusID),
		"reviewed_by": reviewerID,
	})
}

func handleListPendingApprovals(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	items, err := deps.Gateway.ListPendingApprovals(r.Context())
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	writeData(r.Context(), w, http.StatusOK, toExpenseResponses(items))
}

func requireGateway(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Gateway == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, sourceDatabase, "GATEWAY_NOT_CONFIGURED", "expense gateway is not configured", false)
		return false
	}
	return true
}
