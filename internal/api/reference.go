package api

import (
	"net/http"

	"github.com/expensedesk/expensedesk/internal/expense"
)

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type statusResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`
}

type dashboardResponse struct {
	TotalExpenses           int64  `json:"total_expenses"`
	PendingApprovals        int64  `json:"pending_approvals"`
	ApprovedCount           int64  `json:"approved_count"`
	ApprovedAmount          string `json:"approved_amount"`
	ApprovedAmountMinor     int64  `json:"approved_amount_minor"`
	FormattedApprovedAmount string `json:"formatted_approved_amount"`
}

func handleListCategories(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	categories, err := deps.Gateway.ListCategories(r.Context())
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		out = append(out, categoryResponse{ID: category.ID, Name: category.Name})
	}
	writeData(r.Context(), w, http.StatusOK, out)
}

func handleListStatuses(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	statuses, err := deps.Gateway.ListStatuses(r.Context())
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	out := make([]statusResponse, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, statusResponse{ID: status.ID, Name: status.Name})
	}
	writeData(r.Context(), w, http.StatusOK, out)
}

func handleListUsers(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	users, err := deps.Gateway.ListUsers(r.Context())
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, userResponse{ID: user.ID, Name: user.Name, Email: user.Email, RoleID: user.RoleID, RoleName: user.RoleName})
	}
	writeData(r.Context(), w, http.StatusOK, out)
}

func handleDashboard(deps Dependencies, settings handlerSettings, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) {
		return
	}
	stats, err := deps.Gateway.GetDashboardStats(r.Context())
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	currency := settings.defaultCurrency
	if currency == "" {
		currency = "GBP"
	}
	writeData(r.Context(), w, http.StatusOK, dashboardResponse{
		TotalExpenses:           stats.TotalExpenses,
		PendingApprovals:        stats.PendingApprovals,
		ApprovedCount:           stats.ApprovedCount,
		ApprovedAmount:          stats.ApprovedAmount().StringFixed(2),
		ApprovedAmountMinor:     stats.ApprovedAmountMinor,
		FormattedApprovedAmount: expense.FormatMinor(stats.ApprovedAmountMinor, currency),
	})
}
