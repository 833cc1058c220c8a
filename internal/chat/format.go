package chat

import (
	"fmt"
	"strings"

	"github.com/expensedesk/expensedesk/internal/expense"
)

const dateLayout = "02 Jan 2006"

func formatExpenses(items []expense.Expense, empty string) string {
	if len(items) == 0 {
		return empty
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d expense(s):", len(items))
	for _, item := range items {
		b.WriteString("\n")
		b.WriteString(formatExpenseLine(item))
	}
	return b.String()
}

func formatExpenseLine(item expense.Expense) string {
	line := fmt.Sprintf("#%d | %s | %s | %s | %s | %s",
		item.ID,
		item.ExpenseDate.Format(dateLayout),
		item.UserName,
		item.CategoryName,
		expense.FormatMinor(item.AmountMinor, item.Currency),
		item.StatusName,
	)
	if item.Description != "" {
		line += " | " + item.Description
	}
	return line
}

func formatDashboard(stats expense.DashboardStats, currency string) string {
	return fmt.Sprintf(
		"Total expenses: %d\nPending approvals: %d\nApproved expenses: %d\nApproved amount: %s",
		stats.TotalExpenses,
		stats.PendingApprovals,
		stats.ApprovedCount,
		expense.FormatMinor(stats.ApprovedAmountMinor, currency),
	)
}

func formatCategories(categories []expense.Category) string {
	if len(categories) == 0 {
		return "No active categories."
	}
	parts := make([]string, 0, len(categories))
	for _, category := range categories {
		parts = append(parts, fmt.Sprintf("%d: %s", category.ID, category.Name))
	}
	return "Categories:\n" + strings.Join(parts, "\n")
}

func formatCreated(item expense.Expense) string {
	return fmt.Sprintf("Created expense #%d: %s %s on %s (%s).",
		item.ID,
		expense.FormatMinor(item.AmountMinor, item.Currency),
		item.CategoryName,
		item.ExpenseDate.Format(dateLayout),
		item.StatusName,
	)
}
