package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/expensedesk/expensedesk/internal/expense"
)

const (
	RoleEmployee int64 = 1
	RoleApprover int64 = 2
	RoleAdmin    int64 = 3
)

func defaultCategories() []expense.Category {
	return []expense.Category{
		{ID: 1, Name: "Travel", Active: true},
		{ID: 2, Name: "Meals", Active: true},
		{ID: 3, Name: "Accommodation", Active: true},
		{ID: 4, Name: "Office Supplies", Active: true},
		{ID: 5, Name: "Training", Active: true},
		{ID: 6, Name: "Entertainment", Active: false},
	}
}

func defaultUsers() []expense.User {
	return []expense.User{
		{ID: 1, Name: "Alice Example", Email: "alice@example.com", RoleID: RoleEmployee, RoleName: "Employee", Active: true},
		{ID: 2, Name: "Bob Manager", Email: "bob.manager@example.com", RoleID: RoleApprover, RoleName: "Manager", Active: true},
		{ID: 3, Name: "Carol Admin", Email: "carol@example.com", RoleID: RoleAdmin, RoleName: "Administrator", Active: true},
		{ID: 4, Name: "Dan Leaver", Email: "dan@example.com", RoleID: RoleEmployee, RoleName: "Employee", Active: false},
	}
}

type seedExpense struct {
	userID      int64
	categoryID  int64
	amount      string
	daysAgo     int
	description string
	statusID    int64
}

func (g *Gateway) seed() {
	base := g.now().UTC()
	seeds := []seedExpense{
		{userID: 1, categoryID: 1, amount: "25.40", daysAgo: 12, description: "Taxi from airport to client office", statusID: expense.StatusApproved},
		{userID: 1, categoryID: 2, amount: "12.50", daysAgo: 9, description: "Team lunch", statusID: expense.StatusSubmitted},
		{userID: 3, categoryID: 4, amount: "45.99", daysAgo: 7, description: "Printer toner", statusID: expense.StatusRejected},
		{userID: 1, categoryID: 3, amount: "189.00", daysAgo: 5, description: "Hotel, two nights Manchester", statusID: expense.StatusSubmitted},
		{userID: 3, categoryID: 5, amount: "299.00", daysAgo: 3, description: "Cloud certification exam", statusID: expense.StatusApproved},
		{userID: 1, categoryID: 1, amount: "8.20", daysAgo: 1, description: "Taxi to station", statusID: expense.StatusDraft},
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i, s := range seeds {
		created := base.Add(-time.Duration(s.daysAgo)*24*time.Hour + time.Duration(i)*time.Minute)
		user, _ := g.userByID(s.userID)
		category, _ := g.categoryByID(s.categoryID)
		item := &expense.Expense{
			ID:           g.nextID,
			UserID:       user.ID,
			UserName:     user.Name,
			CategoryID:   category.ID,
			CategoryName: category.Name,
			StatusID:     s.statusID,
			StatusName:   expense.StatusName(s.statusID),
			AmountMinor:  expense.MinorFromMajor(decimal.RequireFromString(s.amount)),
			Currency:     "GBP",
			ExpenseDate:  truncateDate(created),
			Description:  s.description,
			CreatedAt:    created,
		}
		if s.statusID != expense.StatusDraft {
			submitted := created.Add(time.Hour)
			item.SubmittedAt = &submitted
		}
		if s.statusID == expense.StatusApproved || s.statusID == expense.StatusRejected {
			reviewer, _ := g.userByID(2)
			reviewed := created.Add(24 * time.Hour)
			item.ReviewedBy = &reviewer.ID
			item.ReviewedByName = reviewer.Name
			item.ReviewedAt = &reviewed
		}
		g.expenses[item.ID] = item
		g.nextID++
	}
}
