package chat

const (
	ToolListExpenses         = "list_expenses"
	ToolListPendingApprovals = "list_pending_approvals"
	ToolGetDashboardStats    = "get_dashboard_stats"
	ToolListCategories       = "list_categories"
	ToolCreateExpense        = "create_expense"
	ToolApproveExpense       = "approve_expense"
)

// ToolDefinition is a callable function advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ParameterProperty is one JSON Schema property of a tool's parameters.
type ParameterProperty struct {
	Type        string
	Description string
	Enum        []string
}

func NewToolDefinition(name, description string, properties map[string]ParameterProperty, required []string) ToolDefinition {
	props := make(map[string]any, len(properties))
	for key, value := range properties {
		prop := map[string]any{
			"type":        value.Type,
			"description": value.Description,
		}
		if len(value.Enum) > 0 {
			prop["enum"] = value.Enum
		}
		props[key] = prop
	}
	if required == nil {
		required = []string{}
	}
	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           props,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

// Tools returns the fixed tool set. Submitting, rejecting and the user and
// status listings are not exposed to the model.
func Tools() []ToolDefinition {
	return []ToolDefinition{
		NewToolDefinition(
			ToolListExpenses,
			"List expenses, newest first. Optionally filter by text (matches description, employee or category) and status.",
			map[string]ParameterProperty{
				"filter": {Type: "string", Description: "Case-insensitive text to search for"},
				"status": {Type: "string", Description: "Only expenses in this status", Enum: []string{"Draft", "Submitted", "Approved", "Rejected"}},
			},
			nil,
		),
		NewToolDefinition(
			ToolListPendingApprovals,
			"List submitted expenses waiting for approval, oldest first.",
			map[string]ParameterProperty{},
			nil,
		),
		NewToolDefinition(
			ToolGetDashboardStats,
			"Get totals: number of expenses, pending approvals, approved count and approved amount.",
			map[string]ParameterProperty{},
			nil,
		),
		NewToolDefinition(
			ToolListCategories,
			"List the active expense categories with their ids.",
			map[string]ParameterProperty{},
			nil,
		),
		NewToolDefinition(
			ToolCreateExpense,
			"Create a new draft expense. Look up the category id with list_categories first.",
			map[string]ParameterProperty{
				"category_id": {Type: "integer", Description: "Id of an active category"},
				"amount":      {Type: "number", Description: "Amount in major units, for example 12.50"},
				"date":        {Type: "string", Description: "Expense date as YYYY-MM-DD, defaults to today"},
				"description": {Type: "string", Description: "Short description of the expense"},
				"user_id":     {Type: "integer", Description: "Owner of the expense, defaults to the current user"},
			},
			[]string{"category_id", "amount"},
		),
		NewToolDefinition(
			ToolApproveExpense,
			"Approve a submitted expense on behalf of the current user.",
			map[string]ParameterProperty{
				"expense_id": {Type: "integer", Description: "Id of the expense to approve"},
			},
			[]string{"expense_id"},
		),
	}
}
