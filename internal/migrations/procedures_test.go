package migrations

import (
	"strings"
	"testing"
)

func TestProcedureMigrationDefinesGatewayFunctions(t *testing.T) {
	body, err := embeddedFS.ReadFile("sql/000003_procedures.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	sql := string(body)
	requiredSnippets := []string{
		"FUNCTION usp_list_expenses(p_filter TEXT DEFAULT NULL, p_status TEXT DEFAULT NULL)",
		"FUNCTION usp_get_expense(p_id BIGINT)",
		"FUNCTION usp_create_expense(",
		"FUNCTION usp_submit_expense(p_id BIGINT)",
		"FUNCTION usp_approve_expense(p_id BIGINT, p_reviewer_id BIGINT)",
		"FUNCTION usp_reject_expense(p_id BIGINT, p_reviewer_id BIGINT)",
		"FUNCTION usp_attach_receipt(p_id BIGINT, p_receipt_file TEXT)",
		"FUNCTION usp_list_pending_approvals()",
		"FUNCTION usp_list_categories()",
		"FUNCTION usp_list_statuses()",
		"FUNCTION usp_list_users()",
		"FUNCTION usp_get_dashboard_stats()",
		"ORDER BY d.created_at DESC",
		"COALESCE(SUM(e.amount_minor) FILTER (WHERE e.status_id = 3), 0)",
	}
	for _, snippet := range requiredSnippets {
		if !strings.Contains(sql, snippet) {
			t.Fatalf("migration missing required snippet: %s", snippet)
		}
	}

	down, err := embeddedFS.ReadFile("sql/000003_procedures.down.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.Count(string(down), "DROP FUNCTION"); got != 12 {
		t.Fatalf("down migration drops %d functions, want 12", got)
	}
}

func TestSchemaMigrationSeedsClosedStatusSet(t *testing.T) {
	body, err := embeddedFS.ReadFile("sql/000002_reference_data.up.sql")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, status := range []string{"(1, 'Draft')", "(2, 'Submitted')", "(3, 'Approved')", "(4, 'Rejected')"} {
		if !strings.Contains(string(body), status) {
			t.Fatalf("reference data missing status %s", status)
		}
	}
}
