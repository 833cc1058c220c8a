package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/expensedesk/expensedesk/internal/auth"
	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/reports"
	"github.com/expensedesk/expensedesk/internal/storage"
)

func handleRunExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, sourceStorage, "EXPORT_NOT_CONFIGURED", "expense export is not configured", false)
		return
	}
	if err := requireAnyRole(r, auth.RoleApprover, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, sourceAuth, "FORBIDDEN", err.Error(), false)
		return
	}
	summary, err := deps.Exporter.ExportOnce(r.Context())
	if err != nil {
		if expense.KindOf(err) != expense.KindGeneric {
			writeGatewayError(deps, w, r, err)
			return
		}
		writeStorageError(deps, w, r, err)
		return
	}
	writeData(r.Context(), w, http.StatusOK, summary)
}

func handleCategoryReport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Reports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, sourceStorage, "REPORTS_NOT_CONFIGURED", "reports are not configured", false)
		return
	}
	if err := requireAnyRole(r, auth.RoleApprover, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, sourceAuth, "FORBIDDEN", err.Error(), false)
		return
	}
	summary, err := deps.Reports.CategorySummary(r.Context(), strings.TrimSpace(r.URL.Query().Get("export")))
	if err != nil {
		switch {
		case errors.Is(err, reports.ErrNoExports):
			writeError(r.Context(), w, http.StatusNotFound, sourceStorage, "NO_EXPORTS", err.Error(), false)
		case errors.Is(err, storage.ErrObjectNotFound):
			writeError(r.Context(), w, http.StatusNotFound, sourceStorage, "EXPORT_NOT_FOUND", "export object was not found", false)
		case errors.Is(err, reports.ErrNotAnExportKey):
			writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_EXPORT_KEY", err.Error(), false)
		default:
			writeStorageError(deps, w, r, err)
		}
		return
	}
	writeData(r.Context(), w, http.StatusOK, summary)
}
