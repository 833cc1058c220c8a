package api

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"testing"

	memgateway "github.com/expensedesk/expensedesk/internal/expense/memory"
)

var (
	openAPIPathLine   = regexp.MustCompile(`^  (/v1/[^:]*):\s*$`)
	openAPIMethodLine = regexp.MustCompile(`^    (get|post|put|delete|patch):\s*$`)
)

// documentedOperations returns "METHOD /path" for every operation in
// api/openapi.yaml.
func documentedOperations(t *testing.T) []string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	content, err := os.ReadFile(filepath.Join(filepath.Dir(filename), "..", "..", "api", "openapi.yaml"))
	if err != nil {
		t.Fatalf("read openapi document: %v", err)
	}

	var ops []string
	current := ""
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if m := openAPIPathLine.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}
		if m := openAPIMethodLine.FindStringSubmatch(line); m != nil && current != "" {
			ops = append(ops, strings.ToUpper(m[1])+" "+current)
		}
	}
	sort.Strings(ops)
	return ops
}

func TestOpenAPIMatchesServedRoutes(t *testing.T) {
	served := []string{
		"GET /v1/health",
		"GET /v1/ready",
		"GET /v1/metrics",
		"GET /v1/expenses",
		"POST /v1/expenses",
		"GET /v1/expenses/{id}",
		"POST /v1/expenses/{id}/submit",
		"POST /v1/expenses/{id}/approve",
		"POST /v1/expenses/{id}/reject",
		"PUT /v1/expenses/{id}/receipt",
		"GET /v1/expenses/{id}/receipt",
		"GET /v1/approvals/pending",
		"GET /v1/categories",
		"GET /v1/statuses",
		"GET /v1/users",
		"GET /v1/dashboard",
		"POST /v1/chat",
		"GET /v1/chat/status",
		"POST /v1/exports",
		"GET /v1/reports/categories",
	}
	sort.Strings(served)

	documented := documentedOperations(t)
	if strings.Join(documented, "\n") != strings.Join(served, "\n") {
		t.Fatalf("openapi operations:\n%s\n\nserved routes:\n%s", strings.Join(documented, "\n"), strings.Join(served, "\n"))
	}
}

func TestEveryDocumentedOperationIsRouted(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: memgateway.NewSeeded()})

	for _, op := range documentedOperations(t) {
		method, path, _ := strings.Cut(op, " ")
		target := strings.ReplaceAll(path, "{id}", "1")
		rr := serve(h, httptest.NewRequest(method, target, strings.NewReader("{}")))

		if rr.Code == http.StatusMethodNotAllowed || strings.HasPrefix(rr.Body.String(), "404 page not found") {
			t.Fatalf("%s is documented but not routed (status %d)", op, rr.Code)
		}
	}
}
