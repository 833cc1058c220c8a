package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/expensedesk/expensedesk/internal/auth"
	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/expense"
	memgateway "github.com/expensedesk/expensedesk/internal/expense/memory"
)

type decodedEnvelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	ErrorSource string          `json:"error_source"`
	ErrorCode   string          `json:"error_code"`
	Retryable   bool            `json:"retryable"`
	TraceID     string          `json:"trace_id"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) decodedEnvelope {
	t.Helper()
	var body decodedEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v (body=%s)", err, rr.Body.String())
	}
	return body
}

func loadConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("expensedesk-api", mapLookup(values))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

// authedHandler serves deps behind static keys for an employee (user 1),
// an approver (user 2) and an admin (user 3).
func authedHandler(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	cfg := loadConfig(t, map[string]string{"EXPENSEDESK_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("emp:1:employee,appr:2:approver,adm:3:admin")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	deps.AuthMiddleware = auth.Middleware(nil, validator)
	return NewHandler(cfg, deps)
}

func doRequest(h http.Handler, method, target, apiKey string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected trace id header")
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body.Success || body.ErrorCode != "NOT_READY" || !body.Retryable {
		t.Fatalf("body = %#v", body)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	h := authedHandler(t, Dependencies{Gateway: memgateway.NewSeeded()})

	unauth := doRequest(h, http.MethodGet, "/v1/categories", "", nil)
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauth.Code)
	}
	if body := decodeEnvelope(t, unauth); body.ErrorSource != sourceAuth || body.ErrorCode != "UNAUTHORIZED" {
		t.Fatalf("unauth body = %#v", body)
	}

	authed := doRequest(h, http.MethodGet, "/v1/categories", "emp", nil)
	if authed.Code != http.StatusOK {
		t.Fatalf("auth status = %d body=%s", authed.Code, authed.Body.String())
	}
	var categories []categoryResponse
	if err := json.Unmarshal(decodeEnvelope(t, authed).Data, &categories); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(categories) != 5 || categories[0].Name != "Accommodation" {
		t.Fatalf("categories = %#v", categories)
	}
}

func TestHealthIsPublicWhenAuthRequired(t *testing.T) {
	h := authedHandler(t, Dependencies{})
	rr := doRequest(h, http.MethodGet, "/v1/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"EXPENSEDESK_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{Gateway: memgateway.NewSeeded()})

	rr := doRequest(h, http.MethodGet, "/v1/expenses", "", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeEnvelope(t, rr); body.ErrorCode != "AUTH_MIDDLEWARE_MISSING" {
		t.Fatalf("body = %#v", body)
	}
}

func TestRoutesWithoutGatewayReturnNotImplemented(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := doRequest(h, http.MethodGet, "/v1/expenses", "", nil)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCheckGateway(t *testing.T) {
	if err := CheckGateway(nil)(context.Background()); err == nil {
		t.Fatal("expected error for nil gateway")
	}
	if err := CheckGateway(memgateway.New())(context.Background()); err != nil {
		t.Fatalf("CheckGateway() error = %v", err)
	}
}

func TestCheckObjectStoreConfig(t *testing.T) {
	disabled := loadConfig(t, nil)
	if err := CheckObjectStoreConfig(disabled)(context.Background()); err != nil {
		t.Fatalf("disabled store error = %v", err)
	}
	enabled := disabled
	enabled.ObjectStore.Enabled = true
	enabled.ObjectStore.Endpoint = ""
	if err := CheckObjectStoreConfig(enabled)(context.Background()); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

// outageGateway fails every call the way an unreachable database does.
type outageGateway struct {
	expense.Gateway
	kind expense.Kind
}

func (g outageGateway) ListExpenses(context.Context, expense.ListFilter) ([]expense.Expense, error) {
	return nil, expense.NewError("list expenses", g.kind, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))
}

func (g outageGateway) GetDashboardStats(context.Context) (expense.DashboardStats, error) {
	return expense.DashboardStats{}, expense.NewError("get dashboard stats", g.kind, errors.New("password authentication failed"))
}

func TestGatewayFailuresMapToServiceUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		kind      expense.Kind
		target    string
		status    int
		code      string
		retryable bool
	}{
		{name: "connectivity", kind: expense.KindConnectivity, target: "/v1/expenses", status: http.StatusServiceUnavailable, code: "DATABASE_UNAVAILABLE", retryable: true},
		{name: "authentication", kind: expense.KindAuthentication, target: "/v1/dashboard", status: http.StatusServiceUnavailable, code: "DATABASE_AUTHENTICATION_FAILED"},
		{name: "schema", kind: expense.KindSchema, target: "/v1/expenses", status: http.StatusServiceUnavailable, code: "DATABASE_SCHEMA_MISMATCH"},
		{name: "generic", kind: expense.KindGeneric, target: "/v1/expenses", status: http.StatusInternalServerError, code: "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(loadConfig(t, nil), Dependencies{Gateway: outageGateway{kind: tt.kind}})
			rr := doRequest(h, http.MethodGet, tt.target, "", nil)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			body := decodeEnvelope(t, rr)
			if body.Success || body.ErrorSource != sourceDatabase || body.ErrorCode != tt.code || body.Retryable != tt.retryable {
				t.Fatalf("body = %#v", body)
			}
			if bytes.Contains(rr.Body.Bytes(), []byte("10.0.0.5")) || bytes.Contains(rr.Body.Bytes(), []byte("password")) {
				t.Fatalf("response leaks the store cause: %s", rr.Body.String())
			}
		})
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
