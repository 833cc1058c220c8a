package expensedeskctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	UserID      string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Stdout      io.Writer
	Stderr      io.Writer
}

// request is one resolved API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

var errUsage = errors.New("usage")

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("expensedeskctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "ExpenseDesk API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	token := fs.String("token", defaults.BearerToken, "bearer token for authenticated requests")
	userID := fs.String("user-id", defaults.UserID, "X-User-ID header (used when auth is disabled)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	call, err := resolve(fs.Arg(0), fs.Args()[1:], stderr)
	if err != nil {
		if !errors.Is(err, errUsage) {
			_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		}
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + call.path
	if len(call.query) > 0 {
		endpoint += "?" + call.query.Encode()
	}
	code, responseBody, err := doRequest(ctx, client, call, endpoint, credentials{apiKey: *apiKey, token: *token, userID: *userID})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = stdout.Write(responseBody)
	}
	return 0
}

func resolve(command string, args []string, stderr io.Writer) (request, error) {
	switch strings.TrimSpace(command) {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "expenses":
		fs := flag.NewFlagSet("expenses", flag.ContinueOnError)
		fs.SetOutput(stderr)
		filter := fs.String("filter", "", "match description, user or category")
		status := fs.String("status", "", "Draft, Submitted, Approved or Rejected")
		if err := fs.Parse(args); err != nil {
			return request{}, errUsage
		}
		query := url.Values{}
		if *filter != "" {
			query.Set("filter", *filter)
		}
		if *status != "" {
			query.Set("status", *status)
		}
		return request{method: http.MethodGet, path: "/v1/expenses", query: query}, nil
	case "expense":
		id, err := expenseID(args)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodGet, path: "/v1/expenses/" + id}, nil
	case "create":
		return resolveCreate(args, stderr)
	case "submit", "approve", "reject":
		id, err := expenseID(args)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/expenses/" + id + "/" + command}, nil
	case "receipt":
		return resolveReceipt(args)
	case "pending":
		return request{method: http.MethodGet, path: "/v1/approvals/pending"}, nil
	case "categories":
		return request{method: http.MethodGet, path: "/v1/categories"}, nil
	case "dashboard":
		return request{method: http.MethodGet, path: "/v1/dashboard"}, nil
	case "chat":
		message := strings.TrimSpace(strings.Join(args, " "))
		if message == "" {
			return request{}, fmt.Errorf("chat requires a message")
		}
		body, _ := json.Marshal(map[string]string{"message": message})
		return request{method: http.MethodPost, path: "/v1/chat", body: body, contentType: "application/json"}, nil
	case "export":
		return request{method: http.MethodPost, path: "/v1/exports"}, nil
	case "report":
		fs := flag.NewFlagSet("report", flag.ContinueOnError)
		fs.SetOutput(stderr)
		exportKey := fs.String("export", "", "export object key (latest when empty)")
		if err := fs.Parse(args); err != nil {
			return request{}, errUsage
		}
		query := url.Values{}
		if *exportKey != "" {
			query.Set("export", *exportKey)
		}
		return request{method: http.MethodGet, path: "/v1/reports/categories", query: query}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func resolveCreate(args []string, stderr io.Writer) (request, error) {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	category := fs.Int64("category", 0, "category id")
	amount := fs.String("amount", "", "amount in major units, e.g. 12.50")
	currency := fs.String("currency", "", "ISO currency code (server default when empty)")
	date := fs.String("date", "", "expense date as YYYY-MM-DD (today when empty)")
	description := fs.String("description", "", "free text description")
	owner := fs.Int64("user", 0, "owner user id (approvers only, defaults to the caller)")
	if err := fs.Parse(args); err != nil {
		return request{}, errUsage
	}
	if *category <= 0 || strings.TrimSpace(*amount) == "" {
		return request{}, fmt.Errorf("create requires -category and -amount")
	}

	payload := map[string]any{
		"category_id": *category,
		"amount":      strings.TrimSpace(*amount),
	}
	if *currency != "" {
		payload["currency"] = *currency
	}
	if *date != "" {
		payload["expense_date"] = *date
	}
	if *description != "" {
		payload["description"] = *description
	}
	if *owner > 0 {
		payload["user_id"] = *owner
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, err
	}
	return request{method: http.MethodPost, path: "/v1/expenses", body: body, contentType: "application/json"}, nil
}

func resolveReceipt(args []string) (request, error) {
	if len(args) != 2 {
		return request{}, fmt.Errorf("receipt requires an expense id and a file path")
	}
	id, err := expenseID(args[:1])
	if err != nil {
		return request{}, err
	}
	body, err := os.ReadFile(args[1])
	if err != nil {
		return request{}, fmt.Errorf("read receipt: %w", err)
	}
	query := url.Values{"filename": []string{filepath.Base(args[1])}}
	return request{method: http.MethodPut, path: "/v1/expenses/" + id + "/receipt", query: query, body: body}, nil
}

func expenseID(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one expense id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid expense id %q", args[0])
	}
	return strconv.FormatInt(id, 10), nil
}

type credentials struct {
	apiKey string
	token  string
	userID string
}

func doRequest(ctx context.Context, client *http.Client, call request, endpoint string, creds credentials) (int, []byte, error) {
	var body io.Reader
	if call.body != nil {
		body = bytes.NewReader(call.body)
	}
	req, err := http.NewRequestWithContext(ctx, call.method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if call.contentType != "" {
		req.Header.Set("Content-Type", call.contentType)
	}
	if key := strings.TrimSpace(creds.apiKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if token := strings.TrimSpace(creds.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if userID := strings.TrimSpace(creds.userID); userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: expensedeskctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  expenses [-filter] [-status] GET /v1/expenses")
	_, _ = fmt.Fprintln(w, "  expense <id>                GET /v1/expenses/{id}")
	_, _ = fmt.Fprintln(w, "  create -category -amount    POST /v1/expenses")
	_, _ = fmt.Fprintln(w, "  submit <id>                 POST /v1/expenses/{id}/submit")
	_, _ = fmt.Fprintln(w, "  approve <id>                POST /v1/expenses/{id}/approve")
	_, _ = fmt.Fprintln(w, "  reject <id>                 POST /v1/expenses/{id}/reject")
	_, _ = fmt.Fprintln(w, "  receipt <id> <file>         PUT /v1/expenses/{id}/receipt")
	_, _ = fmt.Fprintln(w, "  pending                     GET /v1/approvals/pending")
	_, _ = fmt.Fprintln(w, "  categories                  GET /v1/categories")
	_, _ = fmt.Fprintln(w, "  dashboard                   GET /v1/dashboard")
	_, _ = fmt.Fprintln(w, "  chat <message>              POST /v1/chat")
	_, _ = fmt.Fprintln(w, "  export                      POST /v1/exports")
	_, _ = fmt.Fprintln(w, "  report [-export key]        GET /v1/reports/categories")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
