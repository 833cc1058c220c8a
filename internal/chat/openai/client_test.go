package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/expensedesk/expensedesk/internal/chat"
	"github.com/expensedesk/expensedesk/internal/expense/memory"
)

func TestCompleteSendsToolsAndParsesToolCalls(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"list_categories","arguments":"{}"}}]}}]}`))
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: server.URL + "/", Model: "gpt-test", Credential: APIKeyCredential{Key: "sk-test"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out, err := client.Complete(context.Background(), chat.CompletionRequest{
		Messages: []chat.Turn{
			{Role: chat.RoleSystem, Content: "system"},
			{Role: chat.RoleUser, Content: "what categories exist?"},
		},
		Tools: chat.Tools(),
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].ID != "call_1" || out.ToolCalls[0].Name != "list_categories" {
		t.Fatalf("tool calls = %#v", out.ToolCalls)
	}

	if captured["model"] != "gpt-test" || captured["tool_choice"] != "auto" {
		t.Fatalf("payload = %#v", captured)
	}
	tools, _ := captured["tools"].([]any)
	if len(tools) != 6 {
		t.Fatalf("len(tools) = %d", len(tools))
	}
	first := tools[0].(map[string]any)
	if first["type"] != "function" {
		t.Fatalf("tool = %#v", first)
	}
}

func TestCompleteEncodesToolTurns(t *testing.T) {
	var captured struct {
		Messages []map[string]any `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"There are 5 categories."}}]}`))
	}))
	defer server.Close()

	client, _ := New(Config{Endpoint: server.URL, Credential: APIKeyCredential{Key: "k"}})
	out, err := client.Complete(context.Background(), chat.CompletionRequest{Messages: []chat.Turn{
		{Role: chat.RoleUser, Content: "categories?"},
		{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{ID: "call_1", Name: "list_categories", Arguments: "{}"}}},
		{Role: chat.RoleTool, ToolCallID: "call_1", Name: "list_categories", Content: "Categories:\n1: Travel"},
	}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Content != "There are 5 categories." {
		t.Fatalf("Content = %q", out.Content)
	}

	if len(captured.Messages) != 3 {
		t.Fatalf("messages = %#v", captured.Messages)
	}
	assistant := captured.Messages[1]
	if content, ok := assistant["content"]; !ok || content != nil {
		t.Fatalf("assistant content = %#v, want null", assistant["content"])
	}
	calls := assistant["tool_calls"].([]any)
	call := calls[0].(map[string]any)
	if call["id"] != "call_1" || call["type"] != "function" {
		t.Fatalf("tool call = %#v", call)
	}
	tool := captured.Messages[2]
	if tool["role"] != "tool" || tool["tool_call_id"] != "call_1" {
		t.Fatalf("tool turn = %#v", tool)
	}
}

func TestCompleteUsesAzureDeploymentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/chat-gpt4o/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-06-01" {
			t.Errorf("api-version = %q", got)
		}
		if got := r.Header.Get("api-key"); got != "azure-key" {
			t.Errorf("api-key = %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client, err := New(Config{
		Endpoint:   server.URL,
		Deployment: "chat-gpt4o",
		Credential: APIKeyCredential{Key: "azure-key", Header: "api-key"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), chat.CompletionRequest{Messages: []chat.Turn{{Role: chat.RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client, _ := New(Config{Endpoint: server.URL, Credential: APIKeyCredential{Key: "k"}})
	_, err := client.Complete(context.Background(), chat.CompletionRequest{Messages: []chat.Turn{{Role: chat.RoleUser, Content: "hi"}}})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Complete() error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Retryable() {
		t.Fatalf("status error = %#v", statusErr)
	}
}

func TestUnauthorizedEndpointFailsChatWithoutRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: server.URL, Credential: APIKeyCredential{Key: "wrong"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	svc := chat.NewService(memory.New(), client, chat.Config{})
	result, err := svc.Send(context.Background(), chat.Request{Message: "how much is pending?"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.Success || result.Failure != chat.FailureModel {
		t.Fatalf("result = %#v", result)
	}
	if result.Retryable {
		t.Fatal("401 from the model endpoint reported as retryable")
	}
}

func TestNewRequiresEndpointAndCredential(t *testing.T) {
	if _, err := New(Config{Credential: APIKeyCredential{Key: "k"}}); err == nil {
		t.Fatal("expected endpoint error")
	}
	if _, err := New(Config{Endpoint: "https://example.openai.azure.com"}); err == nil {
		t.Fatal("expected credential error")
	}
}

type fakeTokenSource struct {
	scopes []string
}

func (f *fakeTokenSource) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = opts.Scopes
	return azcore.AccessToken{Token: "aad-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestTokenCredentialSetsBearerToken(t *testing.T) {
	source := &fakeTokenSource{}
	cred := NewTokenCredential(source, "")
	req := httptest.NewRequest(http.MethodPost, "https://example.openai.azure.com", nil)

	if err := cred.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer aad-token" {
		t.Fatalf("Authorization = %q", got)
	}
	if len(source.scopes) != 1 || source.scopes[0] != CognitiveServicesScope {
		t.Fatalf("scopes = %v", source.scopes)
	}
}

func TestAPIKeyCredentialRejectsEmptyKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://example.com", nil)
	if err := (APIKeyCredential{}).Apply(context.Background(), req); err == nil {
		t.Fatal("expected empty key error")
	}
}
