package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/expensedesk/expensedesk/internal/auth"
	"github.com/expensedesk/expensedesk/internal/config"
	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/storage/memory"
)

func loadConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("expensedesk-api", func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	})
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func TestOpenGatewayInDemoModeIsSeeded(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"EXPENSEDESK_DEMO_MODE": "true"})

	gateway, err := OpenGateway(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("OpenGateway() error = %v", err)
	}
	defer func() { _ = gateway.Close() }()

	items, err := gateway.ListExpenses(context.Background(), expense.ListFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected seeded demo expenses")
	}
	if err := gateway.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}

func TestOpenObjectStore(t *testing.T) {
	demo := loadConfig(t, map[string]string{"EXPENSEDESK_DEMO_MODE": "true"})
	store, err := OpenObjectStore(context.Background(), demo)
	if err != nil {
		t.Fatalf("OpenObjectStore() error = %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("demo store = %T, want *memory.Store", store)
	}

	disabled := loadConfig(t, map[string]string{"EXPENSEDESK_OBJECTSTORE_ENABLED": "false"})
	store, err = OpenObjectStore(context.Background(), disabled)
	if err != nil || store != nil {
		t.Fatalf("disabled store = %v, %v", store, err)
	}
}

func TestNewModelClientDisabledWithoutEndpoint(t *testing.T) {
	client, err := NewModelClient(loadConfig(t, nil))
	if err != nil {
		t.Fatalf("NewModelClient() error = %v", err)
	}
	if client != nil {
		t.Fatalf("client = %T, want nil", client)
	}
}

func TestNewModelClientWithAPIKey(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"EXPENSEDESK_AI_ENDPOINT":   "https://example.openai.azure.com",
		"EXPENSEDESK_AI_DEPLOYMENT": "gpt-4o-mini",
		"EXPENSEDESK_AI_API_KEY":    "secret",
	})
	client, err := NewModelClient(cfg)
	if err != nil {
		t.Fatalf("NewModelClient() error = %v", err)
	}
	if client == nil {
		t.Fatal("expected a model client")
	}
	if svc := NewChatService(cfg, nil, client, nil); !svc.Enabled() {
		t.Fatal("chat should be enabled with a model client")
	}
}

func TestNewAuthValidator(t *testing.T) {
	if _, err := NewAuthValidator(loadConfig(t, nil)); err == nil {
		t.Fatal("expected error without keys or secret")
	}

	cfg := loadConfig(t, map[string]string{
		"EXPENSEDESK_AUTH_STATIC_KEYS": "k1:1:employee",
		"EXPENSEDESK_AUTH_JWT_SECRET":  "0123456789abcdef0123",
	})
	validator, err := NewAuthValidator(cfg)
	if err != nil {
		t.Fatalf("NewAuthValidator() error = %v", err)
	}
	if identity, ok := validator.Validate(context.Background(), "k1"); !ok || identity.UserID != 1 {
		t.Fatalf("static key identity = %#v, %v", identity, ok)
	}

	issuer, err := auth.NewJWTValidator("0123456789abcdef0123", "")
	if err != nil {
		t.Fatalf("NewJWTValidator() error = %v", err)
	}
	token, err := issuer.Issue(2, []string{auth.RoleApprover}, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), token)
	if !ok || identity.UserID != 2 || !identity.CanApprove() {
		t.Fatalf("jwt identity = %#v, %v", identity, ok)
	}
}
