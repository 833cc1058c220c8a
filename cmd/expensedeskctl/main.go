package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/expensedesk/expensedesk/internal/cli/expensedeskctl"
)

func main() {
	_ = godotenv.Load()

	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("EXPENSEDESK_CLI_TIMEOUT")), 30*time.Second)
	options := expensedeskctl.Options{
		BaseURL:     envOr("EXPENSEDESK_API_URL", "http://localhost:8080"),
		APIKey:      strings.TrimSpace(os.Getenv("EXPENSEDESK_API_KEY")),
		BearerToken: strings.TrimSpace(os.Getenv("EXPENSEDESK_API_TOKEN")),
		UserID:      strings.TrimSpace(os.Getenv("EXPENSEDESK_USER_ID")),
		Timeout:     timeout,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}

	code := expensedeskctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid EXPENSEDESK_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
