package seeder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	APIBaseURL     string
	APIKey         string
	ApproverAPIKey string
	UserIDs        []int64
	ApproverUserID int64
	Currency       string
	BatchSize      int
	MaxBatches     int
	Interval       time.Duration
	HTTPTimeout    time.Duration
	SubmitPercent  int
	ReviewPercent  int
	Seed           int64
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:     "http://localhost:8080",
		UserIDs:        []int64{1},
		ApproverUserID: 2,
		Currency:       "GBP",
		BatchSize:      5,
		Interval:       5 * time.Second,
		HTTPTimeout:    10 * time.Second,
		SubmitPercent:  70,
		ReviewPercent:  50,
		Seed:           time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	steps := []func() error{
		func() error { return applyString(lookup, "EXPENSEDESK_SEEDER_API_URL", &cfg.APIBaseURL) },
		func() error { return applyString(lookup, "EXPENSEDESK_SEEDER_API_KEY", &cfg.APIKey) },
		func() error { return applyString(lookup, "EXPENSEDESK_SEEDER_APPROVER_API_KEY", &cfg.ApproverAPIKey) },
		func() error { return applyInt64List(lookup, "EXPENSEDESK_SEEDER_USER_IDS", &cfg.UserIDs) },
		func() error { return applyInt64(lookup, "EXPENSEDESK_SEEDER_APPROVER_USER_ID", &cfg.ApproverUserID) },
		func() error { return applyString(lookup, "EXPENSEDESK_SEEDER_CURRENCY", &cfg.Currency) },
		func() error { return applyInt(lookup, "EXPENSEDESK_SEEDER_BATCH_SIZE", &cfg.BatchSize) },
		func() error { return applyInt(lookup, "EXPENSEDESK_SEEDER_MAX_BATCHES", &cfg.MaxBatches) },
		func() error { return applyDuration(lookup, "EXPENSEDESK_SEEDER_INTERVAL", &cfg.Interval) },
		func() error { return applyDuration(lookup, "EXPENSEDESK_SEEDER_HTTP_TIMEOUT", &cfg.HTTPTimeout) },
		func() error { return applyInt(lookup, "EXPENSEDESK_SEEDER_SUBMIT_PERCENT", &cfg.SubmitPercent) },
		func() error { return applyInt(lookup, "EXPENSEDESK_SEEDER_REVIEW_PERCENT", &cfg.ReviewPercent) },
		func() error { return applyInt64(lookup, "EXPENSEDESK_SEEDER_SEED", &cfg.Seed) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_API_URL is required")
	}
	if len(cfg.UserIDs) == 0 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_USER_IDS must list at least one user id")
	}
	if len(strings.TrimSpace(cfg.Currency)) != 3 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_CURRENCY must be a three letter code")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_BATCH_SIZE must be > 0")
	}
	if cfg.MaxBatches < 0 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_MAX_BATCHES must be >= 0")
	}
	if cfg.Interval <= 0 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_INTERVAL must be > 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_HTTP_TIMEOUT must be > 0")
	}
	if cfg.SubmitPercent < 0 || cfg.SubmitPercent > 100 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_SUBMIT_PERCENT must be between 0 and 100")
	}
	if cfg.ReviewPercent < 0 || cfg.ReviewPercent > 100 {
		return Config{}, fmt.Errorf("EXPENSEDESK_SEEDER_REVIEW_PERCENT must be between 0 and 100")
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64List(lookup LookupFunc, key string, dst *[]int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]int64, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid %s: %q is not a user id", key, part)
		}
		values = append(values, v)
	}
	*dst = values
	return nil
}
