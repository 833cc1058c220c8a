// Package seeder drives the public API with plausible expense traffic for
// demos: it creates drafts, submits most of them and reviews some.
package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Service struct {
	cfg        Config
	log        *slog.Logger
	http       *http.Client
	generator  *Generator
	categories []Category
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type createdExpense struct {
	ID         int64  `json:"id"`
	StatusName string `json:"status_name"`
}

// BatchResult counts what one batch did.
type BatchResult struct {
	Created   int
	Submitted int
	Approved  int
	Rejected  int
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if len(cfg.UserIDs) == 0 {
		return nil, fmt.Errorf("at least one user id is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Service{
		cfg:       cfg,
		log:       logger,
		http:      client,
		generator: NewGenerator(cfg.Seed, cfg.UserIDs, cfg.Currency),
	}, nil
}

// Run seeds one batch per interval until ctx is done or MaxBatches batches
// have been attempted.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	batches := 0
	for {
		if _, err := s.SeedOnce(ctx); err != nil {
			s.log.Error("failed to seed demo batch", slog.Any("error", err))
		}
		batches++
		if s.cfg.MaxBatches > 0 && batches >= s.cfg.MaxBatches {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) SeedOnce(ctx context.Context) (BatchResult, error) {
	var result BatchResult
	if len(s.categories) == 0 {
		if err := s.loadCategories(ctx); err != nil {
			return result, err
		}
	}

	for i := 0; i < s.cfg.BatchSize; i++ {
		draft := s.generator.NextExpense(s.categories)
		created, err := s.create(ctx, draft)
		if err != nil {
			return result, err
		}
		result.Created++

		if !s.generator.Roll(s.cfg.SubmitPercent) {
			continue
		}
		if err := s.post(ctx, "/v1/expenses/"+strconv.FormatInt(created.ID, 10)+"/submit", s.cfg.APIKey, draft.UserID); err != nil {
			return result, err
		}
		result.Submitted++

		if !s.generator.Roll(s.cfg.ReviewPercent) {
			continue
		}
		action := "approve"
		if s.generator.Roll(25) {
			action = "reject"
		}
		if err := s.post(ctx, "/v1/expenses/"+strconv.FormatInt(created.ID, 10)+"/"+action, s.reviewerKey(), s.cfg.ApproverUserID); err != nil {
			return result, err
		}
		if action == "approve" {
			result.Approved++
		} else {
			result.Rejected++
		}
	}

	s.log.Info("seeded demo expenses",
		slog.Int("created", result.Created),
		slog.Int("submitted", result.Submitted),
		slog.Int("approved", result.Approved),
		slog.Int("rejected", result.Rejected),
	)
	return result, nil
}

func (s *Service) loadCategories(ctx context.Context) error {
	var categories []Category
	status, body, err := s.doJSON(ctx, http.MethodGet, "/v1/categories", s.cfg.APIKey, 0, nil, &categories)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("load categories status %d: %s", status, strings.TrimSpace(string(body)))
	}
	if len(categories) == 0 {
		return fmt.Errorf("no active categories to seed against")
	}
	s.categories = categories
	return nil
}

func (s *Service) create(ctx context.Context, draft ExpenseDraft) (createdExpense, error) {
	var created createdExpense
	status, body, err := s.doJSON(ctx, http.MethodPost, "/v1/expenses", s.cfg.APIKey, draft.UserID, draft, &created)
	if err != nil {
		return created, fmt.Errorf("create expense: %w", err)
	}
	if status != http.StatusCreated {
		return created, fmt.Errorf("create expense status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return created, nil
}

func (s *Service) post(ctx context.Context, path, apiKey string, userID int64) error {
	status, body, err := s.doJSON(ctx, http.MethodPost, path, apiKey, userID, nil, nil)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("POST %s status %d: %s", path, status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *Service) reviewerKey() string {
	if s.cfg.ApproverAPIKey != "" {
		return s.cfg.ApproverAPIKey
	}
	return s.cfg.APIKey
}

// doJSON sends one request and unwraps the response envelope's data into
// responseData.
func (s *Service) doJSON(ctx context.Context, method, path, apiKey string, userID int64, requestBody, responseData any) (int, []byte, error) {
	var payload io.Reader
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	} else if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	if responseData != nil && resp.StatusCode < 300 && len(bytes.TrimSpace(body)) > 0 {
		var wrapped envelope
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return resp.StatusCode, body, fmt.Errorf("decode response: %w", err)
		}
		if err := json.Unmarshal(wrapped.Data, responseData); err != nil {
			return resp.StatusCode, body, fmt.Errorf("decode response data: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}
