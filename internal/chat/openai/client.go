// Package openai talks to OpenAI-compatible chat completion endpoints,
// including Azure OpenAI deployments.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/expensedesk/expensedesk/internal/chat"
)

type Config struct {
	Endpoint    string
	Deployment  string
	APIVersion  string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Credential  Credential
	HTTPClient  *http.Client
}

type Client struct {
	url         string
	model       string
	temperature float64
	credential  Credential
	client      *http.Client
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat completion failed status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure was throttling or a server error.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Credential == nil {
		return nil, fmt.Errorf("credential is required")
	}
	completionsURL, err := completionsURL(endpoint, strings.TrimSpace(cfg.Deployment), strings.TrimSpace(cfg.APIVersion))
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:         completionsURL,
		model:       model,
		temperature: cfg.Temperature,
		credential:  cfg.Credential,
		client:      httpClient,
	}, nil
}

func completionsURL(endpoint, deployment, apiVersion string) (string, error) {
	if deployment == "" {
		return endpoint + "/v1/chat/completions", nil
	}
	if apiVersion == "" {
		apiVersion = "2024-06-01"
	}
	base, err := url.Parse(endpoint)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q", endpoint)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/openai/deployments/" + url.PathEscape(deployment) + "/chat/completions"
	base.RawQuery = url.Values{"api-version": []string{apiVersion}}.Encode()
	return base.String(), nil
}

func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (chat.Completion, error) {
	body, err := json.Marshal(buildPayload(c.model, c.temperature, req))
	if err != nil {
		return chat.Completion{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return chat.Completion{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.credential.Apply(ctx, httpReq); err != nil {
		return chat.Completion{}, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return chat.Completion{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return chat.Completion{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return chat.Completion{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(rawRespBody), 512)}
	}

	var parsed completionResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return chat.Completion{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return chat.Completion{}, fmt.Errorf("empty chat completion choices")
	}

	message := parsed.Choices[0].Message
	out := chat.Completion{Content: message.Content}
	for _, call := range message.ToolCalls {
		if call.Type != "" && call.Type != "function" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func buildPayload(model string, temperature float64, req chat.CompletionRequest) completionRequest {
	payload := completionRequest{
		Model:       model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: temperature,
	}
	for _, turn := range req.Messages {
		content := turn.Content
		msg := wireMessage{
			Role:       string(turn.Role),
			Content:    &content,
			ToolCallID: turn.ToolCallID,
		}
		if turn.Role == chat.RoleTool {
			msg.Name = turn.Name
		}
		if len(turn.ToolCalls) > 0 {
			if strings.TrimSpace(content) == "" {
				msg.Content = nil
			}
			for _, call := range turn.ToolCalls {
				wc := wireToolCall{ID: call.ID, Type: "function"}
				wc.Function.Name = call.Name
				wc.Function.Arguments = call.Arguments
				msg.ToolCalls = append(msg.ToolCalls, wc)
			}
		}
		payload.Messages = append(payload.Messages, msg)
	}
	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if len(payload.Tools) > 0 {
		payload.ToolChoice = "auto"
	}
	return payload
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
