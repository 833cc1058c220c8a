// Package chat runs the bounded tool-calling conversation that lets a hosted
// model answer questions about expenses through the gateway.
package chat

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

var ErrInvalidRequest = errors.New("invalid chat request")

// Turn is one entry of the transcript sent to the model.
type Turn struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Caller is the authenticated user the conversation runs on behalf of.
type Caller struct {
	UserID     int64
	CanApprove bool
}

type Request struct {
	Message string
	History []Turn
	Caller  Caller
}

type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureModel      FailureKind = "model"
	FailureDatabase   FailureKind = "database"
	FailureRoundLimit FailureKind = "round_limit"
)

// Result is the outcome of one Send call. Failures are reported here rather
// than as an error so the caller always has an answer to show.
type Result struct {
	Answer       string
	Success      bool
	GenAIEnabled bool
	Failure      FailureKind
	Error        string
	Retryable    bool
	Rounds       int
	ToolResults  []ToolResult
}

type ToolResult struct {
	Name    string
	Content string
	IsError bool
}

type CompletionRequest struct {
	Messages []Turn
	Tools    []ToolDefinition
}

// Completion is either a final message or one or more tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
