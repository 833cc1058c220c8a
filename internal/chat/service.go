package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/expensedesk/expensedesk/internal/expense"
	"github.com/expensedesk/expensedesk/internal/observability"
)

const (
	DefaultMaxToolRounds = 6

	DisabledMessage    = "Chat is not configured for this deployment. Set EXPENSEDESK_AI_ENDPOINT to enable it."
	RoundLimitMessage  = "Sorry, I could not complete that request. Try asking for something more specific."
	ModelFailedMessage = "Sorry, the assistant is unavailable right now. Please try again later."
	StoreFailedMessage = "Sorry, expense data could not be reached right now. Please try again later."
)

type Config struct {
	MaxToolRounds   int
	MaxHistoryTurns int
	DefaultCurrency string
	Now             func() time.Time
	Logger          *slog.Logger
}

type Service struct {
	gateway    expense.Gateway
	model      ModelClient
	tools      []ToolDefinition
	maxRounds  int
	maxHistory int
	currency   string
	now        func() time.Time
	logger     *slog.Logger
}

// NewService returns a chat service. A nil model leaves chat disabled.
func NewService(gateway expense.Gateway, model ModelClient, cfg Config) *Service {
	s := &Service{
		gateway:    gateway,
		model:      model,
		tools:      Tools(),
		maxRounds:  cfg.MaxToolRounds,
		maxHistory: cfg.MaxHistoryTurns,
		currency:   strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency)),
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if s.maxRounds <= 0 {
		s.maxRounds = DefaultMaxToolRounds
	}
	if s.currency == "" {
		s.currency = "GBP"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *Service) Enabled() bool {
	return s != nil && s.model != nil
}

// Send runs one conversation turn. The returned error is non-nil only for
// malformed requests; every other failure is described by the Result.
func (s *Service) Send(ctx context.Context, req Request) (Result, error) {
	if !s.Enabled() {
		observability.ObserveChatDisabled()
		return Result{Answer: DisabledMessage, Success: true, GenAIEnabled: false}, nil
	}

	transcript, err := s.transcript(req)
	if err != nil {
		return Result{}, err
	}

	result := Result{GenAIEnabled: true}
	toolRounds := 0
	for {
		completion, err := s.model.Complete(ctx, CompletionRequest{Messages: transcript, Tools: s.tools})
		result.Rounds++
		if err != nil {
			return s.fail(ctx, result, FailureModel, ModelFailedMessage, err), nil
		}
		if len(completion.ToolCalls) == 0 {
			answer := strings.TrimSpace(completion.Content)
			if answer == "" {
				return s.fail(ctx, result, FailureModel, ModelFailedMessage, fmt.Errorf("model returned an empty answer")), nil
			}
			result.Answer = answer
			result.Success = true
			observability.ObserveChatRequest(true, result.Rounds)
			s.logger.InfoContext(ctx, "chat completed",
				slog.Int("rounds", result.Rounds),
				slog.Int("tool_results", len(result.ToolResults)),
			)
			return result, nil
		}
		if toolRounds >= s.maxRounds {
			return s.fail(ctx, result, FailureRoundLimit, RoundLimitMessage, fmt.Errorf("exceeded %d tool rounds", s.maxRounds)), nil
		}
		toolRounds++

		transcript = append(transcript, Turn{Role: RoleAssistant, Content: completion.Content, ToolCalls: completion.ToolCalls})
		for _, call := range completion.ToolCalls {
			content, err := s.dispatch(ctx, req.Caller, call)
			observability.ObserveToolCall(call.Name, err)
			isError := false
			if err != nil {
				if !recoverable(err) {
					return s.fail(ctx, result, FailureDatabase, StoreFailedMessage, err), nil
				}
				s.logger.WarnContext(ctx, "tool call failed",
					slog.String("tool", call.Name),
					slog.Any("error", err),
				)
				content = toolErrorPayload(err)
				isError = true
			}
			transcript = append(transcript, Turn{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name})
			result.ToolResults = append(result.ToolResults, ToolResult{Name: call.Name, Content: content, IsError: isError})
		}
	}
}

func (s *Service) fail(ctx context.Context, result Result, kind FailureKind, answer string, err error) Result {
	result.Success = false
	result.Failure = kind
	result.Answer = answer
	result.Error = err.Error()
	result.Retryable = retryableFailure(kind, err)
	observability.ObserveChatRequest(false, result.Rounds)
	s.logger.WarnContext(ctx, "chat failed",
		slog.String("failure", string(kind)),
		slog.Bool("retryable", result.Retryable),
		slog.Int("rounds", result.Rounds),
		slog.Any("error", err),
	)
	return result
}

// retryableFailure reports whether repeating the request could succeed.
// Model errors without a Retryable method are transport failures.
func retryableFailure(kind FailureKind, err error) bool {
	switch kind {
	case FailureModel:
		var classified interface{ Retryable() bool }
		if errors.As(err, &classified) {
			return classified.Retryable()
		}
		return true
	case FailureDatabase:
		return expense.KindOf(err) == expense.KindConnectivity
	}
	return false
}

func (s *Service) transcript(req Request) ([]Turn, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}

	history := req.History
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	transcript := make([]Turn, 0, len(history)+2)
	transcript = append(transcript, Turn{Role: RoleSystem, Content: s.systemPrompt(req.Caller)})
	for i, turn := range history {
		if turn.Role != RoleUser && turn.Role != RoleAssistant {
			return nil, fmt.Errorf("%w: history[%d] has unsupported role %q", ErrInvalidRequest, i, turn.Role)
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		transcript = append(transcript, Turn{Role: turn.Role, Content: turn.Content})
	}
	return append(transcript, Turn{Role: RoleUser, Content: message}), nil
}

func (s *Service) systemPrompt(caller Caller) string {
	var b strings.Builder
	b.WriteString("You are the expense assistant for an internal expense management app. ")
	b.WriteString("You can list and search expenses, list expenses waiting for approval, show dashboard totals, ")
	b.WriteString("list expense categories, create draft expenses and approve submitted expenses by calling the provided tools. ")
	b.WriteString("Only state facts returned by the tools. Keep answers short and format money with its currency symbol.\n")
	fmt.Fprintf(&b, "Today is %s. The default currency is %s.", s.now().UTC().Format(dateLayout), s.currency)
	if caller.UserID > 0 {
		fmt.Fprintf(&b, " The current user id is %d.", caller.UserID)
	}
	if !caller.CanApprove {
		b.WriteString(" The current user cannot approve expenses.")
	}
	return b.String()
}
