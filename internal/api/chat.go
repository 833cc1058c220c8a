package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/expensedesk/expensedesk/internal/chat"
)

type chatTurnRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string            `json:"message"`
	History []chatTurnRequest `json:"history"`
}

type chatToolResponse struct {
	Name    string `json:"name"`
	IsError bool   `json:"is_error"`
}

type chatResponse struct {
	Answer       string             `json:"answer"`
	GenAIEnabled bool               `json:"genai_enabled"`
	Rounds       int                `json:"rounds"`
	Tools        []chatToolResponse `json:"tools"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_JSON", "invalid chat request body: "+err.Error(), false)
		return
	}

	history := make([]chat.Turn, 0, len(request.History))
	for _, turn := range request.History {
		history = append(history, chat.Turn{Role: chat.Role(turn.Role), Content: turn.Content})
	}
	userID, _ := callerFromRequest(r)

	result, err := deps.Chat.Send(r.Context(), chat.Request{
		Message: request.Message,
		History: history,
		Caller:  chat.Caller{UserID: userID, CanApprove: canApprove(r)},
	})
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_CHAT_REQUEST", err.Error(), false)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, sourceGenAI, "INTERNAL", "unexpected chat failure", false)
		return
	}

	response := chatResponse{
		Answer:       result.Answer,
		GenAIEnabled: result.GenAIEnabled,
		Rounds:       result.Rounds,
		Tools:        make([]chatToolResponse, 0, len(result.ToolResults)),
	}
	for _, tool := range result.ToolResults {
		response.Tools = append(response.Tools, chatToolResponse{Name: tool.Name, IsError: tool.IsError})
	}

	if result.Success {
		writeData(r.Context(), w, http.StatusOK, response)
		return
	}

	status, source, code := http.StatusOK, sourceGenAI, "TOOL_ROUND_LIMIT"
	switch result.Failure {
	case chat.FailureModel:
		status, code = http.StatusBadGateway, "MODEL_UNAVAILABLE"
	case chat.FailureDatabase:
		status, source, code = http.StatusServiceUnavailable, sourceDatabase, "DATABASE_UNAVAILABLE"
	}
	writeJSON(w, status, envelope{
		Success:     false,
		Data:        response,
		Error:       result.Error,
		ErrorSource: source,
		ErrorCode:   code,
		Retryable:   result.Retryable,
		TraceID:     traceID(r),
	})
}
