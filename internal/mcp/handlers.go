package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/daybook/internal/errors"
	"github.com/hpungsan/daybook/internal/monitor"
	"github.com/hpungsan/daybook/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	m *monitor.Monitor
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(m *monitor.Monitor) *Handlers {
	return &Handlers{m: m}
}

// Request types for each tool

// TodayRequest represents the arguments for activity_today.
type TodayRequest struct {
	IncludeSessions bool `json:"include_sessions,omitempty"`
}

// SessionsRequest represents the arguments for activity_sessions.
type SessionsRequest struct {
	Date    string `json:"date,omitempty"`
	Project string `json:"project,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// GetSummaryRequest represents the arguments for summary_get.
type GetSummaryRequest struct {
	Date string `json:"date,omitempty"`
}

// HistoryRequest represents the arguments for summary_history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// GenerateRequest represents the arguments for summary_generate.
type GenerateRequest struct {
	Force bool `json:"force,omitempty"`
}

// Handler implementations

// HandleToday handles the activity_today tool call.
func (h *Handlers) HandleToday(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TodayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Today(ctx, h.m, ops.TodayInput{IncludeSessions: input.IncludeSessions})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleWeek handles the activity_week tool call.
func (h *Handlers) HandleWeek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Week(ctx, h.m)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessions handles the activity_sessions tool call.
func (h *Handlers) HandleSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Sessions(ctx, h.m, ops.SessionsInput{
		Date:    input.Date,
		Project: input.Project,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGetSummary handles the summary_get tool call.
func (h *Handlers) HandleGetSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetSummaryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	// Make sure today's live state exists before reading it.
	if _, err := h.m.Refresh(ctx); err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}
	result, err := ops.GetSummary(h.m, ops.GetSummaryInput{Date: input.Date})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the summary_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.m, ops.HistoryInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGenerate handles the summary_generate tool call.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GenerateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Generate(ctx, h.m, ops.GenerateInput{Force: input.Force})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBackfill handles the summary_backfill tool call.
func (h *Handlers) HandleBackfill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Backfill(ctx, h.m)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var dErr *errors.DaybookError
	switch {
	case stderrors.As(err, &dErr):
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": err.Error(),
			"status":  dErr.Status,
		}
		// Upstream bodies and internal messages can carry paths or keys
		if dErr.Code != errors.ErrInternal && dErr.Code != errors.ErrAPI && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		if dErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		payload = map[string]any{
			"error": map[string]any{
				"code":    "CANCELLED",
				"message": err.Error(),
				"status":  499,
			},
		}
	default:
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
