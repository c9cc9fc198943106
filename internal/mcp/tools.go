package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetLiveSession = mcp.NewTool("get_live_session",
	mcp.WithDescription("Get the session currently shown on the studio display: trainee, workout with exercises and sets, calendar event, completion metrics, and the active screen mode."),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("Get personal records detected during the live session (max weight, max reps, max volume per exercise), newest last, plus the record currently celebrated on screen if any."),
)

var toolGetTraineeProgress = mcp.NewTool("get_trainee_progress",
	mcp.WithDescription("Get the live trainee's progress baseline: best set of the previous completed workout per exercise, training streak, and workout counts."),
)

var toolGetStatusLog = mcp.NewTool("get_status_log",
	mcp.WithDescription("Get recent reconciliation diagnostics (info/warning/error), newest first. Useful for diagnosing why the display shows no session."),
)

// --- Tool handlers ---

func (h *handlers) getLiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.ds.LiveState(ctx)
	if err != nil {
		h.log.Error("mcp get_live_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(state)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.ds.PersonalRecords(ctx)
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(state)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTraineeProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, err := h.ds.TraineeProgress(ctx)
	if err != nil {
		h.log.Error("mcp get_trainee_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if idx == nil {
		return mcp.NewToolResultText("no live session: progress baseline is empty"), nil
	}

	result, err := mcp.NewToolResultJSON(idx)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStatusLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.ds.StatusLog(ctx)
	if err != nil {
		h.log.Error("mcp get_status_log", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(entries)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
