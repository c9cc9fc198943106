package mcp

import (
	"context"

	"github.com/claude/studiotv/internal/display"
	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/progress"
	"github.com/claude/studiotv/internal/records"
	"github.com/claude/studiotv/internal/session"
)

// LiveState bundles the reconciled session with the view the display is
// rendering. Matches the /api/v1/tv/state response shape.
type LiveState struct {
	session.State
	View display.View `json:"view"`
}

// DataSource abstracts the engine for MCP tools. Both EngineSource (local,
// in-process) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	LiveState(ctx context.Context) (*LiveState, error)
	PersonalRecords(ctx context.Context) (*records.State, error)
	TraineeProgress(ctx context.Context) (*progress.Index, error)
	StatusLog(ctx context.Context) ([]models.StatusLogEntry, error)
}

// EngineSource implements DataSource against in-process engine components.
type EngineSource struct {
	Locator    *session.Locator
	Detector   *records.Detector
	Tracker    *progress.Tracker
	Controller *display.Controller
}

// Compile-time check: *EngineSource satisfies DataSource.
var _ DataSource = (*EngineSource)(nil)

func (e *EngineSource) LiveState(ctx context.Context) (*LiveState, error) {
	return &LiveState{State: e.Locator.State(), View: e.Controller.View()}, nil
}

func (e *EngineSource) PersonalRecords(ctx context.Context) (*records.State, error) {
	st := e.Detector.State()
	return &st, nil
}

func (e *EngineSource) TraineeProgress(ctx context.Context) (*progress.Index, error) {
	return e.Tracker.Current(), nil
}

func (e *EngineSource) StatusLog(ctx context.Context) ([]models.StatusLogEntry, error) {
	return e.Locator.StatusLog().Entries(), nil
}
