// Package display is the presentation state machine for the unattended
// studio screen: exactly one full-screen mode at a time, a PR overlay
// layered on top, and per-workout replay flags so transient screens never
// recur for the same workout.
package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/progress"
	"github.com/claude/studiotv/internal/records"
	"github.com/google/uuid"
)

// Mode is the single active full-screen mode.
type Mode string

const (
	ModeWelcome               Mode = "welcome"
	ModeLiveTracking          Mode = "live_tracking"
	ModeCompletionCelebration Mode = "completion_celebration"
)

const (
	welcomeTimeout    = 5 * time.Second
	completionTimeout = 8 * time.Second
	evalInterval      = time.Second
)

// View is what the render surface draws: the active mode, the derived
// completion metrics, and the transient PR overlay (which renders on top of
// whatever mode is active and dismisses on its own timer).
type View struct {
	Mode          Mode                        `json:"mode"`
	Metrics       Metrics                     `json:"metrics"`
	PRCelebration *models.PersonalRecordEvent `json:"pr_celebration,omitempty"`
}

// SessionSource yields the live session. *session.Locator implements it.
type SessionSource interface {
	Session() *models.Session
	Updates() <-chan struct{}
}

// RecordSource yields the PR detector state. *records.Detector implements it.
type RecordSource interface {
	State() records.State
}

// HistorySource yields the current progress baseline. *progress.Tracker
// implements it.
type HistorySource interface {
	Current() *progress.Index
}

// Controller owns the mode selection. State is keyed per workout id: once a
// welcome or completion screen has been exited for a workout, it is flagged
// shown and never replays for that id, regardless of how the underlying
// data flips afterwards.
type Controller struct {
	session SessionSource
	records RecordSource
	history HistorySource
	flags   *FlagStore
	log     *slog.Logger
	clock   func() time.Time

	mu          sync.Mutex
	mode        Mode
	modeWorkout uuid.UUID
	modeEntered time.Time
	shown       map[string]bool
}

// NewController creates the state machine. flags may be nil, in which case
// the replay flags live in memory only for the life of the process.
func NewController(session SessionSource, records RecordSource, history HistorySource, flags *FlagStore, log *slog.Logger) *Controller {
	return &Controller{
		session: session,
		records: records,
		history: history,
		flags:   flags,
		log:     log,
		clock:   time.Now,
		mode:    ModeLiveTracking,
		shown:   map[string]bool{},
	}
}

// View evaluates the state machine at the current time and returns the
// render view.
func (c *Controller) View() View {
	return c.Evaluate(c.clock())
}

// Run keeps the timers progressing even when nobody is reading the view.
func (c *Controller) Run(ctx context.Context) {
	updates := c.session.Updates()
	ticker := time.NewTicker(evalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Evaluate(c.clock())
		case <-updates:
			c.Evaluate(c.clock())
		}
	}
}

// Evaluate runs one state-machine step at time now. It is the only writer
// of the mode state; renderers are read-only consumers of the returned view.
func (c *Controller) Evaluate(now time.Time) View {
	s := c.session.Session()
	var hist *progress.Index
	if c.history != nil {
		hist = c.history.Current()
	}
	var latest *models.PersonalRecordEvent
	if c.records != nil {
		latest = c.records.State().Latest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s == nil || s.Workout == nil {
		c.mode = ModeLiveTracking
		c.modeWorkout = uuid.Nil
		return View{Mode: ModeLiveTracking, PRCelebration: latest}
	}

	w := s.Workout
	m := ComputeMetrics(w, hist)

	if c.modeWorkout != w.ID {
		c.mode = ModeLiveTracking
		c.modeWorkout = w.ID
	}

	anyData := m.CompletedSets > 0
	complete := m.TotalSets > 0 && m.CompletedSets == m.TotalSets

	// Exits from transient modes; exiting flags the screen shown for this
	// workout id.
	switch c.mode {
	case ModeWelcome:
		if anyData || now.Sub(c.modeEntered) >= welcomeTimeout {
			c.markShownLocked(w.ID, ScreenWelcome)
			c.mode = ModeLiveTracking
		}
	case ModeCompletionCelebration:
		if !complete || now.Sub(c.modeEntered) >= completionTimeout {
			c.markShownLocked(w.ID, ScreenCompletion)
			c.mode = ModeLiveTracking
		}
	}

	// Entries from the steady state.
	if c.mode == ModeLiveTracking {
		switch {
		case !w.IsPrepared && len(w.Exercises) > 0 && !anyData && !c.wasShownLocked(w.ID, ScreenWelcome):
			c.mode = ModeWelcome
			c.modeEntered = now
		case complete && !c.wasShownLocked(w.ID, ScreenCompletion):
			c.mode = ModeCompletionCelebration
			c.modeEntered = now
		}
	}

	return View{Mode: c.mode, Metrics: m, PRCelebration: latest}
}

func flagKey(workoutID uuid.UUID, screen Screen) string {
	return workoutID.String() + "|" + string(screen)
}

func (c *Controller) wasShownLocked(workoutID uuid.UUID, screen Screen) bool {
	key := flagKey(workoutID, screen)
	if c.shown[key] {
		return true
	}
	if c.flags == nil {
		return false
	}
	was, err := c.flags.WasShown(workoutID, screen)
	if err != nil {
		c.log.Warn("reading shown flag failed", "workout_id", workoutID, "screen", string(screen), "error", err)
		return false
	}
	if was {
		c.shown[key] = true
	}
	return was
}

func (c *Controller) markShownLocked(workoutID uuid.UUID, screen Screen) {
	c.shown[flagKey(workoutID, screen)] = true
	if c.flags == nil {
		return
	}
	if err := c.flags.MarkShown(workoutID, screen); err != nil {
		c.log.Warn("persisting shown flag failed", "workout_id", workoutID, "screen", string(screen), "error", err)
	}
}
