// Package session resolves and keeps current the single live studio session:
// which trainee is in the room, which workout the trainer is logging, and
// the calendar event that justified the pick. Two update paths converge on
// one snapshot: a bounded poll that may replace the whole session, and a
// push-triggered partial reload that may replace only the workout's
// exercises. Identity fields are only ever written by a full resolve.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/notify"
	"github.com/claude/studiotv/internal/storage"
	"github.com/google/uuid"
)

// MinPollInterval is the enforced floor on the calendar poll. The configured
// interval is a suggestion; this is the safety ceiling on read load.
const MinPollInterval = 30 * time.Second

// Store is the read-side boundary the locator resolves against.
// *storage.DB implements it.
type Store interface {
	CalendarCandidates(ctx context.Context, trainerID uuid.UUID, now time.Time, limit int) ([]models.CalendarCandidate, error)
	WorkoutMeta(ctx context.Context, workoutID uuid.UUID) (*models.Workout, error)
	WorkoutDetail(ctx context.Context, workoutID uuid.UUID) ([]models.Exercise, error)
	FindPreparedWorkoutToday(ctx context.Context, trainerID, traineeID uuid.UUID, now time.Time) (uuid.UUID, error)
	FindActiveWorkout(ctx context.Context, trainerID, traineeID uuid.UUID) (uuid.UUID, error)
	FindTodayWorkout(ctx context.Context, trainerID, traineeID uuid.UUID, now time.Time) (uuid.UUID, error)
	NewestActiveWorkout(ctx context.Context, trainerID uuid.UUID) (uuid.UUID, *models.Trainee, error)
}

// State is what the render surface sees from the locator.
type State struct {
	Loading       bool                    `json:"loading"`
	Error         string                  `json:"error,omitempty"`
	Session       *models.Session         `json:"session"`
	StatusLog     []models.StatusLogEntry `json:"status_log"`
	LastUpdatedAt *time.Time              `json:"last_updated_at"`
}

// Locator owns the live session snapshot. It is the only writer of the
// snapshot's identity fields; the partial reload path can only replace
// workout exercises.
type Locator struct {
	store    Store
	notifier notify.Notifier
	log      *slog.Logger
	status   *StatusLog

	trainerID       uuid.UUID
	pollInterval    time.Duration
	candidateWindow int
	clock           func() time.Time

	mu          sync.Mutex
	session     *models.Session
	loading     bool
	errMsg      string
	lastUpdated time.Time
	resolved    bool // at least one pass completed

	subMu        sync.Mutex
	subCtx       context.Context
	sub          notify.Subscription
	subWorkoutID uuid.UUID

	updateMu sync.Mutex
	updates  []chan struct{}
}

// NewLocator creates a locator scoped to one trainer. pollInterval below
// MinPollInterval is clamped up to it.
func NewLocator(store Store, notifier notify.Notifier, trainerID uuid.UUID, pollInterval time.Duration, candidateWindow int, log *slog.Logger) *Locator {
	if pollInterval < MinPollInterval {
		pollInterval = MinPollInterval
	}
	if candidateWindow <= 0 {
		candidateWindow = 10
	}
	return &Locator{
		store:           store,
		notifier:        notifier,
		log:             log,
		status:          NewStatusLog(),
		trainerID:       trainerID,
		pollInterval:    pollInterval,
		candidateWindow: candidateWindow,
		clock:           time.Now,
		loading:         true,
	}
}

// Updates registers and returns a channel signalled after every snapshot
// change. Each consumer gets its own channel; signals are coalesced, since
// consumers re-read the whole state anyway.
func (l *Locator) Updates() <-chan struct{} {
	l.updateMu.Lock()
	defer l.updateMu.Unlock()
	ch := make(chan struct{}, 1)
	l.updates = append(l.updates, ch)
	return ch
}

// Session returns the current snapshot, nil when nothing is live. Snapshots
// are replaced, never mutated, so the returned pointer is safe to read.
func (l *Locator) Session() *models.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// State returns the full render-surface view.
func (l *Locator) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := State{
		Loading:   l.loading,
		Error:     l.errMsg,
		Session:   l.session,
		StatusLog: l.status.Entries(),
	}
	if !l.lastUpdated.IsZero() {
		t := l.lastUpdated
		st.LastUpdatedAt = &t
	}
	return st
}

// StatusLog exposes the diagnostics log sink for sibling components.
func (l *Locator) StatusLog() *StatusLog {
	return l.status
}

// Run polls until ctx is cancelled, reloading workout detail out of band
// whenever a change notification arrives. This is a long-lived background
// process for the life of the display; it has no terminal state.
func (l *Locator) Run(ctx context.Context) {
	l.subMu.Lock()
	l.subCtx = ctx
	l.subMu.Unlock()
	defer l.teardownSubscription()

	l.Resolve(ctx, l.clock())

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Resolve(ctx, l.clock())
		case _, ok := <-l.subEvents():
			if !ok {
				// Subscription torn down; next iteration picks up the
				// replacement (or blocks on a nil channel).
				continue
			}
			l.ReloadExercises(ctx)
		}
	}
}

// Resolve runs one full reconciliation pass: pick the calendar candidate,
// attach a workout, load its detail and atomically replace the snapshot.
// All failure is captured into the status log; a transient failure retains
// the previous session unchanged.
func (l *Locator) Resolve(ctx context.Context, now time.Time) {
	defer l.syncSubscription()

	candidates, err := l.store.CalendarCandidates(ctx, l.trainerID, now, l.candidateWindow)
	if err != nil {
		l.log.Error("calendar candidate query failed", "error", err)
		l.status.Error("failed to load calendar events", map[string]any{"error": err.Error()})
		l.failPass("failed to load calendar events")
		return
	}

	if len(candidates) == 0 {
		l.resolveWithoutCalendar(ctx, now)
		return
	}

	// First candidate still running wins; otherwise fall back to the newest.
	active := candidates[0]
	for _, c := range candidates {
		if c.EndsAfter(now) {
			active = c
			break
		}
	}

	trainee := active.Trainee
	workoutID := uuid.Nil
	if active.WorkoutID != nil {
		workoutID = *active.WorkoutID
	}

	// A plan the trainer authored today beats whatever the calendar links.
	if id, err := l.store.FindPreparedWorkoutToday(ctx, l.trainerID, trainee.ID, now); err == nil {
		workoutID = id
		l.status.Info("prepared workout found for "+trainee.FullName+", preferring it over the calendar link",
			map[string]any{"workout_id": id.String()})
	} else if !errors.Is(err, storage.ErrNotFound) {
		l.log.Warn("prepared workout lookup failed", "error", err)
	}

	if workoutID == uuid.Nil {
		workoutID = l.findFallbackWorkout(ctx, trainee, now)
	}

	var workout *models.Workout
	if workoutID != uuid.Nil {
		workout = l.loadWorkout(ctx, workoutID, active.StartTime)
	}

	if workout == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.session != nil {
			l.status.Info("no workout to attach, keeping the current session", nil)
		} else {
			l.status.Info("calendar event resolved but no workout could be attached", nil)
			l.session = nil
		}
		l.finishPassLocked(now)
		return
	}

	l.replace(&models.Session{
		Trainee:       &trainee,
		Workout:       workout,
		CalendarEvent: active.Event(),
	}, now)

	l.status.Info("resolved active session for "+trainee.FullName, map[string]any{
		"trainee_id":       trainee.ID.String(),
		"workout_id":       workout.ID.String(),
		"event_start_time": active.StartTime,
	})
}

// resolveWithoutCalendar handles an empty candidate window: try the newest
// active workout across all trainees, else clear the session. Nothing live
// right now is a normal state, not an error.
func (l *Locator) resolveWithoutCalendar(ctx context.Context, now time.Time) {
	id, trainee, err := l.store.NewestActiveWorkout(ctx, l.trainerID)
	switch {
	case err == nil:
		if workout := l.loadWorkout(ctx, id, now); workout != nil {
			l.replace(&models.Session{Trainee: trainee, Workout: workout}, now)
			l.status.Info("active workout found for "+trainee.FullName+" with no calendar event",
				map[string]any{"workout_id": id.String()})
			return
		}
	case !errors.Is(err, storage.ErrNotFound):
		l.log.Error("active workout fallback failed", "error", err)
		l.status.Error("failed to search for an active workout", map[string]any{"error": err.Error()})
		l.failPass("failed to search for an active workout")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session != nil {
		l.session = nil
		l.signalLocked()
	}
	l.status.Info("no synced calendar events currently active", nil)
	l.errMsg = ""
	l.finishPassLocked(now)
}

// findFallbackWorkout searches for a workout when the calendar event links
// none: newest active for the trainee, then newest of today. Multiple
// incomplete workouts resolve to the newest by date.
func (l *Locator) findFallbackWorkout(ctx context.Context, trainee models.Trainee, now time.Time) uuid.UUID {
	id, err := l.store.FindActiveWorkout(ctx, l.trainerID, trainee.ID)
	if err == nil {
		l.status.Info("active workout found for "+trainee.FullName+" not linked to the calendar",
			map[string]any{"workout_id": id.String()})
		return id
	}
	if !errors.Is(err, storage.ErrNotFound) {
		l.log.Warn("active workout lookup failed", "error", err)
	}

	id, err = l.store.FindTodayWorkout(ctx, l.trainerID, trainee.ID, now)
	if err == nil {
		l.status.Info("found today's workout for "+trainee.FullName,
			map[string]any{"workout_id": id.String()})
		return id
	}
	if !errors.Is(err, storage.ErrNotFound) {
		l.status.Warning("failed to search today's workouts", map[string]any{"error": err.Error()})
	}
	return uuid.Nil
}

// loadWorkout loads meta and detail for a workout id. A load failure
// degrades to "event resolved, workout detail missing" rather than
// discarding the whole session: if the current session already carries this
// workout it is kept as-is.
func (l *Locator) loadWorkout(ctx context.Context, id uuid.UUID, fallbackDate time.Time) *models.Workout {
	current := l.Session()

	meta, metaErr := l.store.WorkoutMeta(ctx, id)
	if metaErr != nil {
		l.log.Warn("workout meta load failed", "workout_id", id, "error", metaErr)
	}

	exercises, detailErr := l.store.WorkoutDetail(ctx, id)
	if detailErr != nil {
		l.log.Error("workout detail load failed", "workout_id", id, "error", detailErr)
		l.status.Warning("event resolved, workout detail missing",
			map[string]any{"workout_id": id.String(), "error": detailErr.Error()})
		if current.WorkoutID() == id {
			return current.Workout
		}
		if meta == nil {
			return nil
		}
	}

	w := &models.Workout{ID: id, WorkoutDate: fallbackDate}
	if meta != nil {
		w = meta
	}
	w.Exercises = exercises

	if len(exercises) == 0 && detailErr == nil {
		// Workout exists but has no exercises yet. Keep previously seen
		// exercises for the same workout; the realtime path clears them
		// when a deletion actually happens.
		if current.WorkoutID() == id && current.Workout != nil && len(current.Workout.Exercises) > 0 {
			w.Exercises = current.Workout.Exercises
		} else {
			l.status.Info("workout found but has no exercises yet",
				map[string]any{"workout_id": id.String()})
		}
	}
	return w
}

// ReloadExercises refreshes only the workout's exercise detail in response
// to a change notification. Trainee and calendar identity are structurally
// untouched, so a late-landing reload can never corrupt them.
func (l *Locator) ReloadExercises(ctx context.Context) {
	id := l.Session().WorkoutID()
	if id == uuid.Nil {
		return
	}

	l.status.Info("change notification received, reloading workout detail",
		map[string]any{"workout_id": id.String()})

	exercises, err := l.store.WorkoutDetail(ctx, id)
	if err != nil {
		l.log.Error("realtime workout detail reload failed", "workout_id", id, "error", err)
		l.status.Error("failed to reload workout detail", map[string]any{
			"workout_id": id.String(), "error": err.Error(),
		})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil || l.session.Workout == nil || l.session.Workout.ID != id {
		// The session moved on while the reload was in flight.
		return
	}

	workout := *l.session.Workout
	workout.Exercises = exercises
	next := *l.session
	next.Workout = &workout
	l.session = &next
	l.lastUpdated = l.clock()
	l.signalLocked()

	l.status.Info("workout detail refreshed", map[string]any{
		"workout_id": id.String(), "exercise_count": len(exercises),
	})
}

func (l *Locator) replace(s *models.Session, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = s
	l.errMsg = ""
	l.finishPassLocked(now)
	l.signalLocked()
}

func (l *Locator) finishPassLocked(now time.Time) {
	l.loading = false
	l.resolved = true
	l.lastUpdated = now
}

// failPass records a failed pass: the previous session is retained
// unchanged, and an error surfaces only when no session was ever
// established.
func (l *Locator) failPass(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		l.errMsg = msg
	}
	l.loading = false
}

func (l *Locator) signalLocked() {
	l.updateMu.Lock()
	defer l.updateMu.Unlock()
	for _, ch := range l.updates {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// syncSubscription reconciles the change-notification subscription with the
// current workout id: any id change unconditionally tears the old one down
// before opening the next, and the two are never open simultaneously.
func (l *Locator) syncSubscription() {
	id := l.Session().WorkoutID()

	l.subMu.Lock()
	defer l.subMu.Unlock()
	if id == l.subWorkoutID {
		return
	}
	if l.sub != nil {
		l.sub.Close()
		l.sub = nil
	}
	l.subWorkoutID = id
	if id == uuid.Nil || l.notifier == nil {
		return
	}

	ctx := l.subCtx
	if ctx == nil {
		ctx = context.Background()
	}
	l.sub = l.notifier.Subscribe(ctx, id)
	l.status.Info("subscribed to live updates", map[string]any{"workout_id": id.String()})
}

func (l *Locator) teardownSubscription() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if l.sub != nil {
		l.sub.Close()
		l.sub = nil
	}
	l.subWorkoutID = uuid.Nil
}

func (l *Locator) subEvents() <-chan struct{} {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if l.sub == nil {
		return nil
	}
	return l.sub.Events()
}
