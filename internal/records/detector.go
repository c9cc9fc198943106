// Package records watches the live session's sets and emits a
// PersonalRecordEvent the first time a stored record is exceeded, exactly
// once per distinct (exercise, weight, reps) observation.
package records

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/google/uuid"
)

const (
	checkInterval = 3 * time.Second
	latestTTL     = 5 * time.Second
	recordsCap    = 10
)

// Store provides the trainee's stored record rows.
type Store interface {
	PersonalRecords(ctx context.Context, traineeID uuid.UUID) ([]models.PersonalRecordRow, error)
}

// SessionSource yields the current live session and signals its changes.
// *session.Locator implements it.
type SessionSource interface {
	Session() *models.Session
	Updates() <-chan struct{}
}

// State is what the render surface sees from the detector.
type State struct {
	Records []models.PersonalRecordEvent `json:"records"`
	Latest  *models.PersonalRecordEvent  `json:"latest_record"`
}

// Detector holds the per-session dedup state. Re-observing an already
// processed (exercise, weight, reps) triple never re-fires, even if the
// stored records changed underneath in the meantime.
type Detector struct {
	store  Store
	source SessionSource
	log    *slog.Logger
	clock  func() time.Time

	mu        sync.Mutex
	processed map[string]bool
	events    []models.PersonalRecordEvent
	latest    *models.PersonalRecordEvent
	latestTmr *time.Timer

	traineeID uuid.UUID
	workoutID uuid.UUID
}

func NewDetector(store Store, source SessionSource, log *slog.Logger) *Detector {
	return &Detector{
		store:     store,
		source:    source,
		log:       log,
		clock:     time.Now,
		processed: map[string]bool{},
	}
}

// State returns the rolling event list (most recent last) and the transient
// latest pointer, which self-clears a few seconds after each detection.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := State{Records: make([]models.PersonalRecordEvent, len(d.events))}
	copy(st.Records, d.events)
	if d.latest != nil {
		e := *d.latest
		st.Latest = &e
	}
	return st
}

// Run re-checks on every session change and additionally on a short fixed
// interval, since in-progress edits do not always produce a discrete change
// notification.
func (d *Detector) Run(ctx context.Context) {
	updates := d.source.Updates()
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	defer d.stopLatestTimer()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Check(ctx)
		case <-updates:
			d.Check(ctx)
		}
	}
}

// Check runs one detection cycle. Query errors are swallowed into the log
// and the cycle is skipped; dedup keys are only marked off successfully
// observed values, so a failed cycle retries naturally on the next one.
func (d *Detector) Check(ctx context.Context) {
	s := d.source.Session()
	if s == nil || s.Trainee == nil || s.Workout == nil {
		d.reset(uuid.Nil, uuid.Nil)
		return
	}
	d.reset(s.Trainee.ID, s.Workout.ID)

	rows, err := d.store.PersonalRecords(ctx, s.Trainee.ID)
	if err != nil {
		d.log.Error("loading personal records failed", "trainee_id", s.Trainee.ID, "error", err)
		return
	}

	stored := map[uuid.UUID]map[models.RecordKind]models.PersonalRecordRow{}
	for _, r := range rows {
		if stored[r.ExerciseID] == nil {
			stored[r.ExerciseID] = map[models.RecordKind]models.PersonalRecordRow{}
		}
		stored[r.ExerciseID][r.Kind] = r
	}

	now := d.clock()
	var fresh []models.PersonalRecordEvent

	d.mu.Lock()
	for _, ex := range s.Workout.Exercises {
		best, ok := ex.BestSet()
		if !ok {
			continue
		}
		weight := best.WeightValue()
		reps := best.RepsValue()
		// A set missing either dimension is never a record candidate.
		if weight == 0 || reps == 0 {
			continue
		}

		key := dedupKey(ex.ID, weight, reps)
		if d.processed[key] {
			continue
		}

		exRecords := stored[ex.ID]
		fresh = append(fresh, compare(ex, exRecords, weight, reps, now)...)
		d.processed[key] = true
	}

	if len(fresh) > 0 {
		d.events = append(d.events, fresh...)
		if len(d.events) > recordsCap {
			d.events = d.events[len(d.events)-recordsCap:]
		}
		latest := fresh[len(fresh)-1]
		d.latest = &latest
		d.armLatestTimerLocked()

		for _, e := range fresh {
			d.log.Info("personal record detected",
				"exercise", e.ExerciseName, "kind", string(e.Kind),
				"old", e.OldValue, "new", e.NewValue)
		}
	}
	d.mu.Unlock()
}

// compare evaluates the best set against the three stored record kinds
// independently; each exceeded dimension produces its own event. A missing
// stored row counts as 0, so the first real set establishes the record.
func compare(ex models.Exercise, stored map[models.RecordKind]models.PersonalRecordRow, weight float64, reps int, now time.Time) []models.PersonalRecordEvent {
	volume := weight * float64(reps)
	candidates := []struct {
		kind models.RecordKind
		val  float64
	}{
		{models.RecordMaxWeight, weight},
		{models.RecordMaxReps, float64(reps)},
		{models.RecordMaxVolume, volume},
	}

	var events []models.PersonalRecordEvent
	for _, c := range candidates {
		old := 0.0
		if row, ok := stored[c.kind]; ok {
			old = row.Value()
		}
		if c.val > old {
			events = append(events, models.PersonalRecordEvent{
				ExerciseID:   ex.ID,
				ExerciseName: ex.Name,
				Kind:         c.kind,
				OldValue:     old,
				NewValue:     c.val,
				Timestamp:    now,
			})
		}
	}
	return events
}

// reset clears all dedup and event state when the session identity changes.
// The processed-key set lives exactly as long as one session.
func (d *Detector) reset(traineeID, workoutID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.traineeID == traineeID && d.workoutID == workoutID {
		return
	}
	d.traineeID = traineeID
	d.workoutID = workoutID
	d.processed = map[string]bool{}
	d.events = nil
	d.latest = nil
	if d.latestTmr != nil {
		d.latestTmr.Stop()
		d.latestTmr = nil
	}
}

// armLatestTimerLocked schedules the latest pointer to self-clear. Each new
// detection re-arms the timer; the clear is independent of later cycles.
func (d *Detector) armLatestTimerLocked() {
	if d.latestTmr != nil {
		d.latestTmr.Stop()
	}
	d.latestTmr = time.AfterFunc(latestTTL, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.latest = nil
	})
}

func (d *Detector) stopLatestTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latestTmr != nil {
		d.latestTmr.Stop()
		d.latestTmr = nil
	}
}

func dedupKey(exerciseID uuid.UUID, weight float64, reps int) string {
	return fmt.Sprintf("%s-%g-%d", exerciseID, weight, reps)
}
