// Package progress builds the per-trainee history index the TV display
// compares live numbers against: for each exercise, the best set of the
// previous completed workout, never of the workout currently live.
package progress

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/storage"
	"github.com/google/uuid"
)

// historyWindow bounds how many completed workouts feed the index.
const historyWindow = 10

// Store is the read boundary the index builds from. *storage.DB implements it.
type Store interface {
	CompletedWorkoutSets(ctx context.Context, traineeID uuid.UUID, limit int) ([]storage.CompletedSetRow, error)
	TraineeStats(ctx context.Context, traineeID uuid.UUID, now time.Time) (*storage.TraineeStats, error)
}

// Index is an immutable snapshot of one trainee's progress baseline, built
// once per trainee context change and held for the life of that session.
type Index struct {
	TraineeID         uuid.UUID                                `json:"trainee_id"`
	PreviousWorkout   map[uuid.UUID]models.ProgressHistoryEntry `json:"previous_workout_data"`
	StreakDays        int                                      `json:"streak_days"`
	WorkoutsThisMonth int64                                    `json:"workouts_this_month"`
	TotalWorkouts     int64                                    `json:"total_workouts"`
	StartDate         *time.Time                               `json:"start_date"`
}

// Previous returns the baseline entry for an exercise, if one exists.
func (i *Index) Previous(exerciseID uuid.UUID) (models.ProgressHistoryEntry, bool) {
	if i == nil {
		return models.ProgressHistoryEntry{}, false
	}
	e, ok := i.PreviousWorkout[exerciseID]
	return e, ok
}

// Builder constructs indexes and caches the current one.
type Builder struct {
	store Store
	log   *slog.Logger
	clock func() time.Time
}

func NewBuilder(store Store, log *slog.Logger) *Builder {
	return &Builder{store: store, log: log, clock: time.Now}
}

// Build loads the trainee's recent completed workouts and derives the
// previous-workout baseline per exercise. Query errors are swallowed into
// the log and yield an empty index; the next trainee change retries.
func (b *Builder) Build(ctx context.Context, traineeID uuid.UUID) *Index {
	idx := &Index{
		TraineeID:       traineeID,
		PreviousWorkout: map[uuid.UUID]models.ProgressHistoryEntry{},
	}

	rows, err := b.store.CompletedWorkoutSets(ctx, traineeID, historyWindow)
	if err != nil {
		b.log.Error("loading completed workouts for progress index failed",
			"trainee_id", traineeID, "error", err)
		return idx
	}
	idx.PreviousWorkout = previousPerExercise(rows)

	stats, err := b.store.TraineeStats(ctx, traineeID, b.clock())
	if err != nil {
		b.log.Error("loading trainee stats failed", "trainee_id", traineeID, "error", err)
		return idx
	}
	idx.StreakDays = stats.StreakDays
	idx.WorkoutsThisMonth = stats.WorkoutsThisMonth
	idx.TotalWorkouts = stats.TotalWorkouts
	idx.StartDate = stats.StartDate

	return idx
}

// previousPerExercise reduces the flat set rows to one baseline entry per
// exercise: the best set (max volume, ties keep the first occurrence) of
// each workout, sorted newest first, taking the second entry. A single
// workout serves as its own baseline, so a first-ever exercise shows prior
// numbers but can never show improvement against itself.
func previousPerExercise(rows []storage.CompletedSetRow) map[uuid.UUID]models.ProgressHistoryEntry {
	type workoutBest struct {
		entry models.ProgressHistoryEntry
	}

	// exercise → workout → best set of that workout
	best := map[uuid.UUID]map[uuid.UUID]*workoutBest{}
	order := map[uuid.UUID][]uuid.UUID{} // per exercise, workout ids in row order

	for _, r := range rows {
		weight := 0.0
		if r.Weight != nil {
			weight = *r.Weight
		}
		reps := 0
		if r.Reps != nil {
			reps = *r.Reps
		}
		if weight == 0 || reps == 0 {
			continue
		}

		perWorkout, ok := best[r.ExerciseID]
		if !ok {
			perWorkout = map[uuid.UUID]*workoutBest{}
			best[r.ExerciseID] = perWorkout
		}

		entry := models.ProgressHistoryEntry{Weight: weight, Reps: reps, Date: r.WorkoutDate}
		if cur, ok := perWorkout[r.WorkoutID]; ok {
			if entry.Volume() > cur.entry.Volume() {
				cur.entry = entry
			}
		} else {
			perWorkout[r.WorkoutID] = &workoutBest{entry: entry}
			order[r.ExerciseID] = append(order[r.ExerciseID], r.WorkoutID)
		}
	}

	result := map[uuid.UUID]models.ProgressHistoryEntry{}
	for exerciseID, perWorkout := range best {
		entries := make([]models.ProgressHistoryEntry, 0, len(perWorkout))
		for _, wid := range order[exerciseID] {
			entries = append(entries, perWorkout[wid].entry)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Date.After(entries[j].Date)
		})

		switch {
		case len(entries) >= 2:
			result[exerciseID] = entries[1]
		case len(entries) == 1:
			result[exerciseID] = entries[0]
		}
	}
	return result
}
