package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// WorkoutMeta retrieves a workout's header fields without its exercises.
func (db *DB) WorkoutMeta(ctx context.Context, workoutID uuid.UUID) (*models.Workout, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, workout_date, is_completed, is_prepared, COALESCE(workout_type, '')
		 FROM workouts
		 WHERE id = $1`,
		workoutID)

	var w models.Workout
	if err := row.Scan(&w.ID, &w.WorkoutDate, &w.IsCompleted, &w.IsPrepared, &w.WorkoutType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying workout meta: %w", err)
	}
	return &w, nil
}

// WorkoutDetail loads the ordered exercises of a workout, each with its
// ordered sets. Exercise identity is the catalog exercise id, which is also
// what the personal-record rows and the progress history key on.
func (db *DB) WorkoutDetail(ctx context.Context, workoutID uuid.UUID) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT we.id, e.id, e.name, e.muscle_group_id, COALESCE(we.pair_member, '')
		 FROM workout_exercises we
		 JOIN exercises e ON e.id = we.exercise_id
		 WHERE we.workout_id = $1
		 ORDER BY we.order_index ASC`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying workout exercises: %w", err)
	}
	defer rows.Close()

	var exercises []models.Exercise
	var weIDs []uuid.UUID
	index := map[uuid.UUID]int{} // workout_exercise id → position
	for rows.Next() {
		var weID uuid.UUID
		var ex models.Exercise
		if err := rows.Scan(&weID, &ex.ID, &ex.Name, &ex.MuscleGroupID, &ex.PairMember); err != nil {
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		index[weID] = len(exercises)
		weIDs = append(weIDs, weID)
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, nil
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT workout_exercise_id, id, set_number, weight, reps, rpe,
		 COALESCE(set_type, 'regular'), COALESCE(failure, false),
		 equipment_id, superset_exercise_id, superset_weight, superset_reps,
		 dropset_weight, dropset_reps
		 FROM exercise_sets
		 WHERE workout_exercise_id = ANY($1)
		 ORDER BY set_number ASC`,
		weIDs)
	if err != nil {
		return nil, fmt.Errorf("querying exercise sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var weID uuid.UUID
		var s models.Set
		if err := setRows.Scan(&weID, &s.ID, &s.SetNumber, &s.Weight, &s.Reps, &s.RPE,
			&s.SetType, &s.Failure,
			&s.EquipmentID, &s.SupersetExerciseID, &s.SupersetWeight, &s.SupersetReps,
			&s.DropsetWeight, &s.DropsetReps); err != nil {
			return nil, fmt.Errorf("scanning exercise set: %w", err)
		}
		if i, ok := index[weID]; ok {
			exercises[i].Sets = append(exercises[i].Sets, s)
		}
	}
	return exercises, setRows.Err()
}

// FindPreparedWorkoutToday returns the trainee's newest prepared workout
// dated today, if any. Prepared plans take precedence over whatever the
// calendar event happens to link.
func (db *DB) FindPreparedWorkoutToday(ctx context.Context, trainerID, traineeID uuid.UUID, now time.Time) (uuid.UUID, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	row := db.Pool.QueryRow(ctx,
		`SELECT w.id
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 WHERE w.trainer_id = $1 AND wt.trainee_id = $2 AND w.is_prepared = true
		 AND w.workout_date >= $3 AND w.workout_date < $4
		 ORDER BY w.workout_date DESC
		 LIMIT 1`,
		trainerID, traineeID, dayStart, dayEnd)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("querying prepared workout: %w", err)
	}
	return id, nil
}

// FindActiveWorkout returns the trainee's newest workout that is either not
// yet completed or is a prepared plan. This is the calendar-linkage fallback:
// linkage is best-effort and must never block showing a running session.
func (db *DB) FindActiveWorkout(ctx context.Context, trainerID, traineeID uuid.UUID) (uuid.UUID, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT w.id
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 WHERE w.trainer_id = $1 AND wt.trainee_id = $2
		 AND (w.is_completed = false OR w.is_prepared = true)
		 ORDER BY w.workout_date DESC
		 LIMIT 1`,
		trainerID, traineeID)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("querying active workout: %w", err)
	}
	return id, nil
}

// FindTodayWorkout returns the trainee's newest workout dated today that is
// incomplete or prepared, covering the window right after a workout is saved.
func (db *DB) FindTodayWorkout(ctx context.Context, trainerID, traineeID uuid.UUID, now time.Time) (uuid.UUID, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	row := db.Pool.QueryRow(ctx,
		`SELECT w.id
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 WHERE w.trainer_id = $1 AND wt.trainee_id = $2
		 AND w.workout_date >= $3 AND w.workout_date < $4
		 AND (w.is_completed = false OR w.is_prepared = true)
		 ORDER BY w.workout_date DESC
		 LIMIT 1`,
		trainerID, traineeID, dayStart, dayEnd)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("querying today's workout: %w", err)
	}
	return id, nil
}

// NewestActiveWorkout returns the newest active (incomplete or prepared)
// workout across all of the trainer's trainees, with the trainee it belongs
// to. Used when the calendar cache has no candidates at all.
func (db *DB) NewestActiveWorkout(ctx context.Context, trainerID uuid.UUID) (uuid.UUID, *models.Trainee, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT w.id, t.id, t.full_name, t.is_pair, t.pair_name_1, t.pair_name_2
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 JOIN trainees t ON t.id = wt.trainee_id
		 WHERE w.trainer_id = $1 AND (w.is_completed = false OR w.is_prepared = true)
		 ORDER BY w.workout_date DESC
		 LIMIT 1`,
		trainerID)

	var id uuid.UUID
	var t models.Trainee
	if err := row.Scan(&id, &t.ID, &t.FullName, &t.IsPair, &t.PairName1, &t.PairName2); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil, ErrNotFound
		}
		return uuid.Nil, nil, fmt.Errorf("querying newest active workout: %w", err)
	}
	return id, &t, nil
}

// CompletedSetRow is one set of a completed workout, flattened for the
// progress history index.
type CompletedSetRow struct {
	WorkoutID   uuid.UUID
	WorkoutDate time.Time
	ExerciseID  uuid.UUID
	Weight      *float64
	Reps        *int
}

// CompletedWorkoutSets returns every set of the trainee's N most recent
// completed workouts, newest workout first.
func (db *DB) CompletedWorkoutSets(ctx context.Context, traineeID uuid.UUID, limit int) ([]CompletedSetRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT w.id, w.workout_date, we.exercise_id, es.weight, es.reps
		 FROM (
			SELECT w.id, w.workout_date
			FROM workouts w
			JOIN workout_trainees wt ON wt.workout_id = w.id
			WHERE wt.trainee_id = $1 AND w.is_completed = true
			ORDER BY w.workout_date DESC
			LIMIT $2
		 ) w
		 JOIN workout_exercises we ON we.workout_id = w.id
		 JOIN exercise_sets es ON es.workout_exercise_id = we.id
		 ORDER BY w.workout_date DESC, we.order_index ASC, es.set_number ASC`,
		traineeID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying completed workout sets: %w", err)
	}
	defer rows.Close()

	var result []CompletedSetRow
	for rows.Next() {
		var r CompletedSetRow
		if err := rows.Scan(&r.WorkoutID, &r.WorkoutDate, &r.ExerciseID, &r.Weight, &r.Reps); err != nil {
			return nil, fmt.Errorf("scanning completed workout set: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
