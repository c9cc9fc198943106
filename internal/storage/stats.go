package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TraineeStats holds the aggregate numbers shown on the TV progress panel.
type TraineeStats struct {
	StreakDays        int        `json:"streak_days"`
	WorkoutsThisMonth int64      `json:"workouts_this_month"`
	TotalWorkouts     int64      `json:"total_workouts"`
	StartDate         *time.Time `json:"start_date"`
}

// TraineeStats returns streak, monthly and total workout counts for one
// trainee.
func (db *DB) TraineeStats(ctx context.Context, traineeID uuid.UUID, now time.Time) (*TraineeStats, error) {
	stats := &TraineeStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 WHERE wt.trainee_id = $1 AND w.is_completed = true`,
		traineeID).Scan(&stats.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 WHERE wt.trainee_id = $1 AND w.is_completed = true AND w.workout_date >= $2`,
		traineeID, monthStart).Scan(&stats.WorkoutsThisMonth)
	if err != nil {
		return nil, fmt.Errorf("counting monthly workouts: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT start_date FROM trainees WHERE id = $1`,
		traineeID).Scan(&stats.StartDate)
	if err != nil {
		return nil, fmt.Errorf("querying trainee start date: %w", err)
	}

	dates, err := db.workoutDates(ctx, traineeID)
	if err != nil {
		return nil, err
	}
	stats.StreakDays = streakDays(dates, now)

	return stats, nil
}

func (db *DB) workoutDates(ctx context.Context, traineeID uuid.UUID) ([]time.Time, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT w.workout_date
		 FROM workouts w
		 JOIN workout_trainees wt ON wt.workout_id = w.id
		 WHERE wt.trainee_id = $1 AND w.is_completed = true
		 ORDER BY w.workout_date DESC
		 LIMIT 90`,
		traineeID)
	if err != nil {
		return nil, fmt.Errorf("querying workout dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning workout date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// streakDays counts consecutive calendar days with at least one completed
// workout, ending today or yesterday. dates must be newest-first.
func streakDays(dates []time.Time, now time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	}

	seen := map[time.Time]bool{}
	for _, d := range dates {
		seen[day(d)] = true
	}

	cursor := day(now)
	if !seen[cursor] {
		// A streak survives until a full day is missed.
		cursor = cursor.AddDate(0, 0, -1)
	}

	streak := 0
	for seen[cursor] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
