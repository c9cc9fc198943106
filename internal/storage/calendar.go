package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/google/uuid"
)

// CalendarCandidates returns the trainer's synced calendar events that have
// already started at `now`, newest first, bounded to the candidate window.
// This is the fast cache the session locator selects from.
func (db *DB) CalendarCandidates(ctx context.Context, trainerID uuid.UUID, now time.Time, limit int) ([]models.CalendarCandidate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT gcs.id, gcs.trainee_id, gcs.workout_id, gcs.event_summary,
		 gcs.event_start_time, gcs.event_end_time,
		 t.id, t.full_name, t.is_pair, t.pair_name_1, t.pair_name_2
		 FROM google_calendar_sync gcs
		 JOIN trainees t ON t.id = gcs.trainee_id
		 WHERE gcs.trainer_id = $1 AND gcs.sync_status = 'synced' AND gcs.event_start_time <= $2
		 ORDER BY gcs.event_start_time DESC
		 LIMIT $3`,
		trainerID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("querying calendar candidates: %w", err)
	}
	defer rows.Close()

	var result []models.CalendarCandidate
	for rows.Next() {
		var c models.CalendarCandidate
		if err := rows.Scan(&c.ID, &c.TraineeID, &c.WorkoutID, &c.Summary,
			&c.StartTime, &c.EndTime,
			&c.Trainee.ID, &c.Trainee.FullName, &c.Trainee.IsPair,
			&c.Trainee.PairName1, &c.Trainee.PairName2); err != nil {
			return nil, fmt.Errorf("scanning calendar candidate: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
