package storage

import (
	"context"
	"fmt"

	"github.com/claude/studiotv/internal/models"
	"github.com/google/uuid"
)

// PersonalRecords returns the trainee's stored record rows, one per
// exercise × record kind.
func (db *DB) PersonalRecords(ctx context.Context, traineeID uuid.UUID) ([]models.PersonalRecordRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT trainee_id, exercise_id, record_type, weight, reps, volume
		 FROM personal_records
		 WHERE trainee_id = $1`,
		traineeID)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	defer rows.Close()

	var result []models.PersonalRecordRow
	for rows.Next() {
		var r models.PersonalRecordRow
		if err := rows.Scan(&r.TraineeID, &r.ExerciseID, &r.Kind, &r.Weight, &r.Reps, &r.Volume); err != nil {
			return nil, fmt.Errorf("scanning personal record: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
