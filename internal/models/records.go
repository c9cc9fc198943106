package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind is the dimension a stored personal record tracks.
type RecordKind string

const (
	RecordMaxWeight RecordKind = "max_weight"
	RecordMaxReps   RecordKind = "max_reps"
	RecordMaxVolume RecordKind = "max_volume"
)

// PersonalRecordRow is a stored record for one trainee × exercise × kind,
// as kept by the CRM. Only the column matching Kind is meaningful.
type PersonalRecordRow struct {
	TraineeID  uuid.UUID
	ExerciseID uuid.UUID
	Kind       RecordKind
	Weight     *float64
	Reps       *int
	Volume     *float64
}

// Value returns the stored record value for the row's kind, with nil as 0.
func (r PersonalRecordRow) Value() float64 {
	switch r.Kind {
	case RecordMaxWeight:
		if r.Weight != nil {
			return *r.Weight
		}
	case RecordMaxReps:
		if r.Reps != nil {
			return float64(*r.Reps)
		}
	case RecordMaxVolume:
		if r.Volume != nil {
			return *r.Volume
		}
	}
	return 0
}

// PersonalRecordEvent is emitted the first time a stored record is exceeded
// by a live set.
type PersonalRecordEvent struct {
	ExerciseID   uuid.UUID  `json:"exercise_id"`
	ExerciseName string     `json:"exercise_name"`
	Kind         RecordKind `json:"kind"`
	OldValue     float64    `json:"old_value"`
	NewValue     float64    `json:"new_value"`
	Timestamp    time.Time  `json:"timestamp"`
}

// ProgressHistoryEntry is the best set of the trainee's previous completed
// workout for one exercise, used purely for on-screen comparison.
type ProgressHistoryEntry struct {
	Weight float64   `json:"weight"`
	Reps   int       `json:"reps"`
	Date   time.Time `json:"date"`
}

// Volume is weight × reps of the historical best set.
func (p ProgressHistoryEntry) Volume() float64 {
	return p.Weight * float64(p.Reps)
}
