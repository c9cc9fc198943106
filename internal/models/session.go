package models

import (
	"time"

	"github.com/google/uuid"
)

// SetType classifies how a set was performed.
type SetType string

const (
	SetTypeRegular  SetType = "regular"
	SetTypeSuperset SetType = "superset"
	SetTypeDropset  SetType = "dropset"
)

// PairMember tags an exercise with the member of a pair session it belongs to.
// Empty for single-trainee sessions.
type PairMember string

const (
	PairMember1 PairMember = "member_1"
	PairMember2 PairMember = "member_2"
)

// WorkoutType distinguishes single-trainee workouts from pair workouts.
type WorkoutType string

const (
	WorkoutTypePersonal WorkoutType = "personal"
	WorkoutTypePair     WorkoutType = "pair"
)

// Set is one logged set of an exercise. Weight and reps are nullable:
// the trainer creates the planned sets first and fills numbers in as the
// session progresses.
type Set struct {
	ID                 uuid.UUID  `json:"id"`
	SetNumber          int        `json:"set_number"`
	Weight             *float64   `json:"weight"`
	Reps               *int       `json:"reps"`
	RPE                *float64   `json:"rpe,omitempty"`
	SetType            SetType    `json:"set_type"`
	Failure            bool       `json:"failure"`
	EquipmentID        *uuid.UUID `json:"equipment_id,omitempty"`
	SupersetExerciseID *uuid.UUID `json:"superset_exercise_id,omitempty"`
	SupersetWeight     *float64   `json:"superset_weight,omitempty"`
	SupersetReps       *int       `json:"superset_reps,omitempty"`
	DropsetWeight      *float64   `json:"dropset_weight,omitempty"`
	DropsetReps        *int       `json:"dropset_reps,omitempty"`
}

// WeightValue returns the logged weight, treating nil as 0.
func (s Set) WeightValue() float64 {
	if s.Weight == nil {
		return 0
	}
	return *s.Weight
}

// RepsValue returns the logged reps, treating nil as 0.
func (s Set) RepsValue() int {
	if s.Reps == nil {
		return 0
	}
	return *s.Reps
}

// Volume is weight × reps.
func (s Set) Volume() float64 {
	return s.WeightValue() * float64(s.RepsValue())
}

// IsEmpty reports whether the set has no logged data at all. Empty sets are
// excluded from volume and completion arithmetic but still count toward the
// set totals shown on screen.
func (s Set) IsEmpty() bool {
	return s.WeightValue() == 0 && s.RepsValue() == 0
}

// HasData is the per-set completion status: a pure function of this set's
// own weight and reps, never of sibling sets.
func (s Set) HasData() bool {
	return !s.IsEmpty()
}

// Exercise is one exercise of a workout with its ordered sets.
type Exercise struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	MuscleGroupID *uuid.UUID `json:"muscle_group_id,omitempty"`
	PairMember    PairMember `json:"pair_member,omitempty"`
	Sets          []Set      `json:"sets"`
}

// BestSet returns the set with the highest volume, ignoring empty sets.
// Ties keep the first occurrence. ok is false when no non-empty set exists.
func (e Exercise) BestSet() (best Set, ok bool) {
	for _, s := range e.Sets {
		if s.IsEmpty() {
			continue
		}
		if !ok || s.Volume() > best.Volume() {
			best = s
			ok = true
		}
	}
	return best, ok
}

// Workout is the live workout being displayed. Mutated only by the workout
// editor; this engine reads it.
type Workout struct {
	ID          uuid.UUID   `json:"id"`
	WorkoutDate time.Time   `json:"workout_date"`
	IsCompleted bool        `json:"is_completed"`
	IsPrepared  bool        `json:"is_prepared"`
	WorkoutType WorkoutType `json:"workout_type,omitempty"`
	Exercises   []Exercise  `json:"exercises"`
}

// Trainee identifies who is training, with optional pair metadata.
type Trainee struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	IsPair    bool      `json:"is_pair"`
	PairName1 *string   `json:"pair_name_1,omitempty"`
	PairName2 *string   `json:"pair_name_2,omitempty"`
}

// CalendarEvent is the calendar-sync record that justified selecting the
// current session.
type CalendarEvent struct {
	ID        uuid.UUID  `json:"id"`
	Summary   *string    `json:"summary"`
	StartTime time.Time  `json:"event_start_time"`
	EndTime   *time.Time `json:"event_end_time"`
}

// Session is the reconciled "what is happening now" snapshot. It is replaced
// wholesale on each successful resolve; a partial reload may replace only
// Workout.Exercises.
type Session struct {
	Trainee       *Trainee       `json:"trainee"`
	Workout       *Workout       `json:"workout"`
	CalendarEvent *CalendarEvent `json:"calendar_event"`
}

// WorkoutID returns the id of the attached workout, or uuid.Nil.
func (s *Session) WorkoutID() uuid.UUID {
	if s == nil || s.Workout == nil {
		return uuid.Nil
	}
	return s.Workout.ID
}

// CalendarCandidate is one row of the calendar-sync cache with its trainee
// joined in, as returned by the candidate query.
type CalendarCandidate struct {
	ID        uuid.UUID
	TraineeID uuid.UUID
	WorkoutID *uuid.UUID
	Summary   *string
	StartTime time.Time
	EndTime   *time.Time
	Trainee   Trainee
}

// EndsAfter reports whether the event is still running at t. Events without
// an explicit end are assumed to last one hour.
func (c CalendarCandidate) EndsAfter(t time.Time) bool {
	if c.EndTime != nil {
		return !c.EndTime.Before(t)
	}
	return !c.StartTime.Add(time.Hour).Before(t)
}

// Event converts the candidate to the calendar event carried on the session.
func (c CalendarCandidate) Event() *CalendarEvent {
	return &CalendarEvent{
		ID:        c.ID,
		Summary:   c.Summary,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
	}
}
