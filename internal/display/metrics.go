package display

import (
	"math"

	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/progress"
	"github.com/google/uuid"
)

// ExerciseStatus is the derived completion state of one exercise.
type ExerciseStatus string

const (
	StatusPending    ExerciseStatus = "pending"
	StatusInProgress ExerciseStatus = "in_progress"
	StatusCompleted  ExerciseStatus = "completed"
)

// ProgressMetric names the dimension a progress indicator compares on.
type ProgressMetric string

const (
	MetricVolume ProgressMetric = "volume"
	MetricWeight ProgressMetric = "weight"
	MetricReps   ProgressMetric = "reps"
)

// ProgressIndicator compares the current best set against the previous
// workout's baseline on one metric.
type ProgressIndicator struct {
	Metric   ProgressMetric `json:"metric"`
	Previous float64        `json:"previous"`
	Current  float64        `json:"current"`
	Delta    float64        `json:"delta"`
}

// ExerciseMetrics is the per-exercise view the display renders.
type ExerciseMetrics struct {
	ExerciseID    uuid.UUID          `json:"exercise_id"`
	Name          string             `json:"name"`
	TotalSets     int                `json:"total_sets"`
	CompletedSets int                `json:"completed_sets"`
	Status        ExerciseStatus     `json:"status"`
	Progress      *ProgressIndicator `json:"progress,omitempty"`
}

// Metrics is the full derived completion view of a workout. Overall
// completion is set-granular: completed sets over total sets summed across
// all exercises, the finer and more responsive signal for a live audience.
type Metrics struct {
	Exercises      []ExerciseMetrics `json:"exercises"`
	TotalSets      int               `json:"total_sets"`
	CompletedSets  int               `json:"completed_sets"`
	OverallPercent float64           `json:"overall_percent"`
}

// ComputeMetrics derives the completion view from the live workout and the
// history baseline. Empty sets are excluded from the completion arithmetic
// but still count toward the set totals.
func ComputeMetrics(workout *models.Workout, history *progress.Index) Metrics {
	var m Metrics
	if workout == nil {
		return m
	}

	for _, ex := range workout.Exercises {
		em := ExerciseMetrics{
			ExerciseID: ex.ID,
			Name:       ex.Name,
			TotalSets:  len(ex.Sets),
		}
		totalVolume := 0.0
		weighted := false
		for _, s := range ex.Sets {
			if s.HasData() {
				em.CompletedSets++
			}
			totalVolume += s.Volume()
			if s.WeightValue() > 0 {
				weighted = true
			}
		}

		switch {
		case em.TotalSets == 0 || em.CompletedSets == 0:
			em.Status = StatusPending
		case em.CompletedSets < em.TotalSets:
			em.Status = StatusInProgress
		case weighted && totalVolume <= 0:
			em.Status = StatusInProgress
		default:
			// Every set has data; bodyweight exercises complete on reps
			// alone, weighted exercises need volume behind them.
			em.Status = StatusCompleted
		}

		em.Progress = progressIndicator(ex, history)

		m.TotalSets += em.TotalSets
		m.CompletedSets += em.CompletedSets
		m.Exercises = append(m.Exercises, em)
	}

	if m.TotalSets > 0 {
		m.OverallPercent = float64(m.CompletedSets) / float64(m.TotalSets) * 100
	}
	return m
}

// progressIndicator compares the exercise's current best set against the
// previous workout's baseline, preferring whichever of volume, weight or
// reps shows the larger magnitude of change; ties prefer volume.
func progressIndicator(ex models.Exercise, history *progress.Index) *ProgressIndicator {
	prev, ok := history.Previous(ex.ID)
	if !ok {
		return nil
	}
	best, ok := ex.BestSet()
	if !ok {
		return nil
	}

	candidates := []ProgressIndicator{
		{Metric: MetricVolume, Previous: prev.Volume(), Current: best.Volume()},
		{Metric: MetricWeight, Previous: prev.Weight, Current: best.WeightValue()},
		{Metric: MetricReps, Previous: float64(prev.Reps), Current: float64(best.RepsValue())},
	}

	pick := candidates[0]
	pick.Delta = pick.Current - pick.Previous
	for _, c := range candidates[1:] {
		c.Delta = c.Current - c.Previous
		if math.Abs(c.Delta) > math.Abs(pick.Delta) {
			pick = c
		}
	}
	return &pick
}
