package datastore

import (
	"slices"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

// ProgressRows derives the append-only metric points for every exercise of
// a saved workout. Weight uses the largest non-zero value, reps the largest
// count; duration and distance are recorded when set and non-zero.
func ProgressRows(w *entities.Workout) []entities.UserProgress {
	var rows []entities.UserProgress

	add := func(ex *entities.Exercise, metric string, value float64) {
		rows = append(rows, entities.UserProgress{
			UserID:       w.UserID,
			ExerciseName: ex.ExerciseName,
			MetricType:   metric,
			MetricValue:  value,
			RecordedDate: w.WorkoutDate,
			WorkoutID:    w.ID,
		})
	}

	for i := range w.Exercises {
		ex := &w.Exercises[i]

		var weights []float64
		for _, v := range ex.WeightLbs {
			if v != 0 {
				weights = append(weights, v)
			}
		}
		if len(weights) > 0 {
			add(ex, entities.MetricWeight, slices.Max(weights))
		}

		if len(ex.Reps) > 0 {
			add(ex, entities.MetricReps, float64(slices.Max(ex.Reps)))
		}

		if ex.DurationMinutes != nil && *ex.DurationMinutes != 0 {
			add(ex, entities.MetricDuration, *ex.DurationMinutes)
		}

		if ex.DistanceMiles != nil && *ex.DistanceMiles != 0 {
			add(ex, entities.MetricDistance, *ex.DistanceMiles)
		}
	}

	return rows
}
