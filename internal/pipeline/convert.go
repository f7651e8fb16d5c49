package pipeline

import (
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/extraction"
)

// toEntity maps a normalized extraction result to a workout row. The
// caller links it to a file or a session.
func toEntity(w *extraction.Workout, userID string) *entities.Workout {
	out := &entities.Workout{
		UserID:                 userID,
		WorkoutDate:            w.WorkoutDate,
		WorkoutStartTime:       w.StartTime,
		WorkoutDurationMinutes: w.DurationMinutes,
		Notes:                  w.Notes,
		TotalExercises:         w.TotalExercises,
		ClaimStatus:            entities.ClaimUnclaimed,
		Exercises:              make([]entities.Exercise, 0, len(w.Exercises)),
	}
	for _, ex := range w.Exercises {
		out.Exercises = append(out.Exercises, entities.Exercise{
			ExerciseName:    ex.Name,
			ExerciseType:    ex.Type,
			MuscleGroups:    ex.MuscleGroups,
			Sets:            ex.Sets,
			Reps:            ex.Reps,
			WeightLbs:       ex.WeightLbs,
			DurationMinutes: ex.DurationMinutes,
			DistanceMiles:   ex.DistanceMiles,
			EffortLevel:     ex.EffortLevel,
			RestSeconds:     ex.RestSeconds,
			Notes:           ex.Notes,
			OrderInWorkout:  ex.Order,
		})
	}
	return out
}
