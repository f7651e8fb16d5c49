package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

// SaveWorkout inserts the workout, its exercises and the derived progress
// rows in one transaction and increments the owner's workout count. The
// workout must reference exactly one of an AudioFile or a session.
// It returns the new workout id.
func (s *Store) SaveWorkout(ctx context.Context, w *entities.Workout) (string, error) {
	if (w.AudioFileID == nil) == (w.SessionID == nil) {
		return "", errors.Invalid(component, "workout must reference exactly one of audio file or session")
	}

	w.TotalExercises = len(w.Exercises)
	if w.ClaimStatus == "" {
		w.ClaimStatus = entities.ClaimUnclaimed
	}
	for i := range w.Exercises {
		if w.Exercises[i].OrderInWorkout == 0 {
			w.Exercises[i].OrderInWorkout = i + 1
		}
	}

	err := s.InTx(ctx, "save_workout", func(tx *gorm.DB) error {
		// a retried transaction must not reuse ids assigned by the rolled back attempt
		w.ID = ""
		for i := range w.Exercises {
			w.Exercises[i].ID = ""
			w.Exercises[i].WorkoutID = ""
		}

		if err := tx.Create(w).Error; err != nil {
			return err
		}

		if w.UserID == "" {
			return nil
		}

		if progress := ProgressRows(w); len(progress) > 0 {
			if err := tx.Create(&progress).Error; err != nil {
				return err
			}
		}

		return tx.Model(&entities.User{}).
			Where("id = ?", w.UserID).
			UpdateColumn("total_workouts", gorm.Expr("total_workouts + ?", 1)).Error
	})
	if err != nil {
		return "", err
	}

	s.log.Debug("workout saved",
		logger.String("workout_id", w.ID),
		logger.Int("exercises", w.TotalExercises))
	return w.ID, nil
}

// GetWorkout loads a workout with its exercises in order.
func (s *Store) GetWorkout(ctx context.Context, id string) (*entities.Workout, error) {
	var w entities.Workout
	err := s.Do(ctx, "get_workout", func(db *gorm.DB) error {
		return db.Preload("Exercises", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_in_workout ASC")
		}).First(&w, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// WorkoutIDForAudioFile returns the workout saved for a file, or "" when
// there is none.
func (s *Store) WorkoutIDForAudioFile(ctx context.Context, audioFileID string) (string, error) {
	var ids []string
	err := s.Do(ctx, "workout_id_for_audio_file", func(db *gorm.DB) error {
		return db.Model(&entities.Workout{}).
			Where("audio_file_id = ?", audioFileID).
			Order("created_at ASC").
			Limit(1).
			Pluck("id", &ids).Error
	})
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

// WorkoutIDForSession returns the workout saved for a session, or "".
func (s *Store) WorkoutIDForSession(ctx context.Context, sessionID string) (string, error) {
	var ids []string
	err := s.Do(ctx, "workout_id_for_session", func(db *gorm.DB) error {
		return db.Model(&entities.Workout{}).
			Where("session_id = ?", sessionID).
			Order("created_at ASC").
			Limit(1).
			Pluck("id", &ids).Error
	})
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}
