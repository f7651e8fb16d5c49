package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

// ClaimWorkout links an unclaimed workout to userID by voice match. The
// check and the update are one conditional statement, so of any number of
// concurrent callers exactly one gets true. Losing the race, or a workout
// that is already claimed, returns false with no error.
func (s *Store) ClaimWorkout(ctx context.Context, workoutID, userID string, similarity float64) (bool, error) {
	claimed := false

	err := s.InTx(ctx, "claim_workout", func(tx *gorm.DB) error {
		claimed = false
		now := s.now()

		res := tx.Model(&entities.Workout{}).
			Where("id = ? AND claim_status = ?", workoutID, entities.ClaimUnclaimed).
			Updates(map[string]any{
				"claim_status":     entities.ClaimClaimed,
				"claimed_by":       userID,
				"claim_method":     entities.ClaimMethodVoiceMatch,
				"claim_confidence": similarity,
				"claimed_at":       now,
				"auto_linked":      true,
				"user_id":          userID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		claim := entities.WorkoutClaim{
			UserID:               userID,
			WorkoutID:            workoutID,
			ClaimMethod:          entities.ClaimMethodVoiceMatch,
			VoiceMatchConfidence: &similarity,
			ClaimedAt:            now,
		}
		if err := tx.Create(&claim).Error; err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if !claimed {
		s.log.Info("workout not available for claim",
			logger.String("workout_id", workoutID),
			logger.String("user_id", userID))
	}
	return claimed, nil
}
