package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

// DeleteExpiredUnclaimed removes unclaimed workouts created before cutoff
// together with their exercises and progress rows. It returns the number of
// workouts removed. A workout claimed while the sweep runs keeps its rows.
func (s *Store) DeleteExpiredUnclaimed(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64

	err := s.InTx(ctx, "delete_expired_unclaimed", func(tx *gorm.DB) error {
		removed = 0

		// Row locks make concurrent claims wait for the sweep on MySQL and
		// Postgres; SQLite serializes writers instead.
		var ids []string
		if err := tx.Model(&entities.Workout{}).
			Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("claim_status = ? AND created_at < ?", entities.ClaimUnclaimed, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		// Children are selected by the workout's current claim state, not by
		// the snapshot above.
		stillUnclaimed := tx.Session(&gorm.Session{NewDB: true}).
			Model(&entities.Workout{}).
			Select("id").
			Where("id IN ? AND claim_status = ?", ids, entities.ClaimUnclaimed)

		if err := tx.Where("workout_id IN (?)", stillUnclaimed).Delete(&entities.UserProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workout_id IN (?)", stillUnclaimed).Delete(&entities.Exercise{}).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ? AND claim_status = ?", ids, entities.ClaimUnclaimed).Delete(&entities.Workout{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})

	return removed, err
}
