package datastore

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

// StageUpdate is one transition of a file's stage record.
type StageUpdate struct {
	Stage   string
	Status  string
	Percent int
	Message *string
	// FailRemaining marks the file's still-pending stages failed at 0 %.
	FailRemaining bool
	// FailFile sets the file's transcription status to failed.
	FailFile bool
}

// InitStages creates pending records for stages. Existing records are kept.
func (s *Store) InitStages(ctx context.Context, audioFileID string, stages []string) error {
	rows := make([]entities.FileProcessingProgress, 0, len(stages))
	for _, stage := range stages {
		rows = append(rows, entities.FileProcessingProgress{
			AudioFileID: audioFileID,
			Stage:       stage,
			Status:      entities.StagePending,
		})
	}

	return s.Do(ctx, "init_stages", func(db *gorm.DB) error {
		for i := range rows {
			rows[i].ID = ""
		}
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "audio_file_id"}, {Name: "stage"}},
			DoNothing: true,
		}).Create(&rows).Error
	})
}

// StageRecords returns the stage records of a file.
func (s *Store) StageRecords(ctx context.Context, audioFileID string) ([]entities.FileProcessingProgress, error) {
	var rows []entities.FileProcessingProgress
	err := s.Do(ctx, "stage_records", func(db *gorm.DB) error {
		return db.Where("audio_file_id = ?", audioFileID).Find(&rows).Error
	})
	return rows, err
}

// ApplyStageUpdate applies u and refreshes the cached progress summary on the
// AudioFile in one transaction. It returns the new overall progress.
func (s *Store) ApplyStageUpdate(ctx context.Context, audioFileID string, u StageUpdate) (int, error) {
	var overall int

	err := s.InTx(ctx, "apply_stage_update", func(tx *gorm.DB) error {
		var record entities.FileProcessingProgress
		if err := tx.Where("audio_file_id = ? AND stage = ?", audioFileID, u.Stage).
			First(&record).Error; err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{
			"status":           u.Status,
			"progress_percent": ClampPercent(u.Percent),
			"message":          u.Message,
		}
		if record.StartedAt == nil && u.Status != entities.StagePending {
			updates["started_at"] = now
		}
		if u.Status == entities.StageCompleted {
			updates["completed_at"] = now
		}
		if err := tx.Model(&record).Updates(updates).Error; err != nil {
			return err
		}

		if u.FailRemaining {
			skipped := fmt.Sprintf("skipped after %s failure", u.Stage)
			if err := tx.Model(&entities.FileProcessingProgress{}).
				Where("audio_file_id = ? AND stage <> ? AND status = ?", audioFileID, u.Stage, entities.StagePending).
				Updates(map[string]any{
					"status":           entities.StageFailed,
					"progress_percent": 0,
					"message":          skipped,
				}).Error; err != nil {
				return err
			}
		}

		var percents []int
		if err := tx.Model(&entities.FileProcessingProgress{}).
			Where("audio_file_id = ?", audioFileID).
			Pluck("progress_percent", &percents).Error; err != nil {
			return err
		}
		overall = OverallProgress(percents...)

		if err := tx.Model(&entities.AudioFile{}).
			Where("id = ?", audioFileID).
			Updates(map[string]any{
				"processing_progress": overall,
				"processing_stage":    u.Stage,
				"processing_message":  u.Message,
			}).Error; err != nil {
			return err
		}

		if u.FailFile {
			return tx.Model(&entities.AudioFile{}).
				Where("id = ? AND transcription_status <> ?", audioFileID, entities.StatusCompleted).
				Update("transcription_status", entities.StatusFailed).Error
		}
		return nil
	})

	return overall, err
}

// ClampPercent limits p to [0,100].
func ClampPercent(p int) int {
	return min(max(p, 0), 100)
}

// OverallProgress is the mean of the stage percentages, truncated and
// clamped to [0,100]. No stages means 0.
func OverallProgress(percents ...int) int {
	if len(percents) == 0 {
		return 0
	}
	sum := 0
	for _, p := range percents {
		sum += ClampPercent(p)
	}
	return ClampPercent(int(math.Floor(float64(sum) / float64(len(percents)))))
}
