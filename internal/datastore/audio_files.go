package datastore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

// PendingFile is one AudioFile waiting for the pipeline.
type PendingFile struct {
	ID               string
	UserID           string
	FilePath         string
	OriginalFilename string
	DeviceUUID       string
}

// GetAudioFile loads one AudioFile.
func (s *Store) GetAudioFile(ctx context.Context, id string) (*entities.AudioFile, error) {
	var file entities.AudioFile
	err := s.Do(ctx, "get_audio_file", func(db *gorm.DB) error {
		return db.First(&file, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// PendingAudioFiles returns unprocessed files in pending or failed state,
// oldest upload first.
func (s *Store) PendingAudioFiles(ctx context.Context, limit int) ([]PendingFile, error) {
	var rows []PendingFile
	err := s.Do(ctx, "pending_audio_files", func(db *gorm.DB) error {
		return db.Table("audio_files AS af").
			Select("af.id, af.user_id, af.file_path, af.original_filename, COALESCE(u.device_uuid, '') AS device_uuid").
			Joins("LEFT JOIN users u ON af.user_id = u.id").
			Where("af.processed = ? AND af.transcription_status IN ?", false,
				[]string{entities.StatusPending, entities.StatusFailed}).
			Order("af.upload_timestamp ASC").
			Limit(limit).
			Scan(&rows).Error
	})
	return rows, err
}

// MarkProcessing moves a file to processing. A completed file is left alone.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.setFileStatus(ctx, "mark_processing", id, entities.StatusProcessing)
}

// MarkFailed moves a file to failed. A completed file is left alone.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.setFileStatus(ctx, "mark_failed", id, entities.StatusFailed)
}

func (s *Store) setFileStatus(ctx context.Context, operation, id, status string) error {
	return s.Do(ctx, operation, func(db *gorm.DB) error {
		return db.Model(&entities.AudioFile{}).
			Where("id = ? AND transcription_status <> ?", id, entities.StatusCompleted).
			Update("transcription_status", status).Error
	})
}

// MarkCompleted sets status completed and processed=true in one statement.
// Repeating it is a no-op.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.Do(ctx, "mark_completed", func(db *gorm.DB) error {
		return db.Model(&entities.AudioFile{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"transcription_status": entities.StatusCompleted,
				"processed":            true,
			}).Error
	})
}

// UpdateDuration records the audio duration in seconds.
func (s *Store) UpdateDuration(ctx context.Context, id string, seconds float64) error {
	return s.Do(ctx, "update_duration", func(db *gorm.DB) error {
		return db.Model(&entities.AudioFile{}).
			Where("id = ?", id).
			Update("duration_seconds", seconds).Error
	})
}

// SaveVoiceEmbedding stores the speaker embedding and quality score.
func (s *Store) SaveVoiceEmbedding(ctx context.Context, id string, embedding []float64, quality float64) error {
	return s.Do(ctx, "save_voice_embedding", func(db *gorm.DB) error {
		return db.Model(&entities.AudioFile{UUIDModel: entities.UUIDModel{ID: id}}).
			Select("voice_embedding", "voice_extracted", "voice_quality_score").
			Updates(&entities.AudioFile{
				VoiceEmbedding:    embedding,
				VoiceExtracted:    true,
				VoiceQualityScore: &quality,
			}).Error
	})
}

// SaveTranscription writes the transcription row and returns its id. An
// existing transcription for the file is kept and its id returned.
func (s *Store) SaveTranscription(ctx context.Context, audioFileID, text string, confidence float64, processingMS int64) (string, error) {
	var id string
	err := s.InTx(ctx, "save_transcription", func(tx *gorm.DB) error {
		row := entities.Transcription{
			AudioFileID:      audioFileID,
			RawText:          text,
			ConfidenceScore:  &confidence,
			ProcessingTimeMS: processingMS,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "audio_file_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
		var ids []string
		if err := tx.Model(&entities.Transcription{}).
			Where("audio_file_id = ?", audioFileID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return gorm.ErrRecordNotFound
		}
		id = ids[0]
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// TranscriptionFor returns the stored transcription of a file, or nil.
func (s *Store) TranscriptionFor(ctx context.Context, audioFileID string) (*entities.Transcription, error) {
	var rows []entities.Transcription
	err := s.Do(ctx, "transcription_for", func(db *gorm.DB) error {
		return db.Where("audio_file_id = ?", audioFileID).Limit(1).Find(&rows).Error
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}
