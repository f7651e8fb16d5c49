package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
)

// PendingSession is a session eligible for processing.
type PendingSession struct {
	ID         string
	UserID     string
	DeviceUUID string
	CreatedAt  time.Time
}

// SessionRecording is one linked AudioFile joined with its transcription.
type SessionRecording struct {
	AudioFileID       string
	RecordingOrder    int
	TimeOffsetMinutes *float64
	RawText           *string
	ConfidenceScore   *float64
	FilePath          string
	OriginalFilename  string
	DurationSeconds   *float64
}

// PendingSessions returns pending sessions with at least one completed
// recording, oldest first. Sessions whose other recordings are still in
// flight are included.
func (s *Store) PendingSessions(ctx context.Context, limit int) ([]PendingSession, error) {
	var rows []PendingSession
	err := s.Do(ctx, "pending_sessions", func(db *gorm.DB) error {
		q := db.Table("workout_sessions AS ws").
			Select("ws.id, ws.user_id, COALESCE(u.device_uuid, '') AS device_uuid, ws.created_at").
			Joins("LEFT JOIN users u ON ws.user_id = u.id").
			Where("ws.session_status = ?", entities.StatusPending).
			Where(`EXISTS (
				SELECT 1 FROM session_audio_files saf
				JOIN audio_files af ON saf.audio_file_id = af.id
				WHERE saf.session_id = ws.id AND af.transcription_status = ?)`, entities.StatusCompleted).
			Order("ws.created_at ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Scan(&rows).Error
	})
	return rows, err
}

// GetSession loads one session.
func (s *Store) GetSession(ctx context.Context, id string) (*entities.WorkoutSession, error) {
	var session entities.WorkoutSession
	err := s.Do(ctx, "get_session", func(db *gorm.DB) error {
		return db.First(&session, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionRecordings returns the session's linked files in recording order.
func (s *Store) SessionRecordings(ctx context.Context, sessionID string) ([]SessionRecording, error) {
	var rows []SessionRecording
	err := s.Do(ctx, "session_recordings", func(db *gorm.DB) error {
		return db.Table("session_audio_files AS saf").
			Select(`saf.audio_file_id, saf.recording_order, saf.time_offset_minutes,
				t.raw_text, t.confidence_score, af.file_path, af.original_filename, af.duration_seconds`).
			Joins("JOIN audio_files af ON saf.audio_file_id = af.id").
			Joins("LEFT JOIN transcriptions t ON t.audio_file_id = af.id").
			Where("saf.session_id = ?", sessionID).
			Order("saf.recording_order ASC").
			Scan(&rows).Error
	})
	return rows, err
}

// UpdateSessionStatus sets the session status and, when notes is non-nil,
// its notes. A completed session is never moved back.
func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string, notes *string) error {
	updates := map[string]any{
		"session_status": status,
		"updated_at":     s.now(),
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	return s.Do(ctx, "update_session_status", func(db *gorm.DB) error {
		return db.Model(&entities.WorkoutSession{}).
			Where("id = ? AND session_status <> ?", id, entities.StatusCompleted).
			Updates(updates).Error
	})
}

// SetSessionExerciseCount records how many exercises the session produced.
func (s *Store) SetSessionExerciseCount(ctx context.Context, id string, count int) error {
	return s.Do(ctx, "set_session_exercise_count", func(db *gorm.DB) error {
		return db.Model(&entities.WorkoutSession{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"total_exercises": count,
				"updated_at":      s.now(),
			}).Error
	})
}
