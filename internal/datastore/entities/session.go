package entities

import "time"

// WorkoutSession groups recordings made close together in time.
type WorkoutSession struct {
	UUIDModel
	UserID          string    `gorm:"type:varchar(36);index"`
	SessionDate     time.Time `gorm:"type:date"`
	SessionStatus   string    `gorm:"type:varchar(20);not null;default:pending;index"`
	TotalRecordings int       `gorm:"not null;default:0"`
	TotalExercises  int       `gorm:"not null;default:0"`
	Notes           *string   `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName ensures GORM uses the existing table name.
func (WorkoutSession) TableName() string {
	return "workout_sessions"
}

// SessionAudioFile links an AudioFile into a session at a position.
type SessionAudioFile struct {
	UUIDModel
	SessionID         string   `gorm:"type:varchar(36);not null;index"`
	AudioFileID       string   `gorm:"type:varchar(36);not null;index"`
	RecordingOrder    int      `gorm:"not null"`
	TimeOffsetMinutes *float64 `gorm:"column:time_offset_minutes"`
}

// TableName ensures GORM uses the existing table name.
func (SessionAudioFile) TableName() string {
	return "session_audio_files"
}
