package entities

import "time"

// VoiceProfile is a user's reference speaker embedding.
type VoiceProfile struct {
	UUIDModel
	UserID               string    `gorm:"type:varchar(36);not null;index"`
	EmbeddingVector      []float64 `gorm:"serializer:json"`
	ConfidenceScore      float64
	IsActive             bool    `gorm:"not null;default:true;index"`
	CreatedFromWorkoutID *string `gorm:"type:varchar(36)"`
	CreatedAt            time.Time
}

// TableName ensures GORM uses the existing table name.
func (VoiceProfile) TableName() string {
	return "voice_profiles"
}

// SpeakerVerification is one verification attempt, kept for audit.
type SpeakerVerification struct {
	UUIDModel
	AudioFileID     string  `gorm:"type:varchar(36);not null;index"`
	VoiceProfileID  *string `gorm:"type:varchar(36)"`
	SimilarityScore float64
	ConfidenceLevel string `gorm:"type:varchar(16);not null"`
	AutoLinked      bool   `gorm:"not null;default:false"`
	CreatedAt       time.Time
}

// TableName ensures GORM uses the existing table name.
func (SpeakerVerification) TableName() string {
	return "speaker_verifications"
}

// All returns every model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&AudioFile{},
		&Transcription{},
		&FileProcessingProgress{},
		&WorkoutSession{},
		&SessionAudioFile{},
		&Workout{},
		&Exercise{},
		&UserProgress{},
		&WorkoutClaim{},
		&VoiceProfile{},
		&SpeakerVerification{},
	}
}
