package entities

import "time"

// Transcription status values for AudioFile.TranscriptionStatus.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// User is the subset of the users table the worker touches.
type User struct {
	UUIDModel
	DeviceUUID    string `gorm:"column:device_uuid;type:varchar(64);index"`
	TotalWorkouts int    `gorm:"not null;default:0"`
}

// TableName ensures GORM uses the existing table name.
func (User) TableName() string {
	return "users"
}

// AudioFile is one uploaded recording.
type AudioFile struct {
	UUIDModel
	UserID              string    `gorm:"type:varchar(36);index"`
	FilePath            string    `gorm:"not null"`
	OriginalFilename    string    `gorm:"column:original_filename"`
	TranscriptionStatus string    `gorm:"type:varchar(20);not null;default:pending;index"`
	Processed           bool      `gorm:"not null;default:false;index"`
	DurationSeconds     *float64  `gorm:"column:duration_seconds"`
	UploadTimestamp     time.Time `gorm:"autoCreateTime;index"`

	VoiceEmbedding    []float64 `gorm:"serializer:json"`
	VoiceExtracted    bool      `gorm:"not null;default:false"`
	VoiceQualityScore *float64

	// Cached summary of file_processing_progress for fast reads.
	ProcessingProgress int `gorm:"not null;default:0"`
	ProcessingStage    *string
	ProcessingMessage  *string
}

// TableName ensures GORM uses the existing table name.
func (AudioFile) TableName() string {
	return "audio_files"
}

// Transcription is the raw text for one AudioFile. Written once.
type Transcription struct {
	UUIDModel
	AudioFileID      string   `gorm:"type:varchar(36);uniqueIndex;not null"`
	RawText          string   `gorm:"type:text"`
	ConfidenceScore  *float64 `gorm:"column:confidence_score"`
	ProcessingTimeMS int64    `gorm:"column:processing_time_ms"`
	CreatedAt        time.Time
}

// TableName ensures GORM uses the existing table name.
func (Transcription) TableName() string {
	return "transcriptions"
}

// Processing stage names.
const (
	StageTranscription = "transcription"
	StageLLMProcessing = "llm_processing"
	StageDataSaving    = "data_saving"
)

// Stage status values.
const (
	StagePending    = "pending"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

// FileProcessingProgress is one stage record of one AudioFile.
type FileProcessingProgress struct {
	UUIDModel
	AudioFileID     string `gorm:"type:varchar(36);not null;uniqueIndex:idx_file_stage,priority:1"`
	Stage           string `gorm:"type:varchar(32);not null;uniqueIndex:idx_file_stage,priority:2"`
	Status          string `gorm:"type:varchar(20);not null;default:pending"`
	ProgressPercent int    `gorm:"not null;default:0"`
	Message         *string
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// TableName ensures GORM uses the existing table name.
func (FileProcessingProgress) TableName() string {
	return "file_processing_progress"
}
