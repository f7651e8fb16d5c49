package entities

import "time"

// Claim status values. There is no transition back to unclaimed.
const (
	ClaimUnclaimed = "unclaimed"
	ClaimClaimed   = "claimed"
)

// ClaimMethodVoiceMatch marks claims made by speaker verification.
const ClaimMethodVoiceMatch = "voice_match"

// Metric types recorded in user_progress.
const (
	MetricWeight   = "weight"
	MetricReps     = "reps"
	MetricDuration = "duration"
	MetricDistance = "distance"
)

// Workout is one extracted result, linked either to a session or to a
// single AudioFile.
type Workout struct {
	UUIDModel
	UserID                 string    `gorm:"type:varchar(36);index"`
	AudioFileID            *string   `gorm:"type:varchar(36);index"`
	SessionID              *string   `gorm:"type:varchar(36);index"`
	TranscriptionID        *string   `gorm:"type:varchar(36)"`
	WorkoutDate            time.Time `gorm:"type:date;not null"`
	WorkoutStartTime       *string   `gorm:"type:varchar(8)"`
	WorkoutDurationMinutes *int
	TotalExercises         int     `gorm:"not null;default:0"`
	Notes                  *string `gorm:"type:text"`

	ClaimStatus     string `gorm:"type:varchar(20);not null;default:unclaimed;index"`
	ClaimedBy       *string
	ClaimMethod     *string `gorm:"type:varchar(32)"`
	ClaimConfidence *float64
	ClaimedAt       *time.Time
	AutoLinked      bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"index"`

	Exercises []Exercise `gorm:"foreignKey:WorkoutID;constraint:OnDelete:CASCADE"`
}

// TableName ensures GORM uses the existing table name.
func (Workout) TableName() string {
	return "workouts"
}

// Exercise belongs to exactly one Workout.
type Exercise struct {
	UUIDModel
	WorkoutID       string    `gorm:"type:varchar(36);not null;index"`
	ExerciseName    string    `gorm:"not null"`
	ExerciseType    string    `gorm:"type:varchar(32)"`
	MuscleGroups    []string  `gorm:"serializer:json"`
	Sets            *int
	Reps            []int     `gorm:"serializer:json"`
	WeightLbs       []float64 `gorm:"column:weight_lbs;serializer:json"`
	DurationMinutes *float64
	DistanceMiles   *float64
	EffortLevel     *int
	RestSeconds     *int
	Notes           *string `gorm:"type:text"`
	OrderInWorkout  int     `gorm:"not null;default:1"`
}

// TableName ensures GORM uses the existing table name.
func (Exercise) TableName() string {
	return "exercises"
}

// UserProgress is one append-only metric point.
type UserProgress struct {
	UUIDModel
	UserID       string    `gorm:"type:varchar(36);not null;index:idx_progress_user_exercise,priority:1"`
	ExerciseName string    `gorm:"type:varchar(255);not null;index:idx_progress_user_exercise,priority:2"`
	MetricType   string    `gorm:"type:varchar(16);not null"`
	MetricValue  float64   `gorm:"not null"`
	RecordedDate time.Time `gorm:"type:date;not null"`
	WorkoutID    string    `gorm:"type:varchar(36);not null;index"`
}

// TableName ensures GORM uses the existing table name.
func (UserProgress) TableName() string {
	return "user_progress"
}

// WorkoutClaim records who claimed a workout and how.
type WorkoutClaim struct {
	UUIDModel
	UserID               string `gorm:"type:varchar(36);not null;index"`
	WorkoutID            string `gorm:"type:varchar(36);not null;uniqueIndex"`
	ClaimMethod          string `gorm:"type:varchar(32);not null"`
	VoiceMatchConfidence *float64
	ClaimedAt            time.Time `gorm:"autoCreateTime"`
}

// TableName ensures GORM uses the existing table name.
func (WorkoutClaim) TableName() string {
	return "workout_claims"
}
