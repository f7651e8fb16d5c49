// Package notify publishes job status events for other services to follow.
package notify

import (
	"context"
	"time"
)

// Event types.
const (
	FileCompleted    = "file.completed"
	FileFailed       = "file.failed"
	SessionCompleted = "session.completed"
	SessionFailed    = "session.failed"
	WorkoutClaimed   = "workout.claimed"
)

// Event is one status change. Field names are part of the published
// contract.
type Event struct {
	Type        string    `json:"type"`
	AudioFileID string    `json:"audioFileId,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	WorkoutID   string    `json:"workoutId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Message     string    `json:"message,omitempty"`
	Exercises   int       `json:"exercises,omitempty"`
	Similarity  float64   `json:"similarity,omitempty"`
	Tier        string    `json:"tier,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher delivers events. Publishing is best-effort; callers log
// errors and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() {}
