// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Job kinds.
const (
	JobFile    = "file"
	JobSession = "session"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Operation names recorded through Recorder.
const (
	// OpTranscription is a speech-to-text call.
	OpTranscription = "transcription"
	// OpExtraction is a language-model extraction call.
	OpExtraction = "llm_extraction"
	// OpEmbedding is a speaker-embedding call.
	OpEmbedding = "speaker_embedding"
	// OpSaveWorkout is the workout save transaction.
	OpSaveWorkout = "save_workout"
	// OpCleanup is the expiry of stale unclaimed workouts.
	OpCleanup = "cleanup"
)

// Histogram bucket configuration.
const (
	// BucketStart10ms covers 10ms to ~40s.
	BucketStart10ms = 0.01
	// BucketStart100ms covers 100ms to ~100s and beyond.
	BucketStart100ms = 0.1
	// BucketStart64B is the starting bucket for payload size histograms.
	BucketStart64B = 64.0

	BucketFactor2 = 2
	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
