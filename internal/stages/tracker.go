// Package stages tracks per-file progress through the processing stages.
//
// Every AudioFile moves through transcription, llm_processing and data_saving.
// Each stage is independently pending, in_progress, completed or failed. A
// failed stage fails the file and skips the stages that have not started.
// Overall progress is the mean of the stage percentages; a copy is cached on
// the AudioFile row for fast reads.
package stages

import (
	"context"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

// Stage names in execution order.
const (
	Transcription = entities.StageTranscription
	LLMProcessing = entities.StageLLMProcessing
	DataSaving    = entities.StageDataSaving
)

// All lists the stages in execution order.
var All = []string{Transcription, LLMProcessing, DataSaving}

// Recorder persists stage records. *datastore.Store implements it.
type Recorder interface {
	InitStages(ctx context.Context, audioFileID string, stages []string) error
	ApplyStageUpdate(ctx context.Context, audioFileID string, u datastore.StageUpdate) (int, error)
	StageRecords(ctx context.Context, audioFileID string) ([]entities.FileProcessingProgress, error)
}

// Tracker drives stage transitions for AudioFiles.
type Tracker struct {
	rec Recorder
	log logger.Logger
}

// NewTracker creates a Tracker.
func NewTracker(rec Recorder, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.Global().Module("stages")
	}
	return &Tracker{rec: rec, log: log}
}

// Init creates pending records for every stage. Calling it again keeps the
// existing records.
func (t *Tracker) Init(ctx context.Context, audioFileID string) error {
	return t.rec.InitStages(ctx, audioFileID, All)
}

// Start marks stage in progress at 0 %.
func (t *Tracker) Start(ctx context.Context, audioFileID, stage, message string) error {
	return t.apply(ctx, audioFileID, datastore.StageUpdate{
		Stage:   stage,
		Status:  entities.StageInProgress,
		Percent: 0,
		Message: optional(message),
	})
}

// Update reports intermediate progress of a running stage.
func (t *Tracker) Update(ctx context.Context, audioFileID, stage string, percent int, message string) error {
	return t.apply(ctx, audioFileID, datastore.StageUpdate{
		Stage:   stage,
		Status:  entities.StageInProgress,
		Percent: percent,
		Message: optional(message),
	})
}

// Complete marks stage completed at 100 %.
func (t *Tracker) Complete(ctx context.Context, audioFileID, stage, message string) error {
	return t.apply(ctx, audioFileID, datastore.StageUpdate{
		Stage:   stage,
		Status:  entities.StageCompleted,
		Percent: 100,
		Message: optional(message),
	})
}

// Fail marks stage failed with the given percent, skips the stages still
// pending and fails the file. Completed stages are kept.
func (t *Tracker) Fail(ctx context.Context, audioFileID, stage, message string, percent int) error {
	return t.apply(ctx, audioFileID, datastore.StageUpdate{
		Stage:         stage,
		Status:        entities.StageFailed,
		Percent:       percent,
		Message:       optional(message),
		FailRemaining: true,
		FailFile:      true,
	})
}

func (t *Tracker) apply(ctx context.Context, audioFileID string, u datastore.StageUpdate) error {
	overall, err := t.rec.ApplyStageUpdate(ctx, audioFileID, u)
	if err != nil {
		t.log.Error("stage update failed",
			logger.String("audio_file_id", audioFileID),
			logger.String("stage", u.Stage),
			logger.String("status", u.Status),
			logger.Error(err))
		return err
	}

	t.log.Debug("stage updated",
		logger.String("audio_file_id", audioFileID),
		logger.String("stage", u.Stage),
		logger.String("status", u.Status),
		logger.Int("percent", datastore.ClampPercent(u.Percent)),
		logger.Int("overall", overall))
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
