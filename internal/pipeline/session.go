package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/extraction"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/notify"
	"github.com/morse-fitness/morse-worker/internal/observability/metrics"
)

// Session failure notes.
const (
	noteNoTranscription = "No transcription data"
	noteSessionMissing  = "Session not found"
)

// ProcessSession merges the transcripts of a session's recordings and
// saves one workout for the whole session. A completed session is
// skipped. On failure the session is marked failed with the error as its
// notes.
func (p *Pipeline) ProcessSession(ctx context.Context, sessionID string) error {
	ctx = traced(ctx, "session", sessionID)
	start := time.Now()
	log := p.log.WithContext(ctx)

	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return p.failSession(ctx, log, sessionID, "", noteSessionMissing, err)
	}
	if sess.SessionStatus == entities.StatusCompleted {
		log.Info("session already processed, skipping")
		p.metrics.RecordJob(metrics.JobSession, metrics.OutcomeSkipped)
		return nil
	}

	log.Info("processing session")
	if err := p.store.UpdateSessionStatus(ctx, sessionID, entities.StatusProcessing, nil); err != nil {
		return p.failSession(ctx, log, sessionID, sess.UserID, err.Error(), err)
	}

	agg, err := p.aggregator.Load(ctx, sessionID)
	if err != nil {
		note := err.Error()
		if errors.KindOf(err) == errors.KindConsistency {
			note = noteNoTranscription
		}
		return p.failSession(ctx, log, sessionID, sess.UserID, note, err)
	}

	var workout *extraction.Workout
	err = p.pool.Run(ctx, metrics.OpExtraction, p.extractionTimeout, func(ctx context.Context) error {
		var err error
		workout, err = p.extractor.Extract(ctx, extraction.Request{
			Text:           agg.CombinedText,
			IsSession:      true,
			RecordingCount: agg.TotalRecordings,
		})
		return err
	})
	if err != nil {
		return p.failSession(ctx, log, sessionID, sess.UserID, err.Error(), err)
	}

	workoutID, err := p.store.WorkoutIDForSession(ctx, sessionID)
	if err != nil {
		return p.failSession(ctx, log, sessionID, sess.UserID, err.Error(), err)
	}
	if workoutID != "" {
		log.Info("workout already saved for session", logger.String("workout_id", workoutID))
	} else {
		w := toEntity(workout, sess.UserID)
		w.SessionID = &sessionID
		if workoutID, err = p.store.SaveWorkout(ctx, w); err != nil {
			return p.failSession(ctx, log, sessionID, sess.UserID, err.Error(), err)
		}
	}

	if err := p.store.SetSessionExerciseCount(ctx, sessionID, workout.TotalExercises); err != nil {
		return p.failSession(ctx, log, sessionID, sess.UserID, err.Error(), err)
	}
	notes := fmt.Sprintf("Processed %d exercises from %d recordings", workout.TotalExercises, agg.TotalRecordings)
	if err := p.store.UpdateSessionStatus(ctx, sessionID, entities.StatusCompleted, &notes); err != nil {
		return p.failSession(ctx, log, sessionID, sess.UserID, err.Error(), err)
	}

	p.metrics.RecordJob(metrics.JobSession, metrics.OutcomeSuccess)
	p.publish(ctx, notify.Event{
		Type:      notify.SessionCompleted,
		SessionID: sessionID,
		WorkoutID: workoutID,
		UserID:    sess.UserID,
		Exercises: workout.TotalExercises,
	})
	log.Info("session processed",
		logger.String("workout_id", workoutID),
		logger.Int("recordings", agg.TotalRecordings),
		logger.Int("exercises", workout.TotalExercises),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) failSession(ctx context.Context, log logger.Logger, sessionID, userID, note string, cause error) error {
	kind := errors.KindOf(cause)
	log.Error("session processing failed",
		logger.String("kind", string(kind)),
		logger.Error(cause))

	if err := p.store.UpdateSessionStatus(ctx, sessionID, entities.StatusFailed, &note); err != nil {
		log.Error("failed to mark session failed", logger.Error(err))
	}

	p.metrics.RecordJob(metrics.JobSession, metrics.OutcomeFailure)
	p.metrics.RecordError(component, string(kind))
	p.publish(ctx, notify.Event{
		Type:      notify.SessionFailed,
		SessionID: sessionID,
		UserID:    userID,
		Message:   note,
	})
	return cause
}
