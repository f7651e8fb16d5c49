package pipeline

import (
	"context"
	"time"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/extraction"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/notify"
	"github.com/morse-fitness/morse-worker/internal/observability/metrics"
	"github.com/morse-fitness/morse-worker/internal/speaker"
	"github.com/morse-fitness/morse-worker/internal/stages"
	"github.com/morse-fitness/morse-worker/internal/transcription"
)

// fileRun carries the state of one ProcessFile call.
type fileRun struct {
	job             Job
	path            string
	userID          string
	transcriptionID string
	text            string
	workout         *extraction.Workout
	workoutID       string
	log             logger.Logger
}

// ProcessFile runs one AudioFile through transcription, extraction and
// saving, then attempts speaker verification. A file that is already
// completed is skipped. The returned error describes the stage that
// failed; the file has already been marked failed.
func (p *Pipeline) ProcessFile(ctx context.Context, job Job) error {
	ctx = traced(ctx, "file", job.AudioFileID)
	start := time.Now()
	log := p.log.WithContext(ctx)

	file, err := p.store.GetAudioFile(ctx, job.AudioFileID)
	if err != nil {
		log.Error("audio file not loadable", logger.Error(err))
		p.metrics.RecordJob(metrics.JobFile, metrics.OutcomeFailure)
		return err
	}
	if file.TranscriptionStatus == entities.StatusCompleted && file.Processed {
		log.Info("audio file already processed, skipping")
		p.metrics.RecordJob(metrics.JobFile, metrics.OutcomeSkipped)
		return nil
	}

	run := &fileRun{
		job:    job,
		path:   job.FilePath,
		userID: job.UserID,
		log:    log,
	}
	if run.path == "" {
		run.path = file.FilePath
	}
	if run.userID == "" {
		run.userID = file.UserID
	}
	if rewritten := RewritePath(run.path, p.rewriteFrom, p.rewriteTo); rewritten != run.path {
		log.Debug("upload path translated", logger.String("from", run.path), logger.String("to", rewritten))
		run.path = rewritten
	}

	log.Info("processing audio file", logger.String("path", run.path))

	if err := p.store.MarkProcessing(ctx, job.AudioFileID); err != nil {
		return p.failFile(ctx, run, "", err)
	}
	if err := p.tracker.Init(ctx, job.AudioFileID); err != nil {
		return p.failFile(ctx, run, "", err)
	}

	if err := p.transcriptionStage(ctx, run); err != nil {
		return p.failFile(ctx, run, stages.Transcription, err)
	}
	if err := p.extractionStage(ctx, run); err != nil {
		return p.failFile(ctx, run, stages.LLMProcessing, err)
	}
	if err := p.savingStage(ctx, run); err != nil {
		return p.failFile(ctx, run, stages.DataSaving, err)
	}

	p.verifySpeaker(ctx, run)

	if err := p.store.MarkCompleted(ctx, job.AudioFileID); err != nil {
		return p.failFile(ctx, run, "", err)
	}

	p.metrics.RecordJob(metrics.JobFile, metrics.OutcomeSuccess)
	p.publish(ctx, notify.Event{
		Type:        notify.FileCompleted,
		AudioFileID: job.AudioFileID,
		WorkoutID:   run.workoutID,
		UserID:      run.userID,
		Exercises:   run.workout.TotalExercises,
	})
	log.Info("audio file processed",
		logger.String("workout_id", run.workoutID),
		logger.Int("exercises", run.workout.TotalExercises),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// transcriptionStage produces the transcript. A transcription saved by an
// earlier attempt is reused without calling the backend again.
func (p *Pipeline) transcriptionStage(ctx context.Context, run *fileRun) (err error) {
	id := run.job.AudioFileID
	defer p.timeStage(stages.Transcription, time.Now(), &err)

	p.advance(run, p.tracker.Start(ctx, id, stages.Transcription, "Starting transcription"))

	existing, err := p.store.TranscriptionFor(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		run.transcriptionID = existing.ID
		run.text = existing.RawText
		run.log.Info("reusing stored transcription", logger.String("transcription_id", existing.ID))
		p.advance(run, p.tracker.Complete(ctx, id, stages.Transcription, "Transcription already available"))
		return nil
	}

	p.advance(run, p.tracker.Update(ctx, id, stages.Transcription, 50, "Transcribing audio"))

	var result transcription.Result
	err = p.pool.Run(ctx, metrics.OpTranscription, p.transcriptionTimeout, func(ctx context.Context) error {
		var err error
		result, err = p.transcriber.Transcribe(ctx, run.path)
		return err
	})
	if err != nil {
		return err
	}

	run.text = result.Text
	run.transcriptionID, err = p.store.SaveTranscription(ctx, id, result.Text, result.Confidence, result.ProcessingTimeMS)
	if err != nil {
		return err
	}

	p.updateDuration(ctx, run, result.DurationSeconds)

	run.log.Info("transcription completed",
		logger.Int("characters", len(result.Text)),
		logger.Float64("confidence", result.Confidence))
	p.advance(run, p.tracker.Complete(ctx, id, stages.Transcription, "Transcription completed"))
	return nil
}

// updateDuration stores the reported duration, or the probed file duration
// when the backend reported none. Probe failures are only logged.
func (p *Pipeline) updateDuration(ctx context.Context, run *fileRun, seconds float64) {
	if seconds <= 0 && p.probeDuration != nil {
		probed, err := p.probeDuration(ctx, run.path)
		if err != nil {
			run.log.Debug("duration probe failed", logger.Error(err))
			return
		}
		seconds = probed
	}
	if seconds <= 0 {
		return
	}
	if err := p.store.UpdateDuration(ctx, run.job.AudioFileID, seconds); err != nil {
		run.log.Warn("failed to update audio duration", logger.Error(err))
	}
}

func (p *Pipeline) extractionStage(ctx context.Context, run *fileRun) (err error) {
	id := run.job.AudioFileID
	defer p.timeStage(stages.LLMProcessing, time.Now(), &err)

	p.advance(run, p.tracker.Start(ctx, id, stages.LLMProcessing, "Analyzing workout"))
	p.advance(run, p.tracker.Update(ctx, id, stages.LLMProcessing, 50, "Extracting exercises"))

	err = p.pool.Run(ctx, metrics.OpExtraction, p.extractionTimeout, func(ctx context.Context) error {
		var err error
		run.workout, err = p.extractor.Extract(ctx, extraction.Request{Text: run.text})
		return err
	})
	if err != nil {
		return err
	}

	p.advance(run, p.tracker.Complete(ctx, id, stages.LLMProcessing, "Workout data extracted"))
	return nil
}

// savingStage persists the workout. A workout saved by an earlier attempt
// is kept instead of saving a duplicate.
func (p *Pipeline) savingStage(ctx context.Context, run *fileRun) (err error) {
	id := run.job.AudioFileID
	defer p.timeStage(stages.DataSaving, time.Now(), &err)

	p.advance(run, p.tracker.Start(ctx, id, stages.DataSaving, "Saving workout"))

	existing, err := p.store.WorkoutIDForAudioFile(ctx, id)
	if err != nil {
		return err
	}
	if existing != "" {
		run.workoutID = existing
		run.log.Info("workout already saved for audio file", logger.String("workout_id", existing))
	} else {
		w := toEntity(run.workout, run.userID)
		w.AudioFileID = &id
		if run.transcriptionID != "" {
			w.TranscriptionID = &run.transcriptionID
		}

		saveStart := time.Now()
		run.workoutID, err = p.store.SaveWorkout(ctx, w)
		p.metrics.RecordDuration(metrics.OpSaveWorkout, time.Since(saveStart).Seconds())
		if err != nil {
			p.metrics.RecordOperation(metrics.OpSaveWorkout, metrics.OutcomeFailure)
			return err
		}
		p.metrics.RecordOperation(metrics.OpSaveWorkout, metrics.OutcomeSuccess)
	}

	p.advance(run, p.tracker.Complete(ctx, id, stages.DataSaving, "Workout saved"))
	return nil
}

// verifySpeaker runs verification when enabled. Its failures are logged
// and otherwise ignored.
func (p *Pipeline) verifySpeaker(ctx context.Context, run *fileRun) {
	if p.verifier == nil {
		return
	}

	out := p.verifier.Verify(ctx, speaker.VerifyRequest{
		AudioFileID: run.job.AudioFileID,
		WorkoutID:   run.workoutID,
		Path:        run.path,
	})
	if out.Err != nil {
		run.log.Warn("speaker verification incomplete", logger.Error(out.Err))
	}
	if out.Tier != "" {
		p.metrics.RecordVerification(string(out.Tier))
	}
	if !out.Claimed {
		return
	}

	p.metrics.RecordClaim()
	p.publish(ctx, notify.Event{
		Type:        notify.WorkoutClaimed,
		AudioFileID: run.job.AudioFileID,
		WorkoutID:   run.workoutID,
		UserID:      out.UserID,
		Similarity:  out.Similarity,
		Tier:        string(out.Tier),
	})
}

// failFile records a failure. With a stage the tracker fails the stage,
// skips the rest and fails the file; without one, or if that write fails,
// the file status is set directly.
func (p *Pipeline) failFile(ctx context.Context, run *fileRun, stage string, cause error) error {
	id := run.job.AudioFileID
	kind := errors.KindOf(cause)
	run.log.Error("audio file processing failed",
		logger.String("stage", stage),
		logger.String("kind", string(kind)),
		logger.Error(cause))

	marked := false
	if stage != "" {
		marked = p.tracker.Fail(ctx, id, stage, cause.Error(), 0) == nil
	}
	if !marked {
		if err := p.store.MarkFailed(ctx, id); err != nil {
			run.log.Error("failed to mark audio file failed", logger.Error(err))
		}
	}

	p.metrics.RecordJob(metrics.JobFile, metrics.OutcomeFailure)
	p.metrics.RecordError(component, string(kind))
	p.publish(ctx, notify.Event{
		Type:        notify.FileFailed,
		AudioFileID: id,
		UserID:      run.userID,
		Stage:       stage,
		Message:     cause.Error(),
	})
	return cause
}

// advance logs a failed progress write. Stage bookkeeping does not stop the
// file; the terminal status write does.
func (p *Pipeline) advance(run *fileRun, err error) {
	if err != nil {
		run.log.Warn("stage progress not recorded", logger.Error(err))
	}
}

func (p *Pipeline) timeStage(stage string, start time.Time, err *error) {
	outcome := metrics.OutcomeSuccess
	if *err != nil {
		outcome = metrics.OutcomeFailure
	}
	p.metrics.ObserveStage(stage, outcome, time.Since(start).Seconds())
}
