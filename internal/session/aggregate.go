// Package session merges the recordings of a workout session into one
// transcript for extraction.
package session

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

const noTranscription = "[No transcription]"

// Recording is one linked recording of a session.
type Recording struct {
	AudioFileID       string
	Filename          string
	Order             int
	TimeOffsetMinutes *float64
	Text              *string
	Confidence        *float64
}

// FileMeta describes one recording in the aggregate.
type FileMeta struct {
	AudioFileID       string
	Filename          string
	Order             int
	TimeOffsetMinutes *float64
	Confidence        *float64
}

// Aggregate is the merged view of a session handed to extraction.
type Aggregate struct {
	CombinedText      string
	Files             []FileMeta
	TotalRecordings   int
	AverageConfidence float64
}

// Combine merges recordings in recording order. A single recording's text is
// used as is. Several recordings get a header and one numbered paragraph
// each. Missing confidence counts as 0 in the average.
func Combine(recordings []Recording) Aggregate {
	sorted := slices.Clone(recordings)
	slices.SortStableFunc(sorted, func(a, b Recording) int {
		return cmp.Compare(a.Order, b.Order)
	})

	agg := Aggregate{
		Files:           make([]FileMeta, 0, len(sorted)),
		TotalRecordings: len(sorted),
	}
	if len(sorted) == 0 {
		return agg
	}

	var sum float64
	for _, r := range sorted {
		if r.Confidence != nil {
			sum += *r.Confidence
		}
		agg.Files = append(agg.Files, FileMeta{
			AudioFileID:       r.AudioFileID,
			Filename:          r.Filename,
			Order:             r.Order,
			TimeOffsetMinutes: r.TimeOffsetMinutes,
			Confidence:        r.Confidence,
		})
	}
	agg.AverageConfidence = sum / float64(len(sorted))

	if len(sorted) == 1 {
		if sorted[0].Text != nil {
			agg.CombinedText = *sorted[0].Text
		}
		return agg
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Workout session with %d recordings:\n\n", len(sorted))
	for i, r := range sorted {
		offset := ""
		if r.TimeOffsetMinutes != nil && *r.TimeOffsetMinutes != 0 {
			offset = fmt.Sprintf(" (%d min into session)", int(math.RoundToEven(*r.TimeOffsetMinutes)))
		}
		text := noTranscription
		if r.Text != nil && *r.Text != "" {
			text = *r.Text
		}
		fmt.Fprintf(&b, "Recording %d%s: %s\n\n", i+1, offset, text)
	}
	agg.CombinedText = b.String()
	return agg
}

// Source reads the linked recordings of a session.
type Source interface {
	SessionRecordings(ctx context.Context, sessionID string) ([]datastore.SessionRecording, error)
}

// Aggregator loads and combines session recordings.
type Aggregator struct {
	src Source
	log logger.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(src Source, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Global().Module("session")
	}
	return &Aggregator{src: src, log: log}
}

// Load reads the recordings of sessionID and combines them. A session
// without linked recordings is a consistency error.
func (a *Aggregator) Load(ctx context.Context, sessionID string) (Aggregate, error) {
	rows, err := a.src.SessionRecordings(ctx, sessionID)
	if err != nil {
		return Aggregate{}, err
	}
	if len(rows) == 0 {
		return Aggregate{}, errors.Consistency(
			fmt.Errorf("session %s has no linked recordings", sessionID), "session", "workout_session")
	}

	recordings := make([]Recording, 0, len(rows))
	for _, r := range rows {
		recordings = append(recordings, Recording{
			AudioFileID:       r.AudioFileID,
			Filename:          r.OriginalFilename,
			Order:             r.RecordingOrder,
			TimeOffsetMinutes: r.TimeOffsetMinutes,
			Text:              r.RawText,
			Confidence:        r.ConfidenceScore,
		})
	}

	agg := Combine(recordings)
	a.log.Debug("session aggregated",
		logger.String("session_id", sessionID),
		logger.Int("recordings", agg.TotalRecordings),
		logger.Float64("average_confidence", agg.AverageConfidence))
	return agg, nil
}
