package session_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/session"
)

func ptr[T any](v T) *T { return &v }

func TestCombineSingleRecordingVerbatim(t *testing.T) {
	t.Parallel()

	agg := session.Combine([]session.Recording{
		{AudioFileID: "a", Order: 1, Text: ptr("bench press 185 5 reps"), Confidence: ptr(0.8)},
	})

	assert.Equal(t, "bench press 185 5 reps", agg.CombinedText)
	assert.Equal(t, 1, agg.TotalRecordings)
	assert.InDelta(t, 0.8, agg.AverageConfidence, 1e-9)
}

func TestCombineSingleRecordingWithoutText(t *testing.T) {
	t.Parallel()

	agg := session.Combine([]session.Recording{{AudioFileID: "a", Order: 1}})
	assert.Empty(t, agg.CombinedText)
	assert.Zero(t, agg.AverageConfidence)
}

func TestCombineMultipleRecordings(t *testing.T) {
	t.Parallel()

	agg := session.Combine([]session.Recording{
		{AudioFileID: "b", Order: 2, TimeOffsetMinutes: ptr(12.4), Text: ptr("bench press 205 5 reps"), Confidence: ptr(0.6)},
		{AudioFileID: "c", Order: 3, TimeOffsetMinutes: ptr(20.0)},
		{AudioFileID: "a", Order: 1, TimeOffsetMinutes: ptr(0.0), Text: ptr("bench press 185 5 reps"), Confidence: ptr(0.9)},
	})

	want := "Workout session with 3 recordings:\n\n" +
		"Recording 1: bench press 185 5 reps\n\n" +
		"Recording 2 (12 min into session): bench press 205 5 reps\n\n" +
		"Recording 3 (20 min into session): [No transcription]\n\n"
	assert.Equal(t, want, agg.CombinedText)
	assert.Equal(t, 3, agg.TotalRecordings)
	assert.InDelta(t, 0.5, agg.AverageConfidence, 1e-9, "missing confidence counts as zero")

	require.Len(t, agg.Files, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{agg.Files[0].AudioFileID, agg.Files[1].AudioFileID, agg.Files[2].AudioFileID})
}

func TestCombineOrderIndependentOfInputOrder(t *testing.T) {
	t.Parallel()

	base := []session.Recording{
		{AudioFileID: "a", Order: 1, Text: ptr("one")},
		{AudioFileID: "b", Order: 2, Text: ptr("two")},
		{AudioFileID: "c", Order: 3, Text: ptr("three")},
		{AudioFileID: "d", Order: 4, Text: ptr("four")},
	}
	want := session.Combine(base).CombinedText

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]session.Recording(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, session.Combine(shuffled).CombinedText)
	}
}

type fakeSource struct {
	rows []datastore.SessionRecording
	err  error
}

func (f fakeSource) SessionRecordings(context.Context, string) ([]datastore.SessionRecording, error) {
	return f.rows, f.err
}

func TestAggregatorLoad(t *testing.T) {
	t.Parallel()

	agg := session.NewAggregator(fakeSource{rows: []datastore.SessionRecording{
		{AudioFileID: "a", RecordingOrder: 1, RawText: ptr("squat 225 5 reps"), ConfidenceScore: ptr(1.0)},
		{AudioFileID: "b", RecordingOrder: 2, RawText: ptr("squat 245 3 reps")},
	}}, logger.NewDiscard())

	got, err := agg.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalRecordings)
	assert.InDelta(t, 0.5, got.AverageConfidence, 1e-9)
	assert.Contains(t, got.CombinedText, "Recording 2: squat 245 3 reps")
}

func TestAggregatorLoadEmptySession(t *testing.T) {
	t.Parallel()

	agg := session.NewAggregator(fakeSource{}, logger.NewDiscard())
	_, err := agg.Load(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, errors.KindConsistency, errors.KindOf(err))
}
