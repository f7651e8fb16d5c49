package datastore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

func TestMarkCompletedNeverDowngrades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	user := testutil.SeedUser(t, store, "device-1")
	file := testutil.SeedAudioFile(t, store, user.ID, "/app/uploads/a.wav", entities.StatusPending)

	require.NoError(t, store.MarkProcessing(ctx, file.ID))
	require.NoError(t, store.MarkCompleted(ctx, file.ID))
	require.NoError(t, store.MarkCompleted(ctx, file.ID))
	require.NoError(t, store.MarkFailed(ctx, file.ID))
	require.NoError(t, store.MarkProcessing(ctx, file.ID))

	got, err := store.GetAudioFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, got.TranscriptionStatus)
	assert.True(t, got.Processed)
}

func TestGetAudioFileMissingIsConsistencyError(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore(t)

	_, err := store.GetAudioFile(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, errors.KindConsistency, errors.KindOf(err))
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestPendingAudioFilesOrderAndFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	user := testutil.SeedUser(t, store, "device-1")

	first := testutil.SeedAudioFile(t, store, user.ID, "/a.wav", entities.StatusPending)
	time.Sleep(5 * time.Millisecond)
	second := testutil.SeedAudioFile(t, store, user.ID, "/b.wav", entities.StatusFailed)
	testutil.SeedAudioFile(t, store, user.ID, "/c.wav", entities.StatusCompleted)
	testutil.SeedAudioFile(t, store, user.ID, "/d.wav", entities.StatusProcessing)

	rows, err := store.PendingAudioFiles(ctx, 50)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
	assert.Equal(t, "device-1", rows[0].DeviceUUID)

	rows, err = store.PendingAudioFiles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSaveTranscriptionKeepsFirstRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	file := testutil.SeedAudioFile(t, store, "", "/a.wav", entities.StatusPending)

	id1, err := store.SaveTranscription(ctx, file.ID, "bench press", 0.9, 1200)
	require.NoError(t, err)
	id2, err := store.SaveTranscription(ctx, file.ID, "something else", 0.5, 10)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	tr, err := store.TranscriptionFor(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "bench press", tr.RawText)
	assert.Equal(t, int64(1200), tr.ProcessingTimeMS)

	none, err := store.TranscriptionFor(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSaveVoiceEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	file := testutil.SeedAudioFile(t, store, "", "/a.wav", entities.StatusPending)

	require.NoError(t, store.SaveVoiceEmbedding(ctx, file.ID, []float64{0.6, 0.8}, 0.42))
	require.NoError(t, store.UpdateDuration(ctx, file.ID, 12.5))

	got, err := store.GetAudioFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.8}, got.VoiceEmbedding)
	assert.True(t, got.VoiceExtracted)
	require.NotNil(t, got.VoiceQualityScore)
	assert.InDelta(t, 0.42, *got.VoiceQualityScore, 1e-9)
	require.NotNil(t, got.DurationSeconds)
	assert.InDelta(t, 12.5, *got.DurationSeconds, 1e-9)
}

func TestOverallProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		percents []int
		want     int
	}{
		{"no stages", nil, 0},
		{"all pending", []int{0, 0, 0}, 0},
		{"one done", []int{100, 0, 0}, 33},
		{"two done", []int{100, 100, 0}, 66},
		{"all done", []int{100, 100, 100}, 100},
		{"out of range clamped", []int{150, 100, -20}, 66},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := datastore.OverallProgress(tt.percents...)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}
