package datastore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

func seedSession(t *testing.T, store *datastore.Store, userID, status string) *entities.WorkoutSession {
	t.Helper()
	session := &entities.WorkoutSession{
		UserID:        userID,
		SessionDate:   time.Now().UTC(),
		SessionStatus: status,
	}
	require.NoError(t, store.DB().Create(session).Error)
	return session
}

func link(t *testing.T, store *datastore.Store, sessionID, fileID string, order int, offset *float64) {
	t.Helper()
	require.NoError(t, store.DB().Create(&entities.SessionAudioFile{
		SessionID:         sessionID,
		AudioFileID:       fileID,
		RecordingOrder:    order,
		TimeOffsetMinutes: offset,
	}).Error)
}

func TestPendingSessionsRequireOneCompletedRecording(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	user := testutil.SeedUser(t, store, "device-9")

	ready := seedSession(t, store, user.ID, entities.StatusPending)
	done := testutil.SeedAudioFile(t, store, user.ID, "/1.wav", entities.StatusCompleted)
	inFlight := testutil.SeedAudioFile(t, store, user.ID, "/2.wav", entities.StatusProcessing)
	link(t, store, ready.ID, done.ID, 1, nil)
	link(t, store, ready.ID, inFlight.ID, 2, nil)

	notReady := seedSession(t, store, user.ID, entities.StatusPending)
	waiting := testutil.SeedAudioFile(t, store, user.ID, "/3.wav", entities.StatusPending)
	link(t, store, notReady.ID, waiting.ID, 1, nil)

	finished := seedSession(t, store, user.ID, entities.StatusCompleted)
	other := testutil.SeedAudioFile(t, store, user.ID, "/4.wav", entities.StatusCompleted)
	link(t, store, finished.ID, other.ID, 1, nil)

	rows, err := store.PendingSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ready.ID, rows[0].ID)
	assert.Equal(t, "device-9", rows[0].DeviceUUID)
}

func TestSessionRecordingsOrdered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	session := seedSession(t, store, "", entities.StatusPending)

	offset := 12.0
	ids := make([]string, 3)
	for i, order := range []int{3, 1, 2} {
		f := testutil.SeedAudioFile(t, store, "", "/r.wav", entities.StatusCompleted)
		ids[order-1] = f.ID
		var off *float64
		if order == 2 {
			off = &offset
		}
		link(t, store, session.ID, f.ID, order, off)
		if i != 1 {
			_, err := store.SaveTranscription(ctx, f.ID, "text", 0.8, 1)
			require.NoError(t, err)
		}
	}

	rows, err := store.SessionRecordings(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, i+1, r.RecordingOrder)
		assert.Equal(t, ids[i], r.AudioFileID)
	}
	assert.Nil(t, rows[0].RawText, "order 1 has no transcription")
	require.NotNil(t, rows[1].TimeOffsetMinutes)
	assert.InDelta(t, 12.0, *rows[1].TimeOffsetMinutes, 1e-9)
}

func TestUpdateSessionStatusNeverLeavesCompleted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	session := seedSession(t, store, "", entities.StatusPending)

	notes := "Processed 2 exercises from 2 recordings"
	require.NoError(t, store.UpdateSessionStatus(ctx, session.ID, entities.StatusProcessing, nil))
	require.NoError(t, store.UpdateSessionStatus(ctx, session.ID, entities.StatusCompleted, &notes))
	require.NoError(t, store.SetSessionExerciseCount(ctx, session.ID, 2))
	require.NoError(t, store.UpdateSessionStatus(ctx, session.ID, entities.StatusFailed, nil))

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, got.SessionStatus)
	assert.Equal(t, 2, got.TotalExercises)
	require.NotNil(t, got.Notes)
	assert.Equal(t, notes, *got.Notes)
}
