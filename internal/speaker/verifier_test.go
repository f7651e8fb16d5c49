package speaker_test

import (
	"context"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/myaudio"
	"github.com/morse-fitness/morse-worker/internal/speaker"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, samples []float64, rate int) ([]float64, error) {
	args := m.Called(ctx, samples, rate)
	if v := args.Get(0); v != nil {
		return v.([]float64), args.Error(1)
	}
	return nil, args.Error(1)
}

func unit(dim, axis int, scale float64) []float64 {
	v := make([]float64, dim)
	v[axis] = scale
	return v
}

type fixture struct {
	store    *datastore.Store
	user     *entities.User
	file     *entities.AudioFile
	workout  string
	wavePath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	path := testutil.SineWAV(t, "voice.wav", 16000, 200, 2, 0.5)
	user := testutil.SeedUser(t, store, "device-1")
	file := testutil.SeedAudioFile(t, store, user.ID, path, entities.StatusProcessing)

	fileID := file.ID
	id, err := store.SaveWorkout(context.Background(), &entities.Workout{
		AudioFileID: &fileID,
		WorkoutDate: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		Exercises:   []entities.Exercise{{ExerciseName: "Squat", ExerciseType: "strength", Reps: []int{5}}},
	})
	require.NoError(t, err)
	return &fixture{store: store, user: user, file: file, workout: id, wavePath: path}
}

func TestVerifyClaimsOnHighConfidenceMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.store.CreateVoiceProfile(ctx, &entities.VoiceProfile{
		UserID:          fx.user.ID,
		EmbeddingVector: unit(speaker.EmbeddingDim, 3, 1),
	})
	require.NoError(t, err)

	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything, speaker.DefaultSampleRate).
		Return(unit(speaker.EmbeddingDim, 3, 7.5), nil).Once()

	v := speaker.NewVerifier(fx.store, emb, logger.NewDiscard())
	out := v.Verify(ctx, speaker.VerifyRequest{AudioFileID: fx.file.ID, WorkoutID: fx.workout, Path: fx.wavePath})

	require.NoError(t, out.Err)
	assert.True(t, out.Success)
	assert.True(t, out.MatchFound)
	assert.True(t, out.Claimed)
	assert.Equal(t, speaker.TierHigh, out.Tier)
	assert.InDelta(t, 1.0, out.Similarity, 1e-9)
	assert.Equal(t, fx.user.ID, out.UserID)
	emb.AssertExpectations(t)

	w, err := fx.store.GetWorkout(ctx, fx.workout)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimClaimed, w.ClaimStatus)
	assert.Equal(t, fx.user.ID, w.UserID)
	assert.True(t, w.AutoLinked)

	file, err := fx.store.GetAudioFile(ctx, fx.file.ID)
	require.NoError(t, err)
	assert.True(t, file.VoiceExtracted)
	require.Len(t, file.VoiceEmbedding, speaker.EmbeddingDim)
	assert.InDelta(t, 1.0, file.VoiceEmbedding[3], 1e-9, "stored unit-normalized")
	require.NotNil(t, file.VoiceQualityScore)
	assert.InDelta(t, out.Quality, *file.VoiceQualityScore, 1e-9)

	var rows []entities.SpeakerVerification
	require.NoError(t, fx.store.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "high", rows[0].ConfidenceLevel)
	assert.True(t, rows[0].AutoLinked)
}

func TestVerifyRecordsNonMatchingTierWithoutClaim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.store.CreateVoiceProfile(ctx, &entities.VoiceProfile{
		UserID:          fx.user.ID,
		EmbeddingVector: unit(speaker.EmbeddingDim, 0, 1),
	})
	require.NoError(t, err)

	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything, mock.Anything).
		Return(unit(speaker.EmbeddingDim, 1, 1), nil)

	out := speaker.NewVerifier(fx.store, emb, logger.NewDiscard()).
		Verify(ctx, speaker.VerifyRequest{AudioFileID: fx.file.ID, WorkoutID: fx.workout, Path: fx.wavePath})

	require.NoError(t, out.Err)
	assert.True(t, out.Success)
	assert.False(t, out.MatchFound)
	assert.False(t, out.Claimed)
	assert.Equal(t, speaker.TierNoMatch, out.Tier)
	assert.InDelta(t, 0.5, out.Similarity, 1e-9)

	w, err := fx.store.GetWorkout(ctx, fx.workout)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimUnclaimed, w.ClaimStatus)

	var rows []entities.SpeakerVerification
	require.NoError(t, fx.store.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "no_match", rows[0].ConfidenceLevel)
	assert.False(t, rows[0].AutoLinked)
}

func TestVerifyWithoutProfilesLeavesWorkoutUnclaimed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t)

	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything, mock.Anything).
		Return(unit(speaker.EmbeddingDim, 0, 1), nil)

	out := speaker.NewVerifier(fx.store, emb, logger.NewDiscard(), speaker.WithProfileCacheTTL(time.Minute)).
		Verify(ctx, speaker.VerifyRequest{AudioFileID: fx.file.ID, WorkoutID: fx.workout, Path: fx.wavePath})

	assert.True(t, out.Success)
	assert.False(t, out.Claimed)
	assert.Empty(t, out.ProfileID)

	var count int64
	require.NoError(t, fx.store.DB().Model(&entities.SpeakerVerification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerifyDecodesCompressedUploads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t)

	pcm := make([]int16, speaker.DefaultSampleRate*2)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*220*float64(i)/speaker.DefaultSampleRate))
	}
	ffmpeg := testutil.NewFakeTool(t, "ffmpeg", testutil.PCM16(pcm...), "", 0)
	upload := testutil.WriteFile(t, "voice.mp3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"))

	_, err := fx.store.CreateVoiceProfile(ctx, &entities.VoiceProfile{
		UserID:          fx.user.ID,
		EmbeddingVector: unit(speaker.EmbeddingDim, 2, 1),
	})
	require.NoError(t, err)

	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.MatchedBy(func(samples []float64) bool {
		return len(samples) == speaker.DefaultSampleRate*2
	}), speaker.DefaultSampleRate).Return(unit(speaker.EmbeddingDim, 2, 1), nil).Once()

	v := speaker.NewVerifier(fx.store, emb, logger.NewDiscard(),
		speaker.WithAudioReader(myaudio.NewReader(ffmpeg.Path, "", time.Second)))
	out := v.Verify(ctx, speaker.VerifyRequest{AudioFileID: fx.file.ID, WorkoutID: fx.workout, Path: upload})

	require.NoError(t, out.Err)
	assert.True(t, out.Claimed)
	emb.AssertExpectations(t)
	assert.Contains(t, ffmpeg.Args(t), upload)
}

func TestVerifyFailuresAreNonFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t)

	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.External(errors.NewStd("model offline"), "test", "embedding"))

	v := speaker.NewVerifier(fx.store, emb, logger.NewDiscard())

	out := v.Verify(ctx, speaker.VerifyRequest{AudioFileID: fx.file.ID, WorkoutID: fx.workout, Path: fx.wavePath})
	assert.False(t, out.Success)
	require.Error(t, out.Err)
	assert.Equal(t, errors.KindExternalService, errors.KindOf(out.Err))

	out = v.Verify(ctx, speaker.VerifyRequest{AudioFileID: fx.file.ID, WorkoutID: fx.workout, Path: "/does/not/exist.wav"})
	assert.False(t, out.Success)
	require.Error(t, out.Err)
}

func TestHTTPEmbedder(t *testing.T) {
	hc := httpclient.New(&httpclient.Config{DefaultTimeout: 5 * time.Second})
	httpmock.ActivateNonDefault(hc.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodPost, "http://embed.local/embed",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"success":       true,
			"embedding":     []float64{0.1, 0.2, 0.3},
			"quality_score": 0.8,
		}))

	e := speaker.NewHTTPEmbedder("http://embed.local/embed", hc)
	vec, err := e.Embed(context.Background(), []float64{0, 0.5, -0.5}, 16000)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)

	httpmock.RegisterResponder(http.MethodPost, "http://embed.local/embed",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"success": false, "error": "too short"}))
	_, err = e.Embed(context.Background(), []float64{0}, 16000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}
