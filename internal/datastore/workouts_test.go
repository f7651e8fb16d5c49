package datastore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func benchWorkout(userID, fileID string) *entities.Workout {
	return &entities.Workout{
		UserID:      userID,
		AudioFileID: ptr(fileID),
		WorkoutDate: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		Exercises: []entities.Exercise{{
			ExerciseName: "Bench Press",
			ExerciseType: "strength",
			Sets:         ptr(1),
			Reps:         []int{5},
			WeightLbs:    []float64{185},
		}},
	}
}

func TestSaveWorkoutWritesExercisesAndProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	user := testutil.SeedUser(t, store, "device-1")
	file := testutil.SeedAudioFile(t, store, user.ID, "/a.wav", entities.StatusProcessing)

	id, err := store.SaveWorkout(ctx, benchWorkout(user.ID, file.ID))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	w, err := store.GetWorkout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimUnclaimed, w.ClaimStatus)
	assert.Equal(t, 1, w.TotalExercises)
	require.Len(t, w.Exercises, 1)
	assert.Equal(t, "Bench Press", w.Exercises[0].ExerciseName)
	assert.Equal(t, []int{5}, w.Exercises[0].Reps)
	assert.Equal(t, []float64{185}, w.Exercises[0].WeightLbs)
	assert.Equal(t, 1, w.Exercises[0].OrderInWorkout)

	var progress []entities.UserProgress
	require.NoError(t, store.DB().Where("workout_id = ?", id).Order("metric_type").Find(&progress).Error)
	require.Len(t, progress, 2)
	assert.Equal(t, entities.MetricReps, progress[0].MetricType)
	assert.InDelta(t, 5, progress[0].MetricValue, 1e-9)
	assert.Equal(t, entities.MetricWeight, progress[1].MetricType)
	assert.InDelta(t, 185, progress[1].MetricValue, 1e-9)

	var u entities.User
	require.NoError(t, store.DB().First(&u, "id = ?", user.ID).Error)
	assert.Equal(t, 1, u.TotalWorkouts)

	linked, err := store.WorkoutIDForAudioFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, id, linked)
}

func TestSaveWorkoutRequiresExactlyOneLink(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore(t)

	w := benchWorkout("", "file")
	w.SessionID = ptr("session")
	_, err := store.SaveWorkout(context.Background(), w)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	w = benchWorkout("", "file")
	w.AudioFileID = nil
	_, err = store.SaveWorkout(context.Background(), w)
	require.Error(t, err)
}

func TestProgressRows(t *testing.T) {
	t.Parallel()

	w := &entities.Workout{
		UserID:      "u1",
		WorkoutDate: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		Exercises: []entities.Exercise{
			{ExerciseName: "Squat", Reps: []int{5, 8, 3}, WeightLbs: []float64{0, 225, 245}},
			{ExerciseName: "Plank", WeightLbs: []float64{0, 0}},
			{ExerciseName: "Run", DurationMinutes: ptr(30.0), DistanceMiles: ptr(3.1)},
			{ExerciseName: "Walk", DurationMinutes: ptr(0.0)},
		},
	}
	w.ID = "w1"

	rows := datastore.ProgressRows(w)
	require.Len(t, rows, 4)

	assert.Equal(t, "Squat", rows[0].ExerciseName)
	assert.Equal(t, entities.MetricWeight, rows[0].MetricType)
	assert.InDelta(t, 245, rows[0].MetricValue, 1e-9)
	assert.Equal(t, entities.MetricReps, rows[1].MetricType)
	assert.InDelta(t, 8, rows[1].MetricValue, 1e-9)
	assert.Equal(t, entities.MetricDuration, rows[2].MetricType)
	assert.Equal(t, entities.MetricDistance, rows[3].MetricType)
	for _, r := range rows {
		assert.Equal(t, "w1", r.WorkoutID)
		assert.Equal(t, "u1", r.UserID)
	}
}

func TestClaimWorkoutOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	file := testutil.SeedAudioFile(t, store, "", "/a.wav", entities.StatusProcessing)
	id, err := store.SaveWorkout(ctx, benchWorkout("", file.ID))
	require.NoError(t, err)

	ok, err := store.ClaimWorkout(ctx, id, "user-a", 0.97)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimWorkout(ctx, id, "user-b", 0.99)
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := store.GetWorkout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimClaimed, w.ClaimStatus)
	require.NotNil(t, w.ClaimedBy)
	assert.Equal(t, "user-a", *w.ClaimedBy)
	require.NotNil(t, w.ClaimMethod)
	assert.Equal(t, entities.ClaimMethodVoiceMatch, *w.ClaimMethod)
	assert.True(t, w.AutoLinked)

	var claims int64
	require.NoError(t, store.DB().Model(&entities.WorkoutClaim{}).Where("workout_id = ?", id).Count(&claims).Error)
	assert.Equal(t, int64(1), claims)
}

func TestClaimWorkoutConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	file := testutil.SeedAudioFile(t, store, "", "/a.wav", entities.StatusProcessing)
	id, err := store.SaveWorkout(ctx, benchWorkout("", file.ID))
	require.NoError(t, err)

	const contenders = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		errs  []error
		start = make(chan struct{})
	)
	for i := range contenders {
		wg.Go(func() {
			<-start
			ok, err := store.ClaimWorkout(ctx, id, "user-"+string(rune('a'+i)), 0.96)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				wins++
			}
		})
	}
	close(start)
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, wins)
}

func TestDeleteExpiredUnclaimed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	user := testutil.SeedUser(t, store, "d")

	oldFile := testutil.SeedAudioFile(t, store, user.ID, "/old.wav", entities.StatusCompleted)
	oldID, err := store.SaveWorkout(ctx, benchWorkout(user.ID, oldFile.ID))
	require.NoError(t, err)

	claimedFile := testutil.SeedAudioFile(t, store, user.ID, "/claimed.wav", entities.StatusCompleted)
	claimedID, err := store.SaveWorkout(ctx, benchWorkout(user.ID, claimedFile.ID))
	require.NoError(t, err)
	_, err = store.ClaimWorkout(ctx, claimedID, user.ID, 0.99)
	require.NoError(t, err)

	freshFile := testutil.SeedAudioFile(t, store, user.ID, "/fresh.wav", entities.StatusCompleted)
	freshID, err := store.SaveWorkout(ctx, benchWorkout(user.ID, freshFile.ID))
	require.NoError(t, err)

	past := time.Now().UTC().AddDate(0, 0, -40)
	require.NoError(t, store.DB().Model(&entities.Workout{}).
		Where("id IN ?", []string{oldID, claimedID}).
		Update("created_at", past).Error)

	removed, err := store.DeleteExpiredUnclaimed(ctx, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetWorkout(ctx, oldID)
	assert.True(t, errors.IsNotFound(err))

	var leftovers int64
	require.NoError(t, store.DB().Model(&entities.Exercise{}).Where("workout_id = ?", oldID).Count(&leftovers).Error)
	assert.Zero(t, leftovers)
	require.NoError(t, store.DB().Model(&entities.UserProgress{}).Where("workout_id = ?", oldID).Count(&leftovers).Error)
	assert.Zero(t, leftovers)

	for _, id := range []string{claimedID, freshID} {
		_, err := store.GetWorkout(ctx, id)
		assert.NoError(t, err)
	}
}

func TestDeleteExpiredUnclaimedSparesWorkoutClaimedMidSweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := testutil.NewStore(t)
	user := testutil.SeedUser(t, store, "d")

	expiredFile := testutil.SeedAudioFile(t, store, user.ID, "/expired.wav", entities.StatusCompleted)
	expiredID, err := store.SaveWorkout(ctx, benchWorkout(user.ID, expiredFile.ID))
	require.NoError(t, err)

	racedFile := testutil.SeedAudioFile(t, store, user.ID, "/raced.wav", entities.StatusCompleted)
	racedID, err := store.SaveWorkout(ctx, benchWorkout(user.ID, racedFile.ID))
	require.NoError(t, err)

	require.NoError(t, store.DB().Model(&entities.Workout{}).
		Where("id IN ?", []string{expiredID, racedID}).
		Update("created_at", time.Now().UTC().AddDate(0, 0, -40)).Error)

	// Claim one candidate after the sweep has picked its ids but before
	// anything is deleted.
	var (
		once     sync.Once
		claimErr error
	)
	require.NoError(t, store.DB().Callback().Delete().Before("gorm:delete").
		Register("test:claim_during_sweep", func(db *gorm.DB) {
			once.Do(func() {
				claimErr = db.Session(&gorm.Session{NewDB: true}).
					Model(&entities.Workout{}).
					Where("id = ?", racedID).
					Update("claim_status", entities.ClaimClaimed).Error
			})
		}))

	removed, err := store.DeleteExpiredUnclaimed(ctx, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.NoError(t, claimErr)
	assert.Equal(t, int64(1), removed)

	_, err = store.GetWorkout(ctx, expiredID)
	assert.True(t, errors.IsNotFound(err))

	raced, err := store.GetWorkout(ctx, racedID)
	require.NoError(t, err)
	assert.Equal(t, entities.ClaimClaimed, raced.ClaimStatus)

	var count int64
	require.NoError(t, store.DB().Model(&entities.Exercise{}).Where("workout_id = ?", racedID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "claimed workout keeps its exercises")
	require.NoError(t, store.DB().Model(&entities.UserProgress{}).Where("workout_id = ?", racedID).Count(&count).Error)
	assert.Positive(t, count, "claimed workout keeps its progress")

	require.NoError(t, store.DB().Model(&entities.Exercise{}).Where("workout_id = ?", expiredID).Count(&count).Error)
	assert.Zero(t, count)
}
