package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

// NewStore returns a migrated SQLite-backed store in a temp directory.
func NewStore(t *testing.T, opts ...datastore.Option) *datastore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "morse.db")
	db, err := gorm.Open(sqlite.Open(datastore.SQLiteDSN(path)), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	store := datastore.New(db, logger.NewDiscard(), opts...)
	require.NoError(t, store.AutoMigrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedUser inserts a user and returns it.
func SeedUser(t *testing.T, store *datastore.Store, deviceUUID string) *entities.User {
	t.Helper()
	user := &entities.User{DeviceUUID: deviceUUID}
	require.NoError(t, store.DB().Create(user).Error)
	return user
}

// SeedAudioFile inserts an AudioFile owned by userID in the given status.
func SeedAudioFile(t *testing.T, store *datastore.Store, userID, path, status string) *entities.AudioFile {
	t.Helper()
	file := &entities.AudioFile{
		UserID:              userID,
		FilePath:            path,
		OriginalFilename:    filepath.Base(path),
		TranscriptionStatus: status,
		Processed:           status == entities.StatusCompleted,
	}
	require.NoError(t, store.DB().Create(file).Error)
	return file
}
