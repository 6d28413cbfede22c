package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"salonbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	seed(t, db)

	storagePath := filepath.Join(dir, "backups")
	s := NewBackupService(db, config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		place, err := restored.GetPlace(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Studio", place.Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		unrelated := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("Interval", func(t *testing.T) {
		assert.Equal(t, 24*time.Hour, s.interval())
		s.config.Schedule = "1h"
		assert.Equal(t, time.Hour, s.interval())
		s.config.Schedule = "weekly"
		assert.Equal(t, 24*time.Hour, s.interval())
	})
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(setupTestDB(t), config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
