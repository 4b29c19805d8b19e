package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"courtclub/internal/config"
	"courtclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")
	logger := zerolog.Nop()

	db, err := NewSQLite(filepath.Join(tempDir, "source.db"), Options{}, &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Insert(context.Background(), models.CollectionReservations, testReservation("res-1", "07:00 AM").Record()))

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	s := NewBackupService(db, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewSQLite(path, Options{}, &logger)
		require.NoError(t, err)
		defer restored.Close()
		records, err := restored.FetchAll(context.Background(), models.CollectionReservations, "")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())
		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
	})
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	db := setupTestDB(t, Options{})
	s := NewBackupService(db, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}

func TestBackupService_SkipsMemoryDatabase(t *testing.T) {
	logger := zerolog.Nop()
	db := setupTestDB(t, Options{})
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: t.TempDir()}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx) // returns immediately for :memory:
}

func TestBackupInterval(t *testing.T) {
	logger := zerolog.Nop()
	s := &BackupService{config: config.BackupConfig{Schedule: "6h"}, logger: &logger}
	assert.Equal(t, 6*time.Hour, s.interval())

	s.config.Schedule = "daily"
	assert.Equal(t, 24*time.Hour, s.interval())
}
