package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentInsertSameSlot(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewSQLite(dbPath, Options{EnforceUniqueSlot: true}, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			res := testReservation(fmt.Sprintf("res-%d", id), "05:30 PM")
			results <- db.Insert(ctx, models.CollectionReservations, res.Record())
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		// sqlite может вернуть busy вместо нарушения уникальности
		assert.True(t, errorsIsAny(err, domain.ErrDuplicateRecord, domain.ErrStoreUnavailable), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, successCount, "Only one reservation may hold a slot")

	records, err := db.FetchAll(ctx, models.CollectionReservations, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSameSlotAllowedWithoutConstraint(t *testing.T) {
	db := setupTestDB(t, Options{})
	ctx := context.Background()

	require.NoError(t, db.Insert(ctx, models.CollectionReservations, testReservation("res-1", "05:30 PM").Record()))
	require.NoError(t, db.Insert(ctx, models.CollectionReservations, testReservation("res-2", "05:30 PM").Record()))
}
