package repository

import (
	"context"
	"testing"
	"time"

	"courtclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetDraft", func(t *testing.T) {
		draft := models.NewBookingDraft("sess-1", draftDay)
		draft.Contact = "ana@example.com"
		require.NoError(t, repo.SetDraft(ctx, draft))

		got, err := repo.GetDraft(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, draft, got)

		// stored value is a copy
		got.Contact = "changed"
		again, _ := repo.GetDraft(ctx, "sess-1")
		assert.Equal(t, "ana@example.com", again.Contact)
	})

	t.Run("ClearDraft", func(t *testing.T) {
		require.NoError(t, repo.ClearDraft(ctx, "sess-1"))
		got, _ := repo.GetDraft(ctx, "sess-1")
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		short := NewMemoryStateRepository(10 * time.Millisecond)
		require.NoError(t, short.SetDraft(ctx, models.NewBookingDraft("s", draftDay)))
		time.Sleep(20 * time.Millisecond)
		got, err := short.GetDraft(ctx, "s")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "chat:sess-4"
		allowed, _ := repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.False(t, allowed)

		// Wait for expiry
		time.Sleep(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Second)
		assert.True(t, allowed)
	})
}
