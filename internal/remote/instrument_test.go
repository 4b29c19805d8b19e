package remote

import (
	"context"
	"testing"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentedPassesThrough(t *testing.T) {
	logger := zerolog.Nop()
	s := Instrument(NewMemoryStore(false), &logger)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, models.CollectionMembers, models.Member{ID: "mem-1", Name: "Lee"}.Record()))
	records, err := s.FetchAll(ctx, models.CollectionMembers, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.NoError(t, s.Update(ctx, models.CollectionMembers, "mem-1", models.Record{"name": "Lee Ann"}))
	require.NoError(t, s.Delete(ctx, models.CollectionMembers, "mem-1"))

	assert.ErrorIs(t, s.Delete(ctx, models.CollectionMembers, "mem-1"), domain.ErrRecordNotFound)
}
