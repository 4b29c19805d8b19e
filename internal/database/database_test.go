package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = models.Date{Year: 2025, Month: time.September, Day: 12}

func setupTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewSQLite(":memory:", opts, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testReservation(id, label string) models.Reservation {
	return models.Reservation{
		ID:                  id,
		Date:                testDay,
		TimeLabel:           label,
		DurationMinutes:     90,
		PlayerName:          "Ana",
		Contact:             "ana@example.com",
		NotificationChannel: models.ChannelEmail,
		PlayerType:          models.PlayerGuest,
		TotalPrice:          1400,
		CreatedAt:           time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestNewSQLite_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewSQLite(dbPath, Options{}, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestDB_ReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "club.db")
	logger := zerolog.Nop()

	db, err := NewSQLite(dbPath, Options{EnforceUniqueSlot: true}, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Insert(context.Background(), models.CollectionReservations, testReservation("res-1", "07:00 AM").Record()))
	db.Close()

	db, err = NewSQLite(dbPath, Options{EnforceUniqueSlot: true}, &logger)
	require.NoError(t, err)
	defer db.Close()

	records, err := db.FetchAll(context.Background(), models.CollectionReservations, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	_ = os.Remove(dbPath)
}

func TestDB_ReservationsRoundTrip(t *testing.T) {
	db := setupTestDB(t, Options{})
	ctx := context.Background()

	later := testReservation("res-2", "04:00 PM")
	later.Date = testDay.AddDays(1)
	require.NoError(t, db.Insert(ctx, models.CollectionReservations, later.Record()))
	want := testReservation("res-1", "10:00 AM")
	require.NoError(t, db.Insert(ctx, models.CollectionReservations, want.Record()))

	records, err := db.FetchAll(ctx, models.CollectionReservations, "date")
	require.NoError(t, err)
	require.Len(t, records, 2)

	got, err := models.ReservationFromRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, want, got, "ordered by date ascending")
}

func TestDB_UpdateAndDelete(t *testing.T) {
	db := setupTestDB(t, Options{})
	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, models.CollectionReservations, testReservation("res-1", "10:00 AM").Record()))

	err := db.Update(ctx, models.CollectionReservations, "res-1", models.Record{"player_name": "Ana Maria", "total_price": 1200.0})
	require.NoError(t, err)

	records, err := db.FetchAll(ctx, models.CollectionReservations, "")
	require.NoError(t, err)
	got, err := models.ReservationFromRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.PlayerName)
	assert.Equal(t, 1200.0, got.TotalPrice)

	assert.ErrorIs(t, db.Update(ctx, models.CollectionReservations, "missing", models.Record{"player_name": "x"}), domain.ErrRecordNotFound)
	assert.ErrorIs(t, db.Update(ctx, models.CollectionReservations, "res-1", models.Record{"bogus": "x"}), domain.ErrRecordRejected)
	assert.ErrorIs(t, db.Update(ctx, models.CollectionReservations, "res-1", models.Record{}), domain.ErrRecordRejected)

	require.NoError(t, db.Delete(ctx, models.CollectionReservations, "res-1"))
	assert.ErrorIs(t, db.Delete(ctx, models.CollectionReservations, "res-1"), domain.ErrRecordNotFound)
}

func TestDB_PeopleCollections(t *testing.T) {
	db := setupTestDB(t, Options{})
	ctx := context.Background()
	joined := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	entry := models.WaitlistEntry{ID: "wl-1", Name: "Kim", Phone: "+1555", Email: "kim@example.com", JoinedAt: joined}
	require.NoError(t, db.Insert(ctx, models.CollectionWaitlist, entry.Record()))
	member := models.Member{ID: "mem-1", Name: "Lee", Phone: "777", JoinedAt: joined}
	require.NoError(t, db.Insert(ctx, models.CollectionMembers, member.Record()))

	records, err := db.FetchAll(ctx, models.CollectionWaitlist, "joined_at")
	require.NoError(t, err)
	require.Len(t, records, 1)
	gotEntry, err := models.WaitlistEntryFromRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, entry, gotEntry)

	records, err = db.FetchAll(ctx, models.CollectionMembers, "")
	require.NoError(t, err)
	gotMember, err := models.MemberFromRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, member, gotMember)
}

func TestDB_RejectsBadInput(t *testing.T) {
	db := setupTestDB(t, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, db.Insert(ctx, "courts", models.Record{"id": "x"}), domain.ErrRecordRejected)
	assert.ErrorIs(t, db.Insert(ctx, models.CollectionMembers, models.Record{"name": "no id"}), domain.ErrRecordRejected)
	assert.ErrorIs(t, db.Insert(ctx, models.CollectionMembers, models.Record{"id": "m", "age": 3}), domain.ErrRecordRejected)

	_, err := db.FetchAll(ctx, models.CollectionMembers, "name; DROP TABLE members")
	assert.ErrorIs(t, err, domain.ErrRecordRejected)
}

func TestDB_DuplicateID(t *testing.T) {
	db := setupTestDB(t, Options{})
	ctx := context.Background()
	require.NoError(t, db.Insert(ctx, models.CollectionReservations, testReservation("res-1", "10:00 AM").Record()))

	err := db.Insert(ctx, models.CollectionReservations, testReservation("res-1", "01:00 PM").Record())
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
}

func TestDB_Rebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", pg.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "DELETE FROM t WHERE id = ?", lite.rebind("DELETE FROM t WHERE id = ?"))
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t, Options{})
	assert.NoError(t, db.PingContext(context.Background()))
}
