package export

import (
	"bytes"
	"testing"
	"time"

	"courtclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	date, err := models.ParseDate("2026-10-19")
	require.NoError(t, err)
	joined := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	err = WriteWorkbook(&buf, Data{
		ClubName:    "Test Club",
		GeneratedAt: joined,
		Reservations: []models.Reservation{{
			ID: "res-1", Date: date, TimeLabel: "08:30 AM", DurationMinutes: 90,
			PlayerName: "Julianne Moore", Contact: "j.moore@example.com",
			NotificationChannel: models.ChannelEmail, PlayerType: models.PlayerMember, TotalPrice: 750,
		}},
		Waitlist: []models.WaitlistEntry{{ID: "wl-1", Name: "Ann", Phone: "+1555", JoinedAt: joined}},
		Members:  []models.Member{{ID: "mem-1", Name: "Bob", Phone: "+1666", JoinedAt: joined}},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetReservations, SheetWaitlist, SheetMembers}, f.GetSheetList())

	rows, err := f.GetRows(SheetReservations)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "res-1", rows[1][0])
	assert.Equal(t, "2026-10-19", rows[1][1])
	assert.Equal(t, "08:30 AM", rows[1][2])
	assert.Equal(t, "750", rows[1][8])

	rows, err = f.GetRows(SheetWaitlist)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-10-01 09:30", rows[1][4])

	rows, err = f.GetRows(SheetMembers)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[1][1])
}

func TestWriteWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, Data{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetMembers)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
