// Package export renders club data as an xlsx workbook for the admin console.
package export

import (
	"fmt"
	"io"
	"time"

	"courtclub/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetReservations = "Reservations"
	SheetWaitlist     = "Waitlist"
	SheetMembers      = "Members"
)

// Data is everything written to the workbook.
type Data struct {
	ClubName     string
	GeneratedAt  time.Time
	Reservations []models.Reservation
	Waitlist     []models.WaitlistEntry
	Members      []models.Member
}

var (
	reservationHeaders = []string{
		"ID", "Date", "Time", "Duration (min)", "Player", "Contact", "Channel", "Player Type", "Total", "Created At",
	}
	waitlistHeaders = []string{"ID", "Name", "Phone", "Email", "Joined At"}
	memberHeaders   = []string{"ID", "Name", "Phone", "Joined At"}
)

// WriteWorkbook builds the workbook and writes it to w.
func WriteWorkbook(w io.Writer, data Data) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	resRows := make([][]interface{}, 0, len(data.Reservations))
	for _, r := range data.Reservations {
		resRows = append(resRows, []interface{}{
			r.ID, r.Date.String(), r.TimeLabel, r.DurationMinutes, r.PlayerName, r.Contact,
			string(r.NotificationChannel), string(r.PlayerType), r.TotalPrice, formatTime(r.CreatedAt),
		})
	}
	wlRows := make([][]interface{}, 0, len(data.Waitlist))
	for _, e := range data.Waitlist {
		wlRows = append(wlRows, []interface{}{e.ID, e.Name, e.Phone, e.Email, formatTime(e.JoinedAt)})
	}
	memRows := make([][]interface{}, 0, len(data.Members))
	for _, m := range data.Members {
		memRows = append(memRows, []interface{}{m.ID, m.Name, m.Phone, formatTime(m.JoinedAt)})
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]interface{}
	}{
		{SheetReservations, reservationHeaders, resRows},
		{SheetWaitlist, waitlistHeaders, wlRows},
		{SheetMembers, memberHeaders, memRows},
	}
	for i, s := range sheets {
		index, err := f.NewSheet(s.name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, s.name, s.headers, s.rows, headerStyle); err != nil {
			return err
		}
	}

	if data.ClubName != "" {
		_ = f.SetDocProps(&excelize.DocProperties{
			Title:   fmt.Sprintf("%s export", data.ClubName),
			Creator: data.ClubName,
			Created: data.GeneratedAt.Format(time.RFC3339),
		})
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", cell, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)

	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", r+2, sheet, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", lastCol, 18)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
