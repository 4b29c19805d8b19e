package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"courtclub/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName = "Reservations"
	lastColumn       = "J"
	timestampLayout  = "2006-01-02 15:04:05"
)

var ErrRowNotFound = errors.New("reservation row not found")

var scheduleHeaders = []interface{}{
	"ID", "Date", "Time", "Duration (min)", "Player", "Contact", "Channel", "Player Type", "Total", "Created At",
}

// ScheduleSheet mirrors reservations into a Google spreadsheet for the front desk.
type ScheduleSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

func NewScheduleSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*ScheduleSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newScheduleSheet(srv, spreadsheetID, sheetName), nil
}

func newScheduleSheet(srv *sheets.Service, spreadsheetID, sheetName string) *ScheduleSheet {
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	return &ScheduleSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
	}
}

func (s *ScheduleSheet) rng(a1 string) string {
	return s.sheetName + "!" + a1
}

// TestConnection проверяет подключение к таблице
func (s *ScheduleSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail возвращает email сервисного аккаунта
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *ScheduleSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id := fmt.Sprint(row[0]); id != "" && id != "ID" {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

func (s *ScheduleSheet) AppendReservation(ctx context.Context, res *models.Reservation) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(res)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rng("A:A"), valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpsertReservation updates an existing row or appends a new one if not found.
func (s *ScheduleSheet) UpsertReservation(ctx context.Context, res *models.Reservation) error {
	if res == nil {
		return fmt.Errorf("reservation is nil")
	}

	rowIdx, err := s.FindReservationRow(ctx, res.ID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendReservation(ctx, res)
		}
		return err
	}

	rangeData := s.rng(fmt.Sprintf("A%d:%s%d", rowIdx, lastColumn, rowIdx))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(res)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// DeleteReservationRow clears the row of a deleted reservation.
func (s *ScheduleSheet) DeleteReservationRow(ctx context.Context, reservationID string) error {
	rowIdx, err := s.FindReservationRow(ctx, reservationID)
	if err != nil {
		return err
	}

	rangeData := s.rng(fmt.Sprintf("A%d:%s%d", rowIdx, lastColumn, rowIdx))
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCacheRow(reservationID)
	}
	return err
}

// FindReservationRow locates the 1-based row of a reservation id in column A.
func (s *ScheduleSheet) FindReservationRow(ctx context.Context, reservationID string) (int, error) {
	if reservationID == "" {
		return 0, fmt.Errorf("reservation id is required")
	}

	if row, ok := s.getCachedRow(reservationID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == reservationID {
			rowIdx := i + 1 // строки в таблице нумеруются с 1
			s.setCachedRow(reservationID, rowIdx)
			return rowIdx, nil
		}
	}

	return 0, ErrRowNotFound
}

// ReplaceAll clears the sheet and writes the header plus every reservation.
func (s *ScheduleSheet) ReplaceAll(ctx context.Context, reservations []models.Reservation) error {
	values := [][]interface{}{scheduleHeaders}
	for i := range reservations {
		values = append(values, reservationRowValues(&reservations[i]))
	}

	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rng("A:"+lastColumn), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	rangeData := s.rng(fmt.Sprintf("A1:%s%d", lastColumn, len(values)))
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int, len(reservations))
	for i := range reservations {
		s.rowCache[reservations[i].ID] = i + 2
	}
	return nil
}

func (s *ScheduleSheet) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *ScheduleSheet) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *ScheduleSheet) deleteCacheRow(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

func reservationRowValues(res *models.Reservation) []interface{} {
	created := ""
	if !res.CreatedAt.IsZero() {
		created = res.CreatedAt.Format(timestampLayout)
	}
	return []interface{}{
		res.ID,
		res.Date.String(),
		res.TimeLabel,
		res.DurationMinutes,
		res.PlayerName,
		res.Contact,
		string(res.NotificationChannel),
		string(res.PlayerType),
		res.TotalPrice,
		created,
	}
}
