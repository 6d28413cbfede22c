package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"salonbook/internal/events"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Bookings"

var errRowNotFound = errors.New("booking row not found")

// BookingSheet mirrors bookings into one Google Sheets tab, one row per
// booking keyed by the id in column A.
type BookingSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

// NewBookingSheet authenticates with a service-account credentials file.
func NewBookingSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*BookingSheet, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newBookingSheet(srv, spreadsheetID, sheetName), nil
}

func newBookingSheet(srv *sheets.Service, spreadsheetID, sheetName string) *BookingSheet {
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	return &BookingSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[int64]int),
	}
}

// TestConnection reads the header cell.
func (s *BookingSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache indexes every booking id already in column A.
func (s *BookingSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read booking ids: %w", err)
	}

	index := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id, ok := rowID(row); ok {
			index[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = index
	s.cacheMu.Unlock()
	return nil
}

// UpsertBooking rewrites the booking's row, appending one when absent.
func (s *BookingSheet) UpsertBooking(ctx context.Context, p events.BookingEventPayload, updatedAt time.Time) error {
	if p.BookingID == 0 {
		return fmt.Errorf("booking id is required")
	}

	values := &sheets.ValueRange{Values: [][]interface{}{bookingRowValues(p, updatedAt)}}

	rowIdx, err := s.findBookingRow(ctx, p.BookingID)
	if errors.Is(err, errRowNotFound) {
		return s.appendBooking(ctx, p.BookingID, values)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:J%d", s.sheetName, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, values).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update row %d: %w", rowIdx, err)
	}
	return nil
}

func (s *BookingSheet) appendBooking(ctx context.Context, bookingID int64, values *sheets.ValueRange) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append booking %d: %w", bookingID, err)
	}

	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(bookingID, row)
		}
	}
	return nil
}

// findBookingRow returns the 1-based row of bookingID.
func (s *BookingSheet) findBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}
	if err := s.WarmUpCache(ctx); err != nil {
		return 0, err
	}
	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}
	return 0, errRowNotFound
}

func rowID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return id, err == nil
	}
	return 0, false
}

// firstRow parses the row number out of a range such as "Bookings!A10:J10".
func firstRow(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	a1, _, _ = strings.Cut(a1, ":")
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	return row, err == nil && row > 0
}

func (s *BookingSheet) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *BookingSheet) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func bookingRowValues(p events.BookingEventPayload, updatedAt time.Time) []interface{} {
	return []interface{}{
		p.BookingID,
		p.PlaceID,
		p.EmployeeID,
		p.CustomerName,
		p.BookingDate,
		p.BookingTime,
		p.Status,
		p.TotalPrice,
		p.TotalDuration,
		updatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
