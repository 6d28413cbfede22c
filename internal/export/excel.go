package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/logging"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// MaxRangeDays bounds one export.
const MaxRangeDays = 92

const (
	listSheet     = "Bookings"
	scheduleSheet = "Schedule"
	dateHeader    = "02.01"
)

// BookingSource lists bookings of a place over a date range.
type BookingSource interface {
	ListBookingsInRange(ctx context.Context, placeID int64, from, to time.Time) ([]models.Booking, error)
}

// Exporter renders bookings of one place as an xlsx workbook.
type Exporter struct {
	bookings BookingSource
	catalog  domain.CatalogReader
	logger   *zerolog.Logger
}

func NewExporter(bookings BookingSource, catalog domain.CatalogReader, logger *zerolog.Logger) *Exporter {
	return &Exporter{bookings: bookings, catalog: catalog, logger: logging.Component(logger, "export")}
}

// WriteBookings writes a workbook with the booking list and a per-employee
// schedule grid of active bookings.
func (e *Exporter) WriteBookings(ctx context.Context, w io.Writer, placeID int64, from, to time.Time) error {
	from, to = models.DateOf(from), models.DateOf(to)
	if to.Before(from) {
		return domain.Validationf("range end %s is before start %s", to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxRangeDays {
		return domain.Validationf("range of %d days exceeds %d", days, MaxRangeDays)
	}

	place, err := e.catalog.GetPlace(ctx, placeID)
	if err != nil {
		return err
	}
	employees, err := e.catalog.ListActiveEmployees(ctx, placeID)
	if err != nil {
		return err
	}
	bookings, err := e.bookings.ListBookingsInRange(ctx, placeID, from, to)
	if err != nil {
		return err
	}

	names := make(map[int64]string, len(employees))
	for _, emp := range employees {
		names[emp.ID] = emp.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(listSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := writeList(f, place, from, to, bookings, names); err != nil {
		return err
	}

	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeSchedule(f, from, to, employees, bookings); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}

	e.logger.Info().
		Int64("place_id", placeID).
		Str("from", from.Format(models.DateLayout)).
		Str("to", to.Format(models.DateLayout)).
		Int("bookings", len(bookings)).
		Msg("bookings exported")
	return nil
}

func writeList(f *excelize.File, place *models.Place, from, to time.Time, bookings []models.Booking, names map[int64]string) error {
	title := fmt.Sprintf("%s: %s - %s", place.Name, from.Format("02.01.2006"), to.Format("02.01.2006"))
	_ = f.SetCellValue(listSheet, "A1", title)
	_ = f.MergeCell(listSheet, "A1", "J1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(listSheet, "A1", "A1", titleStyle)

	header := []interface{}{"ID", "Date", "Time", "Employee", "Customer", "Phone", "Email", "Status", "Minutes", "Total"}
	if err := f.SetSheetRow(listSheet, "A2", &header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(listSheet, "A2", "J2", headerStyle)

	for i := range bookings {
		b := &bookings[i]
		employee := names[b.EmployeeID]
		if employee == "" {
			employee = fmt.Sprintf("#%d", b.EmployeeID)
		}
		row := []interface{}{
			b.ID,
			b.DateString(),
			b.Time.String(),
			employee,
			b.CustomerName,
			b.CustomerPhone,
			b.CustomerEmail,
			b.Status,
			b.TotalDuration,
			float64(b.TotalPrice) / 100,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(listSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing booking %d: %w", b.ID, err)
		}
	}

	_ = f.SetColWidth(listSheet, "A", "C", 12)
	_ = f.SetColWidth(listSheet, "D", "G", 22)
	_ = f.SetColWidth(listSheet, "H", "J", 12)
	return nil
}

// writeSchedule lays employees down column A and dates across row 1; each
// cell counts the employee's active bookings that day.
func writeSchedule(f *excelize.File, from, to time.Time, employees []models.Employee, bookings []models.Booking) error {
	dateCols := make(map[string]int)
	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 1)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format(dateHeader))
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(col-1, 1)
	_ = f.SetCellStyle(scheduleSheet, "B1", lastHeader, headerStyle)

	counts := make(map[int64]map[string]int)
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		if counts[b.EmployeeID] == nil {
			counts[b.EmployeeID] = make(map[string]int)
		}
		counts[b.EmployeeID][b.DateString()]++
	}

	nameStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, emp := range employees {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheet, cell, emp.Name)
		_ = f.SetCellStyle(scheduleSheet, cell, cell, nameStyle)

		for date, n := range counts[emp.ID] {
			c, ok := dateCols[date]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c, row)
			if err := f.SetCellValue(scheduleSheet, cell, n); err != nil {
				return fmt.Errorf("error writing schedule: %w", err)
			}
		}
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 25)
	return nil
}
