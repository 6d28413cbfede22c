package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/calendar"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/models"
	"salonbook/internal/repository"
	"salonbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func everyDay(start, end models.Clock) models.WorkingHours {
	hours := models.WorkingHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[d] = models.DayHours{Available: true, Start: start, End: end}
	}
	return hours
}

func newIntegrationHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	seeded, err := db.SeedCatalog(context.Background(), &config.Catalog{
		Services: []config.CatalogService{{Key: "cut", Name: "Cut", Price: 2500, Duration: 30}},
		Places: []config.CatalogPlace{{
			Name:         "Studio",
			WorkingHours: everyDay(models.NewClock(9, 0), models.NewClock(17, 0)),
			Services:     []config.CatalogPlaceService{{Service: "cut"}},
			Employees:    []config.CatalogEmployee{{Name: "E"}},
		}},
	})
	require.NoError(t, err)
	require.True(t, seeded)

	selector, err := service.NewSelector(service.StrategyFirstFree)
	require.NoError(t, err)

	schedule := calendar.NewScheduleCalendar(db, models.DefaultSlotMinutes)
	staff := calendar.NewEmployeeCalendar(db)
	resolver := availability.NewCachedResolver(
		availability.NewResolver(db, db, schedule, staff, &logger),
		repository.NewMemoryAvailabilityCache(time.Minute),
		&logger,
	)
	svc := service.NewBookingService(db, db, db, schedule, staff, service.NewConflictGuard(selector),
		resolver, nil, service.BookingServiceConfig{MaxAdvanceDays: 30}, &logger)

	return NewHTTPServer(config.APIConfig{}, resolver, svc, db, &logger).Handler()
}

func TestIntegrationBookingFlow(t *testing.T) {
	h := newIntegrationHandler(t)
	day := time.Now().UTC().AddDate(0, 0, 1).Format(models.DateLayout)
	availabilityURL := "/api/v1/availability?place_id=1&date=" + day

	var view availability.Result
	rec := do(t, h, http.MethodGet, availabilityURL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.AvailableSlots, 16)

	body := `{"place_id":1,"any_employee_selected":true,"customer_name":"Ann","booking_date":"` + day +
		`","booking_time":"10:00","service_ids":[1]}`
	rec = do(t, h, http.MethodPost, "/api/v1/bookings", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booking models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, int64(2500), booking.TotalPrice)

	// Cached view must have been invalidated by the write.
	rec = do(t, h, http.MethodGet, availabilityURL, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotContains(t, view.AvailableSlots, models.NewClock(10, 0))
	assert.Equal(t, []models.Clock{models.NewClock(10, 0)}, view.BookedSlots)

	rec = do(t, h, http.MethodPost, "/api/v1/bookings", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_employees_available", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/bookings/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = do(t, h, http.MethodPut, "/api/v1/bookings/1", `{"status":"confirmed"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, availabilityURL, "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Contains(t, view.AvailableSlots, models.NewClock(10, 0))

	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
