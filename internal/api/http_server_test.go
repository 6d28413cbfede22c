package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAvailability struct {
	last availability.Query
	res  *availability.Result
	err  error
}

func (f *fakeAvailability) GetAvailableSlots(_ context.Context, q availability.Query) (*availability.Result, error) {
	f.last = q
	return f.res, f.err
}

type fakeBookings struct {
	created  service.CreateBookingRequest
	updated  service.UpdateBookingRequest
	booking  *models.Booking
	err      error
	canceled int64
}

func (f *fakeBookings) CreateBooking(_ context.Context, req service.CreateBookingRequest) (*models.Booking, error) {
	f.created = req
	return f.booking, f.err
}

func (f *fakeBookings) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.booking == nil || f.booking.ID != id {
		return nil, domain.NotFoundf("booking %d", id)
	}
	return f.booking, nil
}

func (f *fakeBookings) UpdateBooking(_ context.Context, _ int64, req service.UpdateBookingRequest) (*models.Booking, error) {
	f.updated = req
	return f.booking, f.err
}

func (f *fakeBookings) CancelBooking(_ context.Context, id int64) (*models.Booking, error) {
	f.canceled = id
	return f.booking, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:         7,
		PlaceID:    1,
		EmployeeID: 10,
		Date:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Time:       models.NewClock(10, 0),
		Status:     models.StatusPending,
	}
}

func newTestHTTP(cfg config.APIConfig, avail *fakeAvailability, bookings *fakeBookings) http.Handler {
	return NewHTTPServer(cfg, avail, bookings, fakePinger{}, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHTTPAvailability(t *testing.T) {
	avail := &fakeAvailability{res: &availability.Result{PlaceID: 1, Date: "2025-06-02", IsAvailable: true}}
	h := newTestHTTP(config.APIConfig{}, avail, &fakeBookings{})

	rec := do(t, h, http.MethodGet, "/api/v1/availability?place_id=1&date=2025-06-02&employee_id=10&service_id=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, availability.Query{
		PlaceID:    1,
		Date:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EmployeeID: 10,
		ServiceID:  5,
	}, avail.last)
	assert.Contains(t, rec.Body.String(), `"is_available":true`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing place", target: "/api/v1/availability?date=2025-06-02"},
		{name: "bad place", target: "/api/v1/availability?place_id=abc&date=2025-06-02"},
		{name: "missing date", target: "/api/v1/availability?place_id=1"},
		{name: "bad date", target: "/api/v1/availability?place_id=1&date=02.06.2025"},
		{name: "negative employee", target: "/api/v1/availability?place_id=1&date=2025-06-02&employee_id=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", decodeError(t, rec).Code)
		})
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: domain.NotFoundf("place 9"), status: http.StatusNotFound, code: "not_found"},
		{err: domain.Validationf("bad"), status: http.StatusBadRequest, code: "validation"},
		{err: domain.ErrInvalidTransition, status: http.StatusUnprocessableEntity, code: "invalid_transition"},
		{err: domain.ErrNoEmployeesAvailable, status: http.StatusConflict, code: "no_employees_available"},
		{err: domain.Conflictf("slot taken"), status: http.StatusConflict, code: "conflict"},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestHTTP(config.APIConfig{}, &fakeAvailability{err: tt.err}, &fakeBookings{})
			rec := do(t, h, http.MethodGet, "/api/v1/availability?place_id=1&date=2025-06-02", "", nil)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body.Error)
			}
		})
	}
}

func TestHTTPBookings(t *testing.T) {
	bookings := &fakeBookings{booking: sampleBooking()}
	h := newTestHTTP(config.APIConfig{}, &fakeAvailability{}, bookings)

	t.Run("create", func(t *testing.T) {
		body := `{"place_id":1,"any_employee_selected":true,"customer_name":"Ann","booking_date":"2025-06-02","booking_time":"10:00","service_ids":[5]}`
		rec := do(t, h, http.MethodPost, "/api/v1/bookings", body, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(1), bookings.created.PlaceID)
		assert.True(t, bookings.created.AnyEmployeeSelected)
		assert.Equal(t, []int64{5}, bookings.created.ServiceIDs)
		assert.Contains(t, rec.Body.String(), `"booking_time":"10:00"`)
	})

	t.Run("create rejects unknown fields", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/bookings", `{"place_id":1,"colour":"red"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/bookings/7", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"booking_date":"2025-06-02"`)

		rec = do(t, h, http.MethodGet, "/api/v1/bookings/8", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(t, h, http.MethodGet, "/api/v1/bookings/x", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/api/v1/bookings/7", `{"status":"confirmed","booking_time":"11:00"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, bookings.updated.Status)
		assert.Equal(t, models.StatusConfirmed, *bookings.updated.Status)
		require.NotNil(t, bookings.updated.BookingTime)
		assert.Equal(t, "11:00", *bookings.updated.BookingTime)
		assert.Nil(t, bookings.updated.EmployeeID)
	})

	t.Run("cancel", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/api/v1/bookings/7", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(7), bookings.canceled)
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := do(t, h, http.MethodPatch, "/api/v1/bookings/7", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHTTPAuth(t *testing.T) {
	cfg := authConfig()
	bookings := &fakeBookings{booking: sampleBooking()}
	h := newTestHTTP(cfg, &fakeAvailability{res: &availability.Result{}}, bookings)
	target := "/api/v1/availability?place_id=1&date=2025-06-02"

	rec := do(t, h, http.MethodGet, target, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, target, "", map[string]string{"X-Api-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, target, "", map[string]string{"X-Api-Key": "reader"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/bookings/7", "", map[string]string{"X-Api-Key": "reader"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, bookings.canceled)

	rec = do(t, h, http.MethodDelete, "/api/v1/bookings/7", "", map[string]string{"X-Api-Key": "admin"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is public")
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1}}
	h := newTestHTTP(cfg, &fakeAvailability{res: &availability.Result{}}, &fakeBookings{})
	target := "/api/v1/availability?place_id=1&date=2025-06-02"

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, target, "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, target, "", nil).Code)
}

func TestHTTPHealth(t *testing.T) {
	h := NewHTTPServer(config.APIConfig{}, &fakeAvailability{}, &fakeBookings{}, fakePinger{err: errors.New("closed")}, nil).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPRequestIDPropagates(t *testing.T) {
	h := newTestHTTP(config.APIConfig{}, &fakeAvailability{}, &fakeBookings{})
	rec := do(t, h, http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

type fakeExporter struct {
	placeID  int64
	from, to time.Time
	err      error
}

func (f *fakeExporter) WriteBookings(_ context.Context, w io.Writer, placeID int64, from, to time.Time) error {
	f.placeID, f.from, f.to = placeID, from, to
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "xlsx-bytes")
	return err
}

func TestHTTPExport(t *testing.T) {
	target := "/api/v1/places/1/bookings/export?from=2025-06-02&to=2025-06-08"

	h := newTestHTTP(config.APIConfig{}, &fakeAvailability{}, &fakeBookings{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, target, "", nil).Code, "disabled without exporter")

	exp := &fakeExporter{}
	h = NewHTTPServer(config.APIConfig{}, &fakeAvailability{}, &fakeBookings{}, fakePinger{}, nil).WithExporter(exp).Handler()

	rec := do(t, h, http.MethodGet, target, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings_1_2025-06-02_2025-06-08.xlsx")
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
	assert.Equal(t, int64(1), exp.placeID)
	assert.Equal(t, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), exp.to)

	rec = do(t, h, http.MethodGet, "/api/v1/places/1/bookings/export?from=2025-06-02", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	exp.err = domain.Validationf("range too long")
	rec = do(t, h, http.MethodGet, target, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec).Code)
}
