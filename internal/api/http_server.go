package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AvailabilityReader answers slot queries.
type AvailabilityReader interface {
	GetAvailableSlots(ctx context.Context, q availability.Query) (*availability.Result, error)
}

// BookingManager owns the booking write path.
type BookingManager interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id int64, req service.UpdateBookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*models.Booking, error)
}

// BookingExporter renders a place's bookings as a workbook.
type BookingExporter interface {
	WriteBookings(ctx context.Context, w io.Writer, placeID int64, from, to time.Time) error
}

// Pinger reports storage health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const maxBodyBytes = 1 << 20

// HTTPServer exposes the availability and booking JSON API.
type HTTPServer struct {
	cfg          config.APIConfig
	availability AvailabilityReader
	bookings     BookingManager
	health       Pinger
	exporter     BookingExporter
	auth         *authenticator
	server       *http.Server
	logger       *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	avail AvailabilityReader,
	bookings BookingManager,
	health Pinger,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		availability: avail,
		bookings:     bookings,
		health:       health,
		auth:         newAuthenticator(cfg),
		logger:       logging.Component(logger, "http"),
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the routed handler with logging and auth applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /api/v1/availability", s.guard(permReadAvailability, s.handleAvailability))
	mux.Handle("POST /api/v1/bookings", s.guard(permWriteBookings, s.handleCreateBooking))
	mux.Handle("GET /api/v1/bookings/{id}", s.guard(permReadBookings, s.handleGetBooking))
	mux.Handle("PUT /api/v1/bookings/{id}", s.guard(permWriteBookings, s.handleUpdateBooking))
	mux.Handle("DELETE /api/v1/bookings/{id}", s.guard(permWriteBookings, s.handleCancelBooking))
	mux.Handle("GET /api/v1/places/{id}/bookings/export", s.guard(permReadBookings, s.handleExport))

	return s.loggingMiddleware(mux)
}

// WithExporter enables the xlsx export route.
func (s *HTTPServer) WithExporter(exporter BookingExporter) *HTTPServer {
	s.exporter = exporter
	return s
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// guard applies API-key auth and per-client rate limiting to one route.
func (s *HTTPServer) guard(permission string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := strings.TrimSpace(r.Header.Get(s.auth.header()))

		if err := s.auth.authorize(apiKey, permission); err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, "unauthorized", err.Error())
			return
		}

		if err := s.auth.rateLimit(clientKey(apiKey, r)); err != nil {
			writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
			return
		}

		next(w, r)
	})
}

func clientKey(apiKey string, r *http.Request) string {
	if apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q, err := parseAvailabilityQuery(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	res, err := s.availability.GetAvailableSlots(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseAvailabilityQuery(r *http.Request) (availability.Query, error) {
	values := r.URL.Query()

	var q availability.Query
	var err error

	if q.PlaceID, err = parseID(values.Get("place_id"), "place_id", true); err != nil {
		return q, err
	}
	if q.EmployeeID, err = parseID(values.Get("employee_id"), "employee_id", false); err != nil {
		return q, err
	}
	if q.ServiceID, err = parseID(values.Get("service_id"), "service_id", false); err != nil {
		return q, err
	}

	rawDate := strings.TrimSpace(values.Get("date"))
	if rawDate == "" {
		return q, domain.Validationf("date is required")
	}
	if q.Date, err = models.ParseDate(rawDate); err != nil {
		return q, domain.Validationf("invalid date %q", rawDate)
	}
	return q, nil
}

func parseID(raw, name string, required bool) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return 0, domain.Validationf("%s is required", name)
		}
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "id", true)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "id", true)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var req service.UpdateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	booking, err := s.bookings.UpdateBooking(r.Context(), id, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "id", true)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	booking, err := s.bookings.CancelBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "not_found", "export is not enabled")
		return
	}

	placeID, err := parseID(r.PathValue("id"), "id", true)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	from, err := parseDateParam(r, "from")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	// Render fully before writing so errors still get a JSON body.
	var buf bytes.Buffer
	if err := s.exporter.WriteBookings(r.Context(), &buf, placeID, from, to); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	filename := fmt.Sprintf("bookings_%d_%s_%s.xlsx", placeID, from.Format(models.DateLayout), to.Format(models.DateLayout))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, domain.Validationf("%s is required", name)
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, domain.Validationf("invalid %s %q", name, raw)
	}
	return date, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := httpStatus(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "internal error"
	}
	writeError(w, statusCode, domain.Code(err), message)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorBody{Error: message, Code: code})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
