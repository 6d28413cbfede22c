package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityInvalidator drops cached availability of a place on a date.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, placeID int64, date time.Time)
}

// CreateBookingRequest is the input of BookingService.CreateBooking.
type CreateBookingRequest struct {
	PlaceID             int64    `json:"place_id"`
	EmployeeID          int64    `json:"employee_id,omitempty"`
	AnyEmployeeSelected bool     `json:"any_employee_selected"`
	CustomerName        string   `json:"customer_name"`
	CustomerEmail       string   `json:"customer_email,omitempty"`
	CustomerPhone       string   `json:"customer_phone,omitempty"`
	BookingDate         string   `json:"booking_date"`
	BookingTime         string   `json:"booking_time"`
	ServiceIDs          []int64  `json:"service_ids"`
	Tags                []string `json:"tags,omitempty"`
	Notes               string   `json:"notes,omitempty"`
}

// UpdateBookingRequest changes only the fields that are set.
type UpdateBookingRequest struct {
	Status      *string   `json:"status,omitempty"`
	EmployeeID  *int64    `json:"employee_id,omitempty"`
	BookingDate *string   `json:"booking_date,omitempty"`
	BookingTime *string   `json:"booking_time,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

type BookingServiceConfig struct {
	MaxAdvanceDays int
}

// BookingService owns booking creation and the status lifecycle.
type BookingService struct {
	catalog  domain.CatalogReader
	users    domain.UserDirectory
	store    domain.BookingStore
	schedule *calendar.ScheduleCalendar
	staff    *calendar.EmployeeCalendar
	guard    *ConflictGuard
	cache    AvailabilityInvalidator
	enqueuer domain.EventEnqueuer

	maxAdvanceDays int
	now            func() time.Time
	logger         *zerolog.Logger
}

func NewBookingService(
	catalog domain.CatalogReader,
	users domain.UserDirectory,
	store domain.BookingStore,
	schedule *calendar.ScheduleCalendar,
	staff *calendar.EmployeeCalendar,
	guard *ConflictGuard,
	cache AvailabilityInvalidator,
	enqueuer domain.EventEnqueuer,
	cfg BookingServiceConfig,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if guard == nil {
		guard = NewConflictGuard(nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "booking").Logger()
	return &BookingService{
		catalog:        catalog,
		users:          users,
		store:          store,
		schedule:       schedule,
		staff:          staff,
		guard:          guard,
		cache:          cache,
		enqueuer:       enqueuer,
		maxAdvanceDays: cfg.MaxAdvanceDays,
		now:            time.Now,
		logger:         &l,
	}
}

// ValidateBookingDate rejects past dates and dates beyond the advance window.
func (s *BookingService) ValidateBookingDate(date time.Time) error {
	today := models.DateOf(s.now())
	date = models.DateOf(date)
	if date.Before(today) {
		return domain.Validationf("booking_date %s is in the past", date.Format(models.DateLayout))
	}
	if date.After(today.AddDate(0, 0, s.maxAdvanceDays)) {
		return domain.Validationf("booking_date %s is more than %d days ahead", date.Format(models.DateLayout), s.maxAdvanceDays)
	}
	return nil
}

func parseDateTime(date, at string) (time.Time, models.Clock, error) {
	d, err := models.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, models.Clock{}, domain.Validationf("%v", err)
	}
	c, err := models.ParseClock(strings.TrimSpace(at))
	if err != nil {
		return time.Time{}, models.Clock{}, domain.Validationf("%v", err)
	}
	return d, c, nil
}

func (r *CreateBookingRequest) validate() error {
	switch {
	case r.PlaceID <= 0:
		return domain.Validationf("place_id is required")
	case strings.TrimSpace(r.CustomerName) == "":
		return domain.Validationf("customer_name is required")
	case len(r.ServiceIDs) == 0:
		return domain.Validationf("at least one service is required")
	case r.AnyEmployeeSelected && r.EmployeeID > 0:
		return domain.Validationf("employee_id and any_employee_selected are mutually exclusive")
	case !r.AnyEmployeeSelected && r.EmployeeID <= 0:
		return domain.Validationf("employee_id is required unless any_employee_selected is set")
	}

	seen := make(map[int64]bool, len(r.ServiceIDs))
	for _, id := range r.ServiceIDs {
		if id <= 0 {
			return domain.Validationf("invalid service id %d", id)
		}
		if seen[id] {
			return domain.Validationf("service %d requested twice", id)
		}
		seen[id] = true
	}
	return nil
}

// slotPlan is everything a write needs that is read before the transaction.
type slotPlan struct {
	place     *models.Place
	date      time.Time
	slot      models.Clock
	employees []models.Employee
	staff     *calendar.StaffDay
}

// planSlot floors at onto the place's grid for date and loads the staff
// calendars of that day.
func (s *BookingService) planSlot(ctx context.Context, place *models.Place, date time.Time, at models.Clock) (*slotPlan, error) {
	day, err := s.schedule.Day(ctx, place, date)
	if err != nil {
		return nil, err
	}
	if !day.Open {
		return nil, domain.Validationf("place %d is closed on %s", place.ID, date.Format(models.DateLayout))
	}
	slot := day.SlotOf(at)
	if !day.Allows(slot) {
		return nil, domain.Validationf("%s is outside the bookable hours of %s", at, date.Format(models.DateLayout))
	}

	employees, err := s.catalog.ListActiveEmployees(ctx, place.ID)
	if err != nil {
		return nil, err
	}
	staff, err := s.staff.Day(ctx, place.ID, date)
	if err != nil {
		return nil, err
	}
	return &slotPlan{place: place, date: day.Date, slot: slot, employees: employees, staff: staff}, nil
}

func (s *BookingService) snapshotServices(ctx context.Context, placeID int64, ids []int64) ([]models.BookingService, error) {
	lines := make([]models.BookingService, 0, len(ids))
	for _, id := range ids {
		ps, err := s.catalog.GetPlaceService(ctx, placeID, id)
		if err != nil {
			return nil, err
		}
		if !ps.IsAvailable {
			return nil, domain.NotFoundf("service %d is not offered at place %d", id, placeID)
		}
		lines = append(lines, models.BookingService{
			ServiceID: ps.ServiceID,
			Name:      ps.Name,
			Price:     ps.Price,
			Duration:  ps.Duration,
		})
	}
	return lines, nil
}

// CreateBooking resolves the employee, snapshots the services and stores
// the booking with its created event in one transaction.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	date, at, err := parseDateTime(req.BookingDate, req.BookingTime)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}

	place, err := s.catalog.GetPlace(ctx, req.PlaceID)
	if err != nil {
		return nil, err
	}
	if !place.BookingEnabled {
		return nil, domain.Validationf("booking is disabled for place %d", place.ID)
	}

	lines, err := s.snapshotServices(ctx, place.ID, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	plan, err := s.planSlot(ctx, place, date, at)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		PlaceID:             place.ID,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerEmail:       strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		Date:                plan.date,
		Time:                plan.slot,
		Services:            lines,
		Status:              models.StatusPending,
		AnyEmployeeSelected: req.AnyEmployeeSelected,
		Tags:                req.Tags,
		Notes:               req.Notes,
	}
	booking.ApplyTotals()

	if booking.CustomerEmail != "" && s.users != nil {
		user, err := s.users.FindUserByEmail(ctx, booking.CustomerEmail)
		if err != nil {
			return nil, err
		}
		if user != nil {
			booking.UserID = &user.ID
		}
	}

	var outbox []models.OutboxEvent
	err = s.store.WithTx(ctx, func(tx domain.BookingTx) error {
		employeeID, err := s.guard.Resolve(ctx, tx, GuardRequest{
			PlaceID:     place.ID,
			EmployeeID:  req.EmployeeID,
			AnyEmployee: req.AnyEmployeeSelected,
			Date:        plan.date,
			Time:        plan.slot,
			Candidates:  plan.employees,
			Staff:       plan.staff,
		})
		if err != nil {
			return err
		}
		booking.EmployeeID = employeeID

		if err := tx.InsertBooking(ctx, booking); err != nil {
			return err
		}

		event, err := events.NewBookingEvent(events.EventBookingCreated, booking, nil)
		if err != nil {
			return err
		}
		row := event.Outbox()
		if err := tx.EnqueueEvent(ctx, row); err != nil {
			return err
		}
		outbox = append(outbox, *row)
		return nil
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	mode := "explicit"
	if req.AnyEmployeeSelected {
		mode = "any"
	}
	metrics.IncBookingCreated(mode)
	s.afterCommit(ctx, outbox, dayKey{booking.PlaceID, booking.Date})

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("place_id", booking.PlaceID).
		Int64("employee_id", booking.EmployeeID).
		Str("date", booking.DateString()).
		Str("time", booking.Time.String()).
		Bool("any_employee", booking.AnyEmployeeSelected).
		Msg("booking created")

	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// CancelBooking soft-cancels the booking. Cancelling twice is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (*models.Booking, error) {
	status := models.StatusCancelled
	return s.UpdateBooking(ctx, id, UpdateBookingRequest{Status: &status})
}

// CheckTransition validates a status change; equal statuses are allowed
// and mean no change.
func CheckTransition(from, to string) error {
	if !models.IsKnownStatus(to) {
		return domain.Validationf("unknown status %q", to)
	}
	if from == to {
		return nil
	}
	allowed := map[string][]string{
		models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
		models.StatusConfirmed: {models.StatusPending, models.StatusCancelled, models.StatusCompleted},
	}
	for _, s := range allowed[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
}

type dayKey struct {
	placeID int64
	date    time.Time
}

// UpdateBooking applies a status transition, reassignment, reschedule or
// tag/notes change. Moves re-run the guard for the target slot.
func (s *BookingService) UpdateBooking(ctx context.Context, id int64, req UpdateBookingRequest) (*models.Booking, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	target := *current
	if req.Status != nil {
		target.Status = strings.TrimSpace(*req.Status)
		if err := CheckTransition(current.Status, target.Status); err != nil {
			return nil, err
		}
	}
	if req.EmployeeID != nil {
		target.EmployeeID = *req.EmployeeID
	}
	if req.BookingDate != nil || req.BookingTime != nil {
		date, at := current.DateString(), current.Time.String()
		if req.BookingDate != nil {
			date = *req.BookingDate
		}
		if req.BookingTime != nil {
			at = *req.BookingTime
		}
		if target.Date, target.Time, err = parseDateTime(date, at); err != nil {
			return nil, err
		}
	}
	if req.Tags != nil {
		target.Tags = *req.Tags
	}
	if req.Notes != nil {
		target.Notes = *req.Notes
	}

	moved := target.EmployeeID != current.EmployeeID || !target.Date.Equal(current.Date) || target.Time != current.Time
	var plan *slotPlan
	if moved {
		if !current.IsActive() || !target.IsActive() {
			return nil, domain.Validationf("only active bookings can be reassigned or rescheduled")
		}
		if target.EmployeeID <= 0 {
			return nil, domain.Validationf("employee_id must be positive")
		}
		if !target.Date.Equal(current.Date) {
			if err := s.ValidateBookingDate(target.Date); err != nil {
				return nil, err
			}
		}
		place, err := s.catalog.GetPlace(ctx, current.PlaceID)
		if err != nil {
			return nil, err
		}
		if plan, err = s.planSlot(ctx, place, target.Date, target.Time); err != nil {
			return nil, err
		}
		target.Date = plan.date
		target.Time = plan.slot
		moved = target.EmployeeID != current.EmployeeID || !target.Date.Equal(current.Date) || target.Time != current.Time
	}

	changes := diffBooking(current, &target)
	statusChanged := target.Status != current.Status
	if !statusChanged && len(changes) == 0 {
		return current, nil
	}

	var outbox []models.OutboxEvent
	err = s.store.WithTx(ctx, func(tx domain.BookingTx) error {
		locked, err := tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Version != current.Version {
			return domain.Conflictf("booking %d was modified concurrently", id)
		}

		if moved {
			if _, err := s.guard.Resolve(ctx, tx, GuardRequest{
				PlaceID:          target.PlaceID,
				EmployeeID:       target.EmployeeID,
				Date:             target.Date,
				Time:             target.Time,
				ExcludeBookingID: id,
				Candidates:       plan.employees,
				Staff:            plan.staff,
			}); err != nil {
				return err
			}
		}

		if err := tx.UpdateBooking(ctx, &target); err != nil {
			return err
		}

		if statusChanged {
			event, err := events.NewBookingEvent(events.TransitionEvent(target.Status), &target, func(p *events.BookingEventPayload) {
				p.PrevStatus = current.Status
			})
			if err != nil {
				return err
			}
			row := event.Outbox()
			if err := tx.EnqueueEvent(ctx, row); err != nil {
				return err
			}
			outbox = append(outbox, *row)
		}
		if len(changes) > 0 {
			event, err := events.NewBookingEvent(events.EventBookingUpdated, &target, func(p *events.BookingEventPayload) {
				p.Changes = changes
			})
			if err != nil {
				return err
			}
			row := event.Outbox()
			if err := tx.EnqueueEvent(ctx, row); err != nil {
				return err
			}
			outbox = append(outbox, *row)
		}
		return nil
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	if statusChanged {
		metrics.IncTransition(target.Status)
	}
	s.afterCommit(ctx, outbox, dayKey{current.PlaceID, current.Date}, dayKey{target.PlaceID, target.Date})

	s.logger.Info().
		Int64("booking_id", id).
		Str("from", current.Status).
		Str("to", target.Status).
		Strs("changes", changes).
		Msg("booking updated")

	return s.store.GetBooking(ctx, id)
}

func diffBooking(from, to *models.Booking) []string {
	var changes []string
	if from.EmployeeID != to.EmployeeID {
		changes = append(changes, "employee_id")
	}
	if !from.Date.Equal(to.Date) {
		changes = append(changes, "booking_date")
	}
	if from.Time != to.Time {
		changes = append(changes, "booking_time")
	}
	if strings.Join(from.Tags, "\x00") != strings.Join(to.Tags, "\x00") {
		changes = append(changes, "tags")
	}
	if from.Notes != to.Notes {
		changes = append(changes, "notes")
	}
	return changes
}

func (s *BookingService) recordConflict(err error) {
	switch {
	case errors.Is(err, domain.ErrNoEmployeesAvailable):
		metrics.IncBookingConflict("no_employees")
	case errors.Is(err, domain.ErrConflict):
		metrics.IncBookingConflict("slot_taken")
	}
}

// afterCommit runs the post-commit side effects. None of them can fail the
// operation.
func (s *BookingService) afterCommit(ctx context.Context, outbox []models.OutboxEvent, days ...dayKey) {
	if s.cache != nil {
		seen := make(map[dayKey]bool, len(days))
		for _, d := range days {
			if seen[d] {
				continue
			}
			seen[d] = true
			s.cache.Invalidate(ctx, d.placeID, d.date)
		}
	}
	if s.enqueuer != nil && len(outbox) > 0 {
		s.enqueuer.Enqueue(ctx, outbox)
	}
}
