package domain

import (
	"context"
	"time"

	"salonbook/internal/models"
)

// CatalogReader is the read-only place, employee and service catalog.
type CatalogReader interface {
	GetPlace(ctx context.Context, id int64) (*models.Place, error)
	GetEmployee(ctx context.Context, id int64) (*models.Employee, error)
	ListActiveEmployees(ctx context.Context, placeID int64) ([]models.Employee, error)
	GetPlaceService(ctx context.Context, placeID, serviceID int64) (*models.PlaceService, error)
}

// ClosureReader returns active closures of a place that may cover date.
type ClosureReader interface {
	ListPlaceClosures(ctx context.Context, placeID int64, date time.Time) ([]models.PlaceClosedPeriod, error)
}

// TimeOffReader returns time-off records of a place's employees that may cover date.
type TimeOffReader interface {
	ListTimeOff(ctx context.Context, placeID int64, date time.Time) ([]models.EmployeeTimeOff, error)
}

// BookingReader lists active bookings of a place on a day.
type BookingReader interface {
	ListActiveBookings(ctx context.Context, placeID int64, date time.Time) ([]models.Booking, error)
}

// UserDirectory resolves customer accounts by email.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// BookingTx is the write-side view of the bookings table inside one transaction.
type BookingTx interface {
	EmployeeHasActiveBooking(ctx context.Context, employeeID int64, date time.Time, at models.Clock, excludeBookingID int64) (bool, error)
	CountActiveBookings(ctx context.Context, employeeID int64, date time.Time) (int, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	EnqueueEvent(ctx context.Context, event *models.OutboxEvent) error
}

// BookingStore persists bookings; WithTx runs fn serialised against other writers.
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	WithTx(ctx context.Context, fn func(tx BookingTx) error) error
}

// EventEnqueuer is told about outbox rows after their transaction commits.
type EventEnqueuer interface {
	Enqueue(ctx context.Context, events []models.OutboxEvent)
}

// Notifier delivers booking notifications; implementations are best-effort.
type Notifier interface {
	Notify(ctx context.Context, bookingID int64, event string) error
}

// RewardsLedger records loyalty points; awarding twice for a booking is a no-op.
type RewardsLedger interface {
	AwardPoints(ctx context.Context, userID, placeID, bookingID int64, points int64) (bool, error)
}
