package service

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// GuardRequest is one write-time slot claim. Time must already be slot-aligned.
type GuardRequest struct {
	PlaceID     int64
	EmployeeID  int64
	AnyEmployee bool
	Date        time.Time
	Time        models.Clock
	// ExcludeBookingID lets a booking keep its own slot when it is moved.
	ExcludeBookingID int64
	Candidates       []models.Employee
	Staff            *calendar.StaffDay
}

// ConflictGuard re-checks occupancy inside the write transaction and picks
// an employee for any-employee requests.
type ConflictGuard struct {
	selector EmployeeSelector
}

func NewConflictGuard(selector EmployeeSelector) *ConflictGuard {
	if selector == nil {
		selector = FirstFree{}
	}
	return &ConflictGuard{selector: selector}
}

// Resolve returns the employee that gets the slot.
func (g *ConflictGuard) Resolve(ctx context.Context, tx domain.BookingTx, req GuardRequest) (int64, error) {
	if req.AnyEmployee {
		return g.resolveAny(ctx, tx, req)
	}
	return g.checkExplicit(ctx, tx, req)
}

func (g *ConflictGuard) resolveAny(ctx context.Context, tx domain.BookingTx, req GuardRequest) (int64, error) {
	ordered, err := g.selector.Order(ctx, tx, req.PlaceID, req.Date, req.Candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to order employees: %w", err)
	}

	for i := range ordered {
		emp := &ordered[i]
		if !req.Staff.IsWorking(emp, req.Time) {
			continue
		}
		busy, err := tx.EmployeeHasActiveBooking(ctx, emp.ID, req.Date, req.Time, req.ExcludeBookingID)
		if err != nil {
			return 0, err
		}
		if !busy {
			return emp.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: at %s %s", domain.ErrNoEmployeesAvailable,
		req.Date.Format(models.DateLayout), req.Time)
}

func (g *ConflictGuard) checkExplicit(ctx context.Context, tx domain.BookingTx, req GuardRequest) (int64, error) {
	var emp *models.Employee
	for i := range req.Candidates {
		if req.Candidates[i].ID == req.EmployeeID {
			emp = &req.Candidates[i]
			break
		}
	}
	if emp == nil {
		return 0, domain.NotFoundf("employee %d at place %d", req.EmployeeID, req.PlaceID)
	}

	if !req.Staff.IsWorking(emp, req.Time) {
		return 0, domain.Conflictf("employee %d is not working at %s %s",
			emp.ID, req.Date.Format(models.DateLayout), req.Time)
	}

	busy, err := tx.EmployeeHasActiveBooking(ctx, emp.ID, req.Date, req.Time, req.ExcludeBookingID)
	if err != nil {
		return 0, err
	}
	if busy {
		return 0, domain.Conflictf("employee %d already booked at %s %s",
			emp.ID, req.Date.Format(models.DateLayout), req.Time)
	}
	return emp.ID, nil
}
