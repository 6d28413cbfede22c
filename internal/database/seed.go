package database

import (
	"context"
	"fmt"

	"salonbook/internal/config"
	"salonbook/internal/models"
)

// SeedCatalog loads the catalog into an empty database. It reports false and
// does nothing when places already exist.
func (db *DB) SeedCatalog(ctx context.Context, catalog *config.Catalog) (bool, error) {
	var places int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM places`).Scan(&places); err != nil {
		return false, fmt.Errorf("failed to count places: %w", err)
	}
	if places > 0 {
		return false, nil
	}

	serviceIDs := make(map[string]int64, len(catalog.Services))
	for _, s := range catalog.Services {
		svc := &models.Service{Name: s.Name, DefaultPrice: s.Price, DefaultDuration: s.Duration}
		if err := db.CreateService(ctx, svc); err != nil {
			return false, err
		}
		serviceIDs[s.Key] = svc.ID
	}

	for _, p := range catalog.Places {
		place := &models.Place{
			Name:           p.Name,
			WorkingHours:   p.WorkingHours,
			BookingEnabled: p.BookingOn(),
			RewardsEnabled: p.RewardsEnabled,
		}
		if err := db.CreatePlace(ctx, place); err != nil {
			return false, fmt.Errorf("place %s: %w", p.Name, err)
		}

		for _, ps := range p.Services {
			available := ps.Available == nil || *ps.Available
			if err := db.UpsertPlaceService(ctx, &models.PlaceService{
				PlaceID:     place.ID,
				ServiceID:   serviceIDs[ps.Service],
				Price:       ps.Price,
				Duration:    ps.Duration,
				IsAvailable: available,
			}); err != nil {
				return false, fmt.Errorf("place %s service %s: %w", p.Name, ps.Service, err)
			}
		}

		for _, c := range p.Closures {
			block, err := c.DayBlock()
			if err != nil {
				return false, fmt.Errorf("place %s closure: %w", p.Name, err)
			}
			if err := db.CreateClosure(ctx, &models.PlaceClosedPeriod{
				PlaceID: place.ID, Reason: c.Reason, Status: c.Status, DayBlock: block,
			}); err != nil {
				return false, err
			}
		}

		for _, e := range p.Employees {
			emp := &models.Employee{
				PlaceID:      place.ID,
				Name:         e.Name,
				WorkingHours: e.WorkingHours,
				IsActive:     !e.Inactive,
			}
			if err := db.CreateEmployee(ctx, emp); err != nil {
				return false, fmt.Errorf("employee %s: %w", e.Name, err)
			}
			for _, off := range e.TimeOff {
				block, err := off.DayBlock()
				if err != nil {
					return false, fmt.Errorf("employee %s time off: %w", e.Name, err)
				}
				status := off.Status
				if status == "" {
					status = models.TimeOffApproved
				}
				if err := db.CreateTimeOff(ctx, &models.EmployeeTimeOff{
					EmployeeID: emp.ID, PlaceID: place.ID, Reason: off.Reason, Status: status, DayBlock: block,
				}); err != nil {
					return false, err
				}
			}
		}
	}

	db.logger.Info().Int("places", len(catalog.Places)).Int("services", len(catalog.Services)).Msg("Catalog seeded")
	return true, nil
}
