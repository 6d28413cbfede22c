package models

import "time"

type Place struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	WorkingHours   WorkingHours `json:"working_hours"`
	BookingEnabled bool         `json:"booking_enabled"`
	RewardsEnabled bool         `json:"rewards_enabled"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type Employee struct {
	ID      int64  `json:"id"`
	PlaceID int64  `json:"place_id"`
	Name    string `json:"name"`
	// Empty hours mean the employee follows the place schedule.
	WorkingHours WorkingHours `json:"working_hours,omitempty"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Service is a catalog entry. Prices are in minor currency units.
type Service struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DefaultPrice    int64  `json:"default_price"`
	DefaultDuration int    `json:"default_duration"`
}

// PlaceService is the per-place offer of a Service.
type PlaceService struct {
	PlaceID     int64  `json:"place_id"`
	ServiceID   int64  `json:"service_id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Duration    int    `json:"duration"`
	IsAvailable bool   `json:"is_available"`
}
