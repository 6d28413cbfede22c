package config

import (
	"fmt"
	"os"

	"salonbook/internal/models"

	"gopkg.in/yaml.v2"
)

// Catalog is the seed file of places, staff and services loaded on first start.
type Catalog struct {
	Services []CatalogService `yaml:"services"`
	Places   []CatalogPlace   `yaml:"places"`
}

// CatalogService is referenced from places by Key.
type CatalogService struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	Price    int64  `yaml:"price"`
	Duration int    `yaml:"duration"`
}

type CatalogPlace struct {
	Name           string                `yaml:"name"`
	WorkingHours   models.WorkingHours   `yaml:"working_hours"`
	BookingEnabled *bool                 `yaml:"booking_enabled"`
	RewardsEnabled bool                  `yaml:"rewards_enabled"`
	Services       []CatalogPlaceService `yaml:"services"`
	Employees      []CatalogEmployee     `yaml:"employees"`
	Closures       []CatalogBlock        `yaml:"closures"`
}

// CatalogPlaceService overrides price and duration of a service at one place.
// Zero values keep the service defaults.
type CatalogPlaceService struct {
	Service   string `yaml:"service"`
	Price     int64  `yaml:"price"`
	Duration  int    `yaml:"duration"`
	Available *bool  `yaml:"available"`
}

type CatalogEmployee struct {
	Name         string              `yaml:"name"`
	WorkingHours models.WorkingHours `yaml:"working_hours"`
	Inactive     bool                `yaml:"inactive"`
	TimeOff      []CatalogBlock      `yaml:"time_off"`
}

// CatalogBlock describes a closure or time-off. Yearly blocks repeat on the
// month and day of Start.
type CatalogBlock struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	HalfDay string `yaml:"half_day"`
	Yearly  bool   `yaml:"yearly"`
	Reason  string `yaml:"reason"`
	Status  string `yaml:"status"`
}

// DayBlock converts the block into its model form.
func (b CatalogBlock) DayBlock() (models.DayBlock, error) {
	start, err := models.ParseDate(b.Start)
	if err != nil {
		return models.DayBlock{}, err
	}
	end := start
	if b.End != "" {
		if end, err = models.ParseDate(b.End); err != nil {
			return models.DayBlock{}, err
		}
	}

	block := models.DayBlock{
		StartDate: start,
		EndDate:   end,
		IsFullDay: b.HalfDay == "",
		HalfDay:   models.HalfDayPeriod(b.HalfDay),
	}
	if b.Yearly {
		block.Recurrence = &models.RecurrencePattern{Month: start.Month(), Day: start.Day()}
	}
	return block, block.Validate()
}

// BookingOn reports whether the place accepts bookings; it defaults to true.
func (p CatalogPlace) BookingOn() bool {
	return p.BookingEnabled == nil || *p.BookingEnabled
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := ValidateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &catalog, nil
}

func ValidateCatalog(c *Catalog) error {
	services := make(map[string]bool)
	for _, s := range c.Services {
		if s.Key == "" {
			return fmt.Errorf("service '%s' has no key", s.Name)
		}
		if services[s.Key] {
			return fmt.Errorf("duplicate service key found: %s", s.Key)
		}
		if s.Price < 0 || s.Duration <= 0 {
			return fmt.Errorf("service %s: price must be >= 0 and duration > 0", s.Key)
		}
		services[s.Key] = true
	}

	places := make(map[string]bool)
	for _, p := range c.Places {
		if p.Name == "" {
			return fmt.Errorf("place without a name")
		}
		if places[p.Name] {
			return fmt.Errorf("duplicate place name found: %s", p.Name)
		}
		places[p.Name] = true

		if err := p.WorkingHours.Validate(); err != nil {
			return fmt.Errorf("place %s: %w", p.Name, err)
		}
		for _, ps := range p.Services {
			if !services[ps.Service] {
				return fmt.Errorf("place %s references unknown service %s", p.Name, ps.Service)
			}
		}
		for _, b := range p.Closures {
			if _, err := b.DayBlock(); err != nil {
				return fmt.Errorf("place %s closure: %w", p.Name, err)
			}
		}
		for _, e := range p.Employees {
			if err := e.WorkingHours.Validate(); err != nil {
				return fmt.Errorf("employee %s: %w", e.Name, err)
			}
			for _, b := range e.TimeOff {
				if _, err := b.DayBlock(); err != nil {
					return fmt.Errorf("employee %s time off: %w", e.Name, err)
				}
			}
		}
	}
	return nil
}
