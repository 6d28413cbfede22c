package models

import (
	"encoding/json"
	"time"
)

// BookingService is a line item frozen at creation time.
type BookingService struct {
	ID        int64  `json:"id"`
	BookingID int64  `json:"booking_id"`
	ServiceID int64  `json:"service_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Duration  int    `json:"duration"`
}

type Booking struct {
	ID                  int64            `json:"id"`
	PlaceID             int64            `json:"place_id"`
	EmployeeID          int64            `json:"employee_id"`
	UserID              *int64           `json:"user_id,omitempty"`
	CustomerName        string           `json:"customer_name"`
	CustomerEmail       string           `json:"customer_email,omitempty"`
	CustomerPhone       string           `json:"customer_phone,omitempty"`
	Date                time.Time        `json:"-"`
	Time                Clock            `json:"booking_time"`
	Services            []BookingService `json:"services"`
	TotalPrice          int64            `json:"total_price"`
	TotalDuration       int              `json:"total_duration"`
	Status              string           `json:"status"` // pending, confirmed, completed, cancelled
	AnyEmployeeSelected bool             `json:"any_employee_selected"`
	Tags                []string         `json:"tags,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	Version             int64            `json:"version"`
}

// DateString is the booking day as YYYY-MM-DD.
func (b *Booking) DateString() string {
	return b.Date.Format(DateLayout)
}

// StartsAt combines the booking day and time.
func (b *Booking) StartsAt() time.Time {
	return b.Time.On(b.Date)
}

func (b *Booking) IsActive() bool {
	return IsActiveStatus(b.Status)
}

// ApplyTotals recomputes totals from the line items.
func (b *Booking) ApplyTotals() {
	var price int64
	var duration int
	for _, s := range b.Services {
		price += s.Price
		duration += s.Duration
	}
	b.TotalPrice = price
	b.TotalDuration = duration
}

type bookingJSON Booking

func (b Booking) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		bookingJSON
		BookingDate string `json:"booking_date"`
	}{bookingJSON(b), b.DateString()})
}

func (b *Booking) UnmarshalJSON(data []byte) error {
	var raw struct {
		bookingJSON
		BookingDate string `json:"booking_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Booking(raw.bookingJSON)
	if raw.BookingDate != "" {
		d, err := ParseDate(raw.BookingDate)
		if err != nil {
			return err
		}
		b.Date = d
	}
	return nil
}
