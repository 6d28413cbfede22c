package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// ActiveStatuses occupy a slot.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

func IsKnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

const (
	// DefaultSlotMinutes is the width of one availability slot.
	DefaultSlotMinutes = 30

	// DefaultMaxAdvanceDays limits how far ahead a booking may be placed.
	DefaultMaxAdvanceDays = 365

	// DefaultAvailabilityTTL is the availability cache lifetime in seconds.
	DefaultAvailabilityTTL = 60

	// OutboxQueueSize is the in-memory dispatcher queue size.
	OutboxQueueSize = 128
)
