package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusMissed    Status = "missed"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusCompleted: true, StatusCancelled: true, StatusMissed: true,
}

// Only scheduled bookings move; every other status is final.
func CanTransition(from, to Status) bool {
	return from == StatusScheduled && to != StatusScheduled && validStatuses[to]
}

// Booking maps to the booking table: one carer visit to one client.
type Booking struct {
	ID        uuid.UUID `json:"id"`
	StaffID   string    `json:"staffId" validate:"required,max=255"`
	ClientID  uuid.UUID `json:"clientId"`
	StartAt   time.Time `json:"startAt" validate:"required"`
	EndAt     time.Time `json:"endAt" validate:"required"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Blocks reports whether the booking occupies its staff member's time.
func (b *Booking) Blocks() bool {
	return b.Status != StatusCancelled
}

// Overlaps treats bookings as half-open intervals, so back-to-back visits
// do not conflict.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && start.Before(b.EndAt)
}

func (b *Booking) Duration() time.Duration {
	return b.EndAt.Sub(b.StartAt)
}
