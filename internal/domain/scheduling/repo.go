package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("booking not found")

type ListFilter struct {
	StaffID  string
	ClientID *uuid.UUID
	Status   Status
	From     *time.Time
	To       *time.Time
}

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Booking, int, error)
	// LockStaff serialises booking changes for one staff member until the
	// surrounding transaction ends.
	LockStaff(ctx context.Context, staffID string) error
	// Overlapping returns the blocking bookings of staffID that intersect
	// [start, end), excluding the booking with id exclude.
	Overlapping(ctx context.Context, staffID string, start, end time.Time, exclude uuid.UUID) ([]*Booking, error)
}
