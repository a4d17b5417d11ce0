package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/clients"
	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/db"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/validation"
)

const maxBookingLength = 24 * time.Hour

var (
	ErrOverlap           = errors.New("booking overlaps another booking for the same staff member")
	ErrInvalidTransition = errors.New("booking status transition is not allowed")
	ErrNotScheduled      = errors.New("only scheduled bookings can be changed")
	ErrForbidden         = errors.New("booking belongs to another staff member")
)

// OverlapError lists the bookings that block the requested slot.
type OverlapError struct {
	Conflicts []*Booking
}

func (e *OverlapError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, b := range e.Conflicts {
		ids[i] = b.ID.String()
	}
	return fmt.Sprintf("%s: %s", ErrOverlap, strings.Join(ids, ", "))
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

// ClientDirectory resolves the client a booking is for.
type ClientDirectory interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clients.Client, error)
}

type Service struct {
	repo     Repository
	clients  ClientDirectory
	events   eventbus.Publisher
	validate *validation.Validator
}

func NewService(repo Repository, dir ClientDirectory, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{repo: repo, clients: dir, events: events, validate: validation.New()}
}

func (s *Service) publish(ctx context.Context, p auth.Principal, id uuid.UUID, action eventbus.Action) {
	s.events.Publish(ctx, eventbus.EntityChanged{
		TenantID: p.TenantID,
		Entity:   eventbus.EntityBooking,
		ID:       id.String(),
		Action:   action,
	})
}

func (s *Service) check(ctx context.Context, b *Booking) error {
	errs := s.validate.Struct(b)
	if b.ClientID == uuid.Nil {
		errs.Add("clientId", "is required")
	} else if _, err := s.clients.GetClient(ctx, b.ClientID); err != nil {
		if !errors.Is(err, clients.ErrNotFound) {
			return err
		}
		errs.Add("clientId", "does not match a client")
	}
	if !b.StartAt.IsZero() && !b.EndAt.IsZero() {
		switch {
		case !b.EndAt.After(b.StartAt):
			errs.Add("endAt", "must be after startAt")
		case b.Duration() > maxBookingLength:
			errs.Add("endAt", "booking cannot be longer than 24 hours")
		}
	}
	return errs.Err()
}

// reserve runs store under the staff member's lock once the slot is free.
func (s *Service) reserve(ctx context.Context, b *Booking, store func(context.Context, *Booking) error) error {
	return db.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockStaff(ctx, b.StaffID); err != nil {
			return fmt.Errorf("lock staff schedule: %w", err)
		}
		conflicts, err := s.repo.Overlapping(ctx, b.StaffID, b.StartAt, b.EndAt, b.ID)
		if err != nil {
			return fmt.Errorf("check overlapping bookings: %w", err)
		}
		if len(conflicts) > 0 {
			return &OverlapError{Conflicts: conflicts}
		}
		return store(ctx, b)
	})
}

func (s *Service) Create(ctx context.Context, p auth.Principal, b *Booking) error {
	b.Status = StatusScheduled
	b.CreatedBy = p.UserID
	if err := s.check(ctx, b); err != nil {
		return err
	}
	if err := s.reserve(ctx, b, s.repo.Create); err != nil {
		if errors.Is(err, ErrOverlap) {
			zerolog.Ctx(ctx).Info().Str("staff_id", b.StaffID).Msg("booking rejected: overlapping slot")
		}
		return err
	}
	s.publish(ctx, p, b.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Booking, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, validation.Errors{"status": "must be one of: scheduled, completed, cancelled, missed"}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, validation.Errors{"to": "must not be before from"}
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Update reschedules a booking. Status and creator are kept.
func (s *Service) Update(ctx context.Context, p auth.Principal, b *Booking) error {
	existing, err := s.repo.GetByID(ctx, b.ID)
	if err != nil {
		return err
	}
	if existing.Status != StatusScheduled {
		return ErrNotScheduled
	}
	b.Status = existing.Status
	b.CreatedBy = existing.CreatedBy
	b.CreatedAt = existing.CreatedAt
	if err := s.check(ctx, b); err != nil {
		return err
	}
	if err := s.reserve(ctx, b, s.repo.Update); err != nil {
		return err
	}
	s.publish(ctx, p, b.ID, eventbus.ActionUpdated)
	return nil
}

// SetStatus completes, cancels or marks a scheduled booking as missed.
// A cancelled booking frees its slot. Staff other than managers may only
// change their own bookings.
func (s *Service) SetStatus(ctx context.Context, p auth.Principal, id uuid.UUID, to Status, notes string) (*Booking, error) {
	if !validStatuses[to] {
		return nil, validation.Errors{"status": "must be one of: scheduled, completed, cancelled, missed"}
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.StaffID != p.UserID && !p.IsAdmin() && !p.HasRole(auth.RoleManager) {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	if notes != "" {
		b.Notes = notes
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	s.publish(ctx, p, b.ID, eventbus.ActionUpdated)
	return b, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, p, id, eventbus.ActionDeleted)
	return nil
}
