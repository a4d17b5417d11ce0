package medication

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
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/validation"
)

var (
	ErrAlreadyRecorded = errors.New("dose has already been recorded")
	ErrForbidden       = errors.New("only managers can correct or remove a recorded dose")
)

// ClientDirectory resolves the client a dose is scheduled for.
type ClientDirectory interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clients.Client, error)
}

type Service struct {
	repo     Repository
	clients  ClientDirectory
	events   eventbus.Publisher
	validate *validation.Validator
	now      func() time.Time
}

func NewService(repo Repository, dir ClientDirectory, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{
		repo:     repo,
		clients:  dir,
		events:   events,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(ctx context.Context, p auth.Principal, id uuid.UUID, action eventbus.Action) {
	s.events.Publish(ctx, eventbus.EntityChanged{
		TenantID: p.TenantID,
		Entity:   eventbus.EntityMedication,
		ID:       id.String(),
		Action:   action,
	})
}

func canCorrect(p auth.Principal) bool {
	return p.IsAdmin() || p.HasRole(auth.RoleManager)
}

func (s *Service) checkClient(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validation.Errors{"clientId": "is required"}
	}
	if _, err := s.clients.GetClient(ctx, id); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return validation.Errors{"clientId": "does not match a client"}
		}
		return err
	}
	return nil
}

// Schedule adds a dose to the client's chart.
func (s *Service) Schedule(ctx context.Context, p auth.Principal, a *Administration) error {
	if err := s.checkClient(ctx, a.ClientID); err != nil {
		return err
	}
	a.Status = StatusScheduled
	a.AdministeredAt = nil
	a.AdministeredBy = ""
	if err := s.validate.Struct(a).Err(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("create medication administration: %w", err)
	}
	s.publish(ctx, p, a.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Administration, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]*Administration, error) {
	if !to.After(from) {
		return nil, validation.Errors{"to": "must be after from"}
	}
	return s.repo.ListByClient(ctx, clientID, from, to)
}

func (s *Service) checkOutcome(o Outcome) error {
	errs := validation.Errors{}
	if !validOutcomes[o.Status] {
		errs.Add("status", "must be one of: given, refused, omitted, not-given")
	}
	if o.Status != StatusGiven && o.Status != "" && strings.TrimSpace(o.Notes) == "" {
		errs.Add("notes", "a reason is required when the dose is not given")
	}
	if o.AdministeredAt != nil && o.AdministeredAt.After(s.now().Add(5*time.Minute)) {
		errs.Add("administeredAt", "must not be in the future")
	}
	return errs.Err()
}

// Record sets the outcome of a scheduled dose. A dose is recorded once;
// managers may overwrite a recorded outcome to correct it.
func (s *Service) Record(ctx context.Context, p auth.Principal, id uuid.UUID, o Outcome) (*Administration, error) {
	if err := s.checkOutcome(o); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled && !canCorrect(p) {
		return nil, ErrAlreadyRecorded
	}
	corrected := a.Status != StatusScheduled

	a.Status = o.Status
	a.Notes = o.Notes
	a.AdministeredBy = p.UserID
	a.AdministeredAt = nil
	if o.Status == StatusGiven {
		at := s.now()
		if o.AdministeredAt != nil {
			at = *o.AdministeredAt
		}
		a.AdministeredAt = &at
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update medication administration: %w", err)
	}
	if corrected {
		zerolog.Ctx(ctx).Info().
			Str("administration_id", a.ID.String()).
			Str("user_id", p.UserID).
			Str("status", string(a.Status)).
			Msg("recorded dose corrected")
	}
	s.publish(ctx, p, a.ID, eventbus.ActionUpdated)
	return a, nil
}

// Delete removes a dose from the chart. Recorded doses can only be removed
// by managers.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != StatusScheduled && !canCorrect(p) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, p, id, eventbus.ActionDeleted)
	return nil
}

// DailyChart builds the client's chart for the calendar day of day in loc.
func (s *Service) DailyChart(ctx context.Context, clientID uuid.UUID, day time.Time, loc *time.Location) (*Chart, error) {
	if loc == nil {
		loc = time.UTC
	}
	from, to := DayBounds(day, loc)
	doses, err := s.repo.ListByClient(ctx, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load doses: %w", err)
	}
	return BuildChart(clientID, from, doses, s.now()), nil
}
