package careplan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/domain/clients"
	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/pdf"
	"github.com/carehub/carehub/internal/platform/validation"
)

var (
	ErrInvalidTransition = errors.New("care plan status transition is not allowed")
	ErrArchived          = errors.New("archived care plans cannot be changed")
)

// ClientDirectory resolves the client a plan belongs to.
type ClientDirectory interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clients.Client, error)
}

type Service struct {
	carePlans CarePlanRepository
	clients   ClientDirectory
	renderer  pdf.Renderer
	events    eventbus.Publisher
	validate  *validation.Validator
	newID     func() string
	now       func() time.Time
}

func NewService(cp CarePlanRepository, dir ClientDirectory, renderer pdf.Renderer, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{
		carePlans: cp,
		clients:   dir,
		renderer:  renderer,
		events:    events,
		validate:  validation.New(),
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(ctx context.Context, p auth.Principal, id uuid.UUID, action eventbus.Action) {
	s.events.Publish(ctx, eventbus.EntityChanged{
		TenantID: p.TenantID,
		Entity:   eventbus.EntityCarePlan,
		ID:       id.String(),
		Action:   action,
	})
}

// prepare fills item ids and defaults, then validates.
func (s *Service) prepare(cp *CarePlan) error {
	for i := range cp.Needs {
		s.ensureID(&cp.Needs[i].ID)
	}
	for i := range cp.Goals {
		s.ensureID(&cp.Goals[i].ID)
		if cp.Goals[i].Status == "" {
			cp.Goals[i].Status = GoalNotStarted
		}
	}
	for i := range cp.Interventions {
		s.ensureID(&cp.Interventions[i].ID)
	}
	for i := range cp.Risks {
		s.ensureID(&cp.Risks[i].ID)
	}

	errs := s.validate.Struct(cp)
	if !validStatuses[cp.Status] {
		errs.Add("status", "must be one of: draft, active, review, archived")
	}
	for i, g := range cp.Goals {
		if !validGoalStatuses[g.Status] {
			errs.Add(fmt.Sprintf("goals[%d].status", i), "must be one of: not-started, in-progress, achieved")
		}
	}
	for i, r := range cp.Risks {
		if r.Likelihood != "" && !validLevels[r.Likelihood] {
			errs.Add(fmt.Sprintf("risks[%d].likelihood", i), "must be one of: low, medium, high")
		}
		if r.Impact != "" && !validLevels[r.Impact] {
			errs.Add(fmt.Sprintf("risks[%d].impact", i), "must be one of: low, medium, high")
		}
	}
	return errs.Err()
}

func (s *Service) ensureID(id *string) {
	if *id == "" {
		*id = s.newID()
	}
}

func (s *Service) CreateCarePlan(ctx context.Context, p auth.Principal, cp *CarePlan) error {
	if cp.ClientID == uuid.Nil {
		return validation.Errors{"clientId": "is required"}
	}
	if _, err := s.clients.GetClient(ctx, cp.ClientID); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return validation.Errors{"clientId": "does not match a client"}
		}
		return err
	}
	cp.Status = StatusDraft
	cp.SignedOffBy, cp.SignedOffAt = "", nil
	cp.CreatedBy = p.UserID
	if err := s.prepare(cp); err != nil {
		return err
	}
	if err := s.carePlans.Create(ctx, cp); err != nil {
		return fmt.Errorf("create care plan: %w", err)
	}
	s.publish(ctx, p, cp.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) GetCarePlan(ctx context.Context, id uuid.UUID) (*CarePlan, error) {
	return s.carePlans.GetByID(ctx, id)
}

func (s *Service) ListCarePlans(ctx context.Context, f ListFilter, limit, offset int) ([]*CarePlan, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, validation.Errors{"status": "must be one of: draft, active, review, archived"}
	}
	return s.carePlans.List(ctx, f, limit, offset)
}

// DueForReview lists plans whose review date has been reached.
func (s *Service) DueForReview(ctx context.Context, limit, offset int) ([]*CarePlan, int, error) {
	now := s.now()
	return s.carePlans.List(ctx, ListFilter{ReviewDueBefore: &now}, limit, offset)
}

// UpdateCarePlan replaces the plan content. Status, sign-off and
// ownership are kept; any content change clears a previous sign-off.
func (s *Service) UpdateCarePlan(ctx context.Context, p auth.Principal, cp *CarePlan) error {
	existing, err := s.carePlans.GetByID(ctx, cp.ID)
	if err != nil {
		return err
	}
	if existing.Status == StatusArchived {
		return ErrArchived
	}
	cp.ClientID = existing.ClientID
	cp.Status = existing.Status
	cp.CreatedBy = existing.CreatedBy
	cp.CreatedAt = existing.CreatedAt
	cp.SignedOffBy, cp.SignedOffAt = "", nil
	if err := s.prepare(cp); err != nil {
		return err
	}
	if err := s.carePlans.Update(ctx, cp); err != nil {
		return fmt.Errorf("update care plan: %w", err)
	}
	s.publish(ctx, p, cp.ID, eventbus.ActionUpdated)
	return nil
}

func (s *Service) DeleteCarePlan(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if err := s.carePlans.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, p, id, eventbus.ActionDeleted)
	return nil
}

func (s *Service) SetStatus(ctx context.Context, p auth.Principal, id uuid.UUID, to Status) (*CarePlan, error) {
	if !validStatuses[to] {
		return nil, validation.Errors{"status": "must be one of: draft, active, review, archived"}
	}
	cp, err := s.carePlans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cp.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cp.Status, to)
	}
	cp.Status = to
	if err := s.carePlans.Update(ctx, cp); err != nil {
		return nil, fmt.Errorf("update care plan: %w", err)
	}
	s.publish(ctx, p, cp.ID, eventbus.ActionUpdated)
	return cp, nil
}

// Review records the outcome of a review, schedules the next one and
// returns the plan to active.
type Review struct {
	Notes    string     `json:"notes"`
	NextDate *time.Time `json:"nextDate"`
}

func (s *Service) RecordReview(ctx context.Context, p auth.Principal, id uuid.UUID, r Review) (*CarePlan, error) {
	cp, err := s.carePlans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Status == StatusArchived {
		return nil, ErrArchived
	}
	if r.NextDate == nil || !r.NextDate.After(s.now()) {
		return nil, validation.Errors{"nextDate": "must be in the future"}
	}
	cp.ReviewNotes = r.Notes
	cp.ReviewDate = r.NextDate
	if cp.Status == StatusReview {
		cp.Status = StatusActive
	}
	if err := s.carePlans.Update(ctx, cp); err != nil {
		return nil, fmt.Errorf("update care plan: %w", err)
	}
	s.publish(ctx, p, cp.ID, eventbus.ActionUpdated)
	return cp, nil
}

// SignOff records the approving user. A draft becomes active.
func (s *Service) SignOff(ctx context.Context, p auth.Principal, id uuid.UUID) (*CarePlan, error) {
	cp, err := s.carePlans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Status == StatusArchived {
		return nil, ErrArchived
	}
	now := s.now()
	cp.SignedOffBy = p.UserID
	cp.SignedOffAt = &now
	if cp.Status == StatusDraft {
		cp.Status = StatusActive
	}
	if err := s.carePlans.Update(ctx, cp); err != nil {
		return nil, fmt.Errorf("update care plan: %w", err)
	}
	s.publish(ctx, p, cp.ID, eventbus.ActionUpdated)
	return cp, nil
}

// ExportPDF prints the plan with its sections in fixed order.
func (s *Service) ExportPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	cp, err := s.carePlans.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	client, err := s.clients.GetClient(ctx, cp.ClientID)
	if err != nil {
		return nil, "", fmt.Errorf("load client: %w", err)
	}
	now := s.now()
	out, err := s.renderer.Render(ctx, Document(cp, client.DisplayName(), now))
	if err != nil {
		return nil, "", fmt.Errorf("render care plan pdf: %w", err)
	}
	return out, pdf.Filename("care-plan", client.DisplayName(), now), nil
}
