package news2

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/clients"
	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/querycache"
	"github.com/carehub/carehub/internal/platform/validation"
)

const dashboardKey = "dashboard"

// ErrScoreMismatch is returned when a recorded total disagrees with the
// score computed from a complete set of vital signs.
var ErrScoreMismatch = errors.New("recorded total score does not match the vital signs")

// ClientDirectory resolves the client an observation is recorded for.
type ClientDirectory interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clients.Client, error)
}

type Service struct {
	repo     Repository
	clients  ClientDirectory
	cache    *querycache.Cache
	events   eventbus.Publisher
	validate *validation.Validator
	now      func() time.Time
}

func NewService(repo Repository, dir ClientDirectory, cache *querycache.Cache, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{
		repo:     repo,
		clients:  dir,
		cache:    cache,
		events:   events,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(ctx context.Context, p auth.Principal, id uuid.UUID, action eventbus.Action) {
	s.events.Publish(ctx, eventbus.EntityChanged{
		TenantID: p.TenantID,
		Entity:   eventbus.EntityObservation,
		ID:       id.String(),
		Action:   action,
	})
}

// score fills TotalScore, RiskTier and Breakdown. A complete set of vital
// signs always produces the total; otherwise the recorded total is used
// and the tier follows from it alone.
func (s *Service) score(o *Observation) error {
	b, complete := Score(o)
	switch {
	case complete:
		if o.TotalScore != nil && *o.TotalScore != b.Total() {
			return fmt.Errorf("%w: recorded %d, computed %d", ErrScoreMismatch, *o.TotalScore, b.Total())
		}
		total := b.Total()
		o.TotalScore = &total
		o.Breakdown = &b
		if o.RiskTier == "" {
			o.RiskTier = TierFor(total, b.MaxSingle())
		}
	case o.TotalScore != nil:
		if o.RiskTier == "" {
			o.RiskTier = TierFor(*o.TotalScore, 0)
		}
	default:
		return validation.Errors{"totalScore": "is required unless all vital signs are recorded"}
	}
	return nil
}

func (s *Service) check(o *Observation) error {
	if o.SpO2Scale == 0 {
		o.SpO2Scale = 1
	}
	if o.Consciousness == "" {
		o.Consciousness = Alert
	}
	errs := s.validate.Struct(o)
	if o.SpO2Scale != 1 && o.SpO2Scale != 2 {
		errs.Add("spo2Scale", "must be 1 or 2")
	}
	if !validConsciousness[o.Consciousness] {
		errs.Add("consciousness", "must be one of: A, C, V, P, U")
	}
	if o.RiskTier != "" && !validTiers[o.RiskTier] {
		errs.Add("riskTier", "must be one of: low, medium, high")
	}
	if o.ObservedAt.After(s.now().Add(5 * time.Minute)) {
		errs.Add("observedAt", "must not be in the future")
	}
	return errs.Err()
}

// Record stores an observation for the client.
func (s *Service) Record(ctx context.Context, p auth.Principal, o *Observation) error {
	if _, err := s.clients.GetClient(ctx, o.ClientID); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return validation.Errors{"clientId": "does not match a client"}
		}
		return err
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = s.now()
	}
	if err := s.check(o); err != nil {
		return err
	}
	if err := s.score(o); err != nil {
		return err
	}
	o.RecordedBy = p.UserID
	if err := s.repo.Create(ctx, o); err != nil {
		return fmt.Errorf("create observation: %w", err)
	}
	if o.RiskTier == TierHigh {
		zerolog.Ctx(ctx).Warn().
			Str("client_id", o.ClientID.String()).
			Int("score", *o.TotalScore).
			Msg("high NEWS2 score recorded")
	}
	s.publish(ctx, p, o.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Observation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Observation, int, error) {
	return s.repo.ListByClient(ctx, clientID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, p, id, eventbus.ActionDeleted)
	return nil
}

// Dashboard is cached per tenant until the next observation change.
func (s *Service) Dashboard(ctx context.Context, p auth.Principal) (*Dashboard, error) {
	if s.cache == nil {
		return s.buildDashboard(ctx)
	}
	return querycache.Get(ctx, s.cache, p.TenantID, eventbus.EntityObservation, dashboardKey, s.buildDashboard)
}

func (s *Service) buildDashboard(ctx context.Context) (*Dashboard, error) {
	entries, err := s.repo.LatestPerClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest observations: %w", err)
	}
	d := &Dashboard{Counts: make(map[Tier]int, len(Tiers)), Entries: entries, GeneratedAt: s.now()}
	for _, t := range Tiers {
		d.Counts[t] = 0
	}
	for _, e := range entries {
		d.Counts[e.Observation.RiskTier]++
	}
	sort.SliceStable(d.Entries, func(i, j int) bool {
		a, b := d.Entries[i].Observation, d.Entries[j].Observation
		if *a.TotalScore != *b.TotalScore {
			return *a.TotalScore > *b.TotalScore
		}
		return a.ObservedAt.After(b.ObservedAt)
	})
	return d, nil
}
