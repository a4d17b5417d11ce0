package news2

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/domain/clients"
	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/querycache"
	"github.com/carehub/carehub/internal/platform/validation"
)

type mockRepo struct {
	store      map[uuid.UUID]*Observation
	names      map[uuid.UUID]string
	latestCall int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Observation), names: make(map[uuid.UUID]string)}
}

func (m *mockRepo) Create(_ context.Context, o *Observation) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	c := *o
	m.store[o.ID] = &c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Observation, error) {
	o, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) ListByClient(_ context.Context, clientID uuid.UUID, limit, offset int) ([]*Observation, int, error) {
	var r []*Observation
	for _, o := range m.store {
		if o.ClientID == clientID {
			r = append(r, o)
		}
	}
	sort.Slice(r, func(i, j int) bool { return r[i].ObservedAt.After(r[j].ObservedAt) })
	return r, len(r), nil
}

func (m *mockRepo) LatestPerClient(_ context.Context) ([]*DashboardEntry, error) {
	m.latestCall++
	latest := make(map[uuid.UUID]*Observation)
	for _, o := range m.store {
		if cur, ok := latest[o.ClientID]; !ok || o.ObservedAt.After(cur.ObservedAt) {
			latest[o.ClientID] = o
		}
	}
	var entries []*DashboardEntry
	for id, o := range latest {
		c := *o
		entries = append(entries, &DashboardEntry{ClientName: m.names[id], Observation: &c})
	}
	return entries, nil
}

type mockDirectory map[uuid.UUID]*clients.Client

func (m mockDirectory) GetClient(_ context.Context, id uuid.UUID) (*clients.Client, error) {
	c, ok := m[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return c, nil
}

var testPrincipal = auth.Principal{UserID: "carer-1", TenantID: "acme", Roles: []string{auth.RoleCarer}}

var (
	annID = uuid.MustParse("0b9e3f7a-0000-4000-8000-00000000000a")
	bobID = uuid.MustParse("0b9e3f7a-0000-4000-8000-00000000000b")
)

func newTestService() (*Service, *mockRepo, *eventbus.Bus) {
	repo := newMockRepo()
	repo.names[annID] = "Ann Smith"
	repo.names[bobID] = "Bob Jones"
	dir := mockDirectory{
		annID: {ID: annID, FirstName: "Ann", LastName: "Smith"},
		bobID: {ID: bobID, FirstName: "Bob", LastName: "Jones"},
	}
	cache := querycache.New(time.Minute)
	bus := eventbus.New(64, zerolog.Nop())
	bus.SubscribeSync("querycache", cache)
	return NewService(repo, dir, cache, bus), repo, bus
}

func TestRecord_ComputesScoreAndTier(t *testing.T) {
	svc, _, _ := newTestService()
	o := vitals(22, 94, 120, 105, 38.5)
	o.ClientID = annID
	if err := svc.Record(context.Background(), testPrincipal, o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *o.TotalScore != 5 || o.RiskTier != TierMedium {
		t.Errorf("expected 5/medium, got %d/%s", *o.TotalScore, o.RiskTier)
	}
	if o.Breakdown == nil || o.Breakdown.RespiratoryRate != 2 {
		t.Errorf("unexpected breakdown %+v", o.Breakdown)
	}
	if o.RecordedBy != "carer-1" || o.ObservedAt.IsZero() {
		t.Errorf("unexpected observation %+v", o)
	}
}

func TestRecord_RecordedScoreWithoutVitals(t *testing.T) {
	svc, _, _ := newTestService()
	o := &Observation{ClientID: annID, TotalScore: intp(7)}
	if err := svc.Record(context.Background(), testPrincipal, o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.RiskTier != TierHigh {
		t.Errorf("expected derived high tier, got %s", o.RiskTier)
	}

	explicit := &Observation{ClientID: annID, TotalScore: intp(2), RiskTier: TierMedium}
	if err := svc.Record(context.Background(), testPrincipal, explicit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explicit.RiskTier != TierMedium {
		t.Errorf("recorded tier should be kept, got %s", explicit.RiskTier)
	}
}

func TestRecord_Errors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	ve, ok := validation.As(svc.Record(ctx, testPrincipal, &Observation{ClientID: annID}))
	if !ok || ve["totalScore"] == "" {
		t.Errorf("expected totalScore error, got %v", ve)
	}

	ve, ok = validation.As(svc.Record(ctx, testPrincipal, &Observation{ClientID: uuid.New(), TotalScore: intp(1)}))
	if !ok || ve["clientId"] == "" {
		t.Errorf("expected clientId error, got %v", ve)
	}

	bad := &Observation{ClientID: annID, TotalScore: intp(1), SpO2Scale: 3, Consciousness: "X", RiskTier: "severe"}
	ve, ok = validation.As(svc.Record(ctx, testPrincipal, bad))
	if !ok {
		t.Fatal("expected validation errors")
	}
	for _, field := range []string{"spo2Scale", "consciousness", "riskTier"} {
		if _, ok := ve[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, ve)
		}
	}

	mismatch := vitals(16, 97, 120, 70, 37)
	mismatch.ClientID = annID
	mismatch.TotalScore = intp(4)
	if err := svc.Record(ctx, testPrincipal, mismatch); !errors.Is(err, ErrScoreMismatch) {
		t.Errorf("expected ErrScoreMismatch, got %v", err)
	}
}

func TestDashboard_CachedUntilObservationChanges(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	record := func(client uuid.UUID, o *Observation, at time.Time) {
		t.Helper()
		o.ClientID = client
		o.ObservedAt = at
		if err := svc.Record(ctx, testPrincipal, o); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record(annID, vitals(30, 88, 85, 135, 34.5), now.Add(-2*time.Hour))
	record(annID, vitals(16, 97, 120, 70, 37), now.Add(-time.Hour))
	record(bobID, vitals(22, 94, 120, 105, 38.5), now.Add(-time.Hour))

	d, err := svc.Dashboard(ctx, testPrincipal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.Entries) != 2 {
		t.Fatalf("expected one entry per client, got %d", len(d.Entries))
	}
	if d.Entries[0].ClientName != "Bob Jones" {
		t.Errorf("expected highest score first, got %s", d.Entries[0].ClientName)
	}
	if d.Counts[TierLow] != 1 || d.Counts[TierMedium] != 1 || d.Counts[TierHigh] != 0 {
		t.Errorf("unexpected counts %v", d.Counts)
	}

	if _, err := svc.Dashboard(ctx, testPrincipal); err != nil {
		t.Fatal(err)
	}
	if repo.latestCall != 1 {
		t.Errorf("expected cached dashboard, loaded %d times", repo.latestCall)
	}

	record(annID, vitals(30, 88, 85, 135, 34.5), now)
	d, _ = svc.Dashboard(ctx, testPrincipal)
	if repo.latestCall != 2 {
		t.Errorf("expected reload after new observation, loaded %d times", repo.latestCall)
	}
	if d.Counts[TierHigh] != 1 || d.Entries[0].ClientName != "Ann Smith" {
		t.Errorf("unexpected dashboard after change %+v", d.Counts)
	}

	other := auth.Principal{UserID: "u", TenantID: "other"}
	svc.Dashboard(ctx, other)
	if repo.latestCall != 3 {
		t.Errorf("dashboards are cached per tenant, loaded %d times", repo.latestCall)
	}
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	o := &Observation{ClientID: annID, TotalScore: intp(1)}
	svc.Record(ctx, testPrincipal, o)

	if err := svc.Delete(ctx, testPrincipal, o.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
