package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/blobstore"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/pdf"
	"github.com/carehub/carehub/internal/platform/validation"
)

type mockRepo struct {
	store map[uuid.UUID]*Event
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Event)}
}

func clone(e *Event) *Event {
	cp := *e
	cp.BodyMapPoints = append([]BodyMapPoint(nil), e.BodyMapPoints...)
	cp.StaffInvolved = append([]string(nil), e.StaffInvolved...)
	cp.Witnesses = append([]string(nil), e.Witnesses...)
	cp.Attachments = nil
	return &cp
}

func (m *mockRepo) Create(_ context.Context, e *Event) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	m.store[e.ID] = clone(e)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Event, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *mockRepo) Update(_ context.Context, e *Event) error {
	if _, ok := m.store[e.ID]; !ok {
		return ErrNotFound
	}
	m.store[e.ID] = clone(e)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	var all []*Event
	for _, e := range m.store {
		all = append(all, clone(e))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OccurredAt.After(all[j].OccurredAt) })
	matched := f.Apply(all)
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

var testPrincipal = auth.Principal{UserID: "carer-1", TenantID: "acme", Roles: []string{auth.RoleCarer}}

var adminPrincipal = auth.Principal{UserID: "admin-1", TenantID: "acme", Roles: []string{auth.RoleAdmin}}

type testDeps struct {
	repo   *mockRepo
	blobs  *blobstore.MemoryStore
	events *eventbus.Recorder
}

func newTestService() (*Service, testDeps) {
	deps := testDeps{repo: newMockRepo(), blobs: blobstore.NewMemoryStore(), events: &eventbus.Recorder{}}
	renderer := pdf.RendererFunc(func(_ context.Context, doc pdf.Document) ([]byte, error) {
		return []byte("%PDF " + doc.Title), nil
	})
	diagrams := NewDiagramResolver(failing("broken"), []string{"broken", "front.png"}, []string{"back.png"})
	svc := NewService(deps.repo, deps.blobs, renderer, diagrams, deps.events)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("pt-%d", n)
	}
	return svc, deps
}

func newEvent() *Event {
	return &Event{
		Type:       TypeAccident,
		Category:   CategoryFall,
		Severity:   SeverityMedium,
		Title:      "Slipped in bathroom",
		OccurredAt: time.Now().UTC().Add(-time.Hour),
	}
}

type testFile struct {
	name, contentType string
	content           []byte
}

// fileHeaders builds parsed multipart headers the way a request would
// deliver them.
func fileHeaders(t *testing.T, files ...testFile) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="attachments"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.content)
	}
	w.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["attachments"]
}

func TestService_Create(t *testing.T) {
	svc, deps := newTestService()
	res, err := svc.Create(context.Background(), testPrincipal, newEvent(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Partial || res.Event.Status != StatusOpen || res.Event.ReportedBy != "carer-1" {
		t.Errorf("unexpected result %+v", res)
	}
	evt := deps.events.Last()
	if evt.Entity != eventbus.EntityEvent || evt.Action != eventbus.ActionCreated || evt.TenantID != "acme" {
		t.Errorf("unexpected published event %+v", evt)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, deps := newTestService()
	e := newEvent()
	e.Title = ""
	e.Type = "fire"
	e.BodyMapPoints = []BodyMapPoint{{X: 150, Side: SideFront, InjuryType: "cut"}}

	_, err := svc.Create(context.Background(), testPrincipal, e, nil)
	ve, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	for _, field := range []string{"title", "type", "bodyMapPoints[0].x"} {
		if _, ok := ve[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, ve)
		}
	}
	if len(deps.repo.store) != 0 {
		t.Error("nothing should be stored on validation failure")
	}
}

func TestService_Create_AssignsPointIDs(t *testing.T) {
	svc, _ := newTestService()
	e := newEvent()
	e.BodyMapPoints = []BodyMapPoint{{X: 10, Y: 10, Side: SideFront, InjuryType: "graze", Severity: SeverityLow}}
	res, err := svc.Create(context.Background(), testPrincipal, e, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pt := res.Event.BodyMapPoints[0]
	if pt.ID == "" || pt.Color != SeverityColor(SeverityLow) {
		t.Errorf("expected id and colour assigned, got %+v", pt)
	}
}

func TestService_Create_PartialAttachments(t *testing.T) {
	svc, deps := newTestService()
	files := fileHeaders(t,
		testFile{"photo.png", "image/png", []byte("png-bytes")},
		testFile{"script.sh", "application/x-sh", []byte("#!/bin/sh")},
		testFile{"huge.pdf", "application/pdf", bytes.Repeat([]byte("a"), blobstore.EventAttachmentMaxSize+1)},
	)

	res, err := svc.Create(context.Background(), testPrincipal, newEvent(), files)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Partial {
		t.Error("expected partial result")
	}
	if len(res.Failed) != 2 || res.Failed[0].FileName != "script.sh" || res.Failed[1].FileName != "huge.pdf" {
		t.Errorf("unexpected failures %+v", res.Failed)
	}
	if len(res.Event.Attachments) != 1 || res.Event.Attachments[0].FileName != "photo.png" {
		t.Errorf("expected the png stored, got %+v", res.Event.Attachments)
	}
	if len(deps.repo.store) != 1 {
		t.Error("event should be stored despite failed attachments")
	}

	got, err := svc.Get(context.Background(), testPrincipal, res.Event.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Attachments) != 1 {
		t.Errorf("expected 1 attachment on read, got %d", len(got.Attachments))
	}
}

func TestService_Get_OtherTenantAttachments(t *testing.T) {
	svc, _ := newTestService()
	files := fileHeaders(t, testFile{"note.txt", "text/plain", []byte("hello")})
	res, _ := svc.Create(context.Background(), testPrincipal, newEvent(), files)

	other := testPrincipal
	other.TenantID = "globex"
	got, err := svc.Get(context.Background(), other, res.Event.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Attachments) != 0 {
		t.Error("attachments of another tenant must not be listed")
	}
}

func createEvent(t *testing.T, svc *Service) *Event {
	t.Helper()
	res, err := svc.Create(context.Background(), testPrincipal, newEvent(), nil)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return res.Event
}

func TestService_Update(t *testing.T) {
	svc, _ := newTestService()
	e := createEvent(t, svc)

	title := "Slipped on wet floor"
	sev := SeverityHigh
	staff := []string{"carer-2"}
	got, err := svc.Update(context.Background(), testPrincipal, e.ID, Patch{Title: &title, Severity: &sev, StaffInvolved: &staff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != title || got.Severity != SeverityHigh || got.StaffInvolved[0] != "carer-2" {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.Category != CategoryFall {
		t.Error("unpatched fields must be kept")
	}
}

func TestService_Update_Invalid(t *testing.T) {
	svc, _ := newTestService()
	e := createEvent(t, svc)
	bad := Severity("extreme")
	_, err := svc.Update(context.Background(), testPrincipal, e.ID, Patch{Severity: &bad})
	if _, ok := validation.As(err); !ok {
		t.Errorf("expected validation error, got %v", err)
	}
	stored, _ := svc.repo.GetByID(context.Background(), e.ID)
	if stored.Severity != SeverityMedium {
		t.Error("invalid patch must not be stored")
	}
}

func TestService_Transition(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc)

	for _, to := range []Status{StatusUnderReview, StatusResolved, StatusClosed} {
		got, err := svc.Transition(ctx, testPrincipal, e.ID, to)
		if err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
		if got.Status != to {
			t.Errorf("expected %s, got %s", to, got.Status)
		}
	}

	if _, err := svc.Transition(ctx, testPrincipal, e.ID, StatusOpen); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("closed events cannot reopen, got %v", err)
	}
}

func TestService_Transition_CloseNeedsFollowUp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc)
	svc.Update(ctx, testPrincipal, e.ID, Patch{FollowUp: &FollowUp{Required: true, Actions: "GP review"}})
	svc.Transition(ctx, testPrincipal, e.ID, StatusResolved)

	_, err := svc.Transition(ctx, testPrincipal, e.ID, StatusClosed)
	if _, ok := validation.As(err); !ok {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusOpen, StatusEscalated, true},
		{StatusOpen, StatusClosed, false},
		{StatusEscalated, StatusUnderReview, true},
		{StatusResolved, StatusUnderReview, true},
		{StatusClosed, StatusOpen, false},
		{StatusUnderReview, StatusOpen, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestService_SetNotifications(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc)
	yes, no := true, false

	got, err := svc.SetNotifications(ctx, testPrincipal, e.ID, NotificationUpdate{RegulatorNotified: &yes, FamilyNotified: &yes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Compliance.RegulatorNotified || got.Compliance.RegulatorNotifiedAt == nil || got.Compliance.FamilyNotifiedAt == nil {
		t.Errorf("expected notification stamps, got %+v", got.Compliance)
	}
	first := *got.Compliance.RegulatorNotifiedAt

	got, _ = svc.SetNotifications(ctx, testPrincipal, e.ID, NotificationUpdate{RegulatorNotified: &yes, FamilyNotified: &no})
	if !got.Compliance.RegulatorNotifiedAt.Equal(first) {
		t.Error("re-marking notified should keep the first stamp")
	}
	if got.Compliance.FamilyNotified || got.Compliance.FamilyNotifiedAt != nil {
		t.Error("clearing should remove the stamp")
	}
}

func TestService_Delete(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	files := fileHeaders(t, testFile{"note.txt", "text/plain", []byte("hello")})
	res, _ := svc.Create(ctx, testPrincipal, newEvent(), files)

	if err := svc.Delete(ctx, testPrincipal, res.Event.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin delete should be forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, adminPrincipal, res.Event.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.repo.GetByID(ctx, res.Event.ID); !errors.Is(err, ErrNotFound) {
		t.Error("event should be gone")
	}
	atts, _ := deps.blobs.ListByOwner(ctx, "acme", AttachmentOwner, res.Event.ID.String())
	if len(atts) != 0 {
		t.Error("attachments should be deleted with the event")
	}
	if deps.events.Last().Action != eventbus.ActionDeleted {
		t.Error("expected deleted event published")
	}
}

func TestService_BodyMapPoints(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc)

	_, pt, err := svc.AddPoint(ctx, testPrincipal, e.ID, BodyMapPoint{X: 50, Y: 50, Side: SideBack, InjuryType: "bruise", Severity: SeverityCritical})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pt.ID == "" || pt.Color != SeverityColor(SeverityCritical) {
		t.Errorf("unexpected point %+v", pt)
	}

	desc := "left shoulder blade"
	got, err := svc.UpdatePoint(ctx, testPrincipal, e.ID, pt.ID, PointPatch{Description: &desc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BodyMapPoints[0].Description != desc {
		t.Error("description not updated")
	}

	x := 130.0
	y := 10.0
	if _, err := svc.UpdatePoint(ctx, testPrincipal, e.ID, pt.ID, PointPatch{X: &x, Y: &y}); err == nil {
		t.Error("expected validation error for x > 100")
	}

	if _, err := svc.RemovePoint(ctx, testPrincipal, e.ID, "missing"); !errors.Is(err, ErrPointNotFound) {
		t.Errorf("expected ErrPointNotFound, got %v", err)
	}
	got, err = svc.RemovePoint(ctx, testPrincipal, e.ID, pt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.BodyMapPoints) != 0 {
		t.Error("point should be removed")
	}
}

func TestService_AddPoint_Invalid(t *testing.T) {
	svc, _ := newTestService()
	e := createEvent(t, svc)
	_, _, err := svc.AddPoint(context.Background(), testPrincipal, e.ID, BodyMapPoint{X: 50, Y: 50, Side: "top"})
	if _, ok := validation.As(err); !ok {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_Diagram(t *testing.T) {
	svc, _ := newTestService()
	d, err := svc.Diagram(context.Background(), SideFront)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.URL != "front.png" || d.Index != 1 || d.Error {
		t.Errorf("expected the secondary upload, got %+v", d)
	}
	if _, err := svc.Diagram(context.Background(), "side"); err == nil {
		t.Error("expected error for unknown side")
	}
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	createEvent(t, svc)
	inc := newEvent()
	inc.Type = TypeIncident
	svc.Create(ctx, testPrincipal, inc, nil)

	items, total, err := svc.List(ctx, Filter{Type: TypeAccident}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected 1 accident, got %d", total)
	}
}

func TestService_ExportCSV(t *testing.T) {
	svc, _ := newTestService()
	createEvent(t, svc)
	out, err := svc.ExportCSV(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out.Data, []byte("ID,Occurred At,Title")) {
		t.Errorf("unexpected csv %q", out.Data)
	}
	if !bytes.Contains(out.Data, []byte("Slipped in bathroom")) {
		t.Error("expected the event row")
	}
	if out.Filename != CSVFilename(svc.now()) {
		t.Errorf("unexpected filename %q", out.Filename)
	}
	if out.Total != 1 || out.Rows != 1 || out.Truncated {
		t.Errorf("unexpected counts %+v", out)
	}
}

func TestService_ExportCSV_ReportsTruncation(t *testing.T) {
	svc, _ := newTestService()
	svc.exportLimit = 2
	for i := 0; i < 3; i++ {
		createEvent(t, svc)
	}
	out, err := svc.ExportCSV(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rows != 2 || out.Total != 3 || !out.Truncated {
		t.Errorf("expected 2 of 3 rows and a truncated export, got rows=%d total=%d truncated=%v", out.Rows, out.Total, out.Truncated)
	}
	if lines := bytes.Count(out.Data, []byte("\n")); lines != 3 {
		t.Errorf("expected header plus 2 rows, got %d lines", lines)
	}
}

func TestService_ExportPDF(t *testing.T) {
	svc, _ := newTestService()
	e := createEvent(t, svc)
	out, name, err := svc.ExportPDF(context.Background(), testPrincipal, e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "%PDF Slipped in bathroom" {
		t.Errorf("unexpected output %q", out)
	}
	want := pdf.Filename("event", "Slipped in bathroom", svc.now())
	if name != want {
		t.Errorf("expected %q, got %q", want, name)
	}
}
