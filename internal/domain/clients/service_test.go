package clients

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/blobstore"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/validation"
)

type mockClientRepo struct {
	store map[uuid.UUID]*Client
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{store: make(map[uuid.UUID]*Client)}
}

func (m *mockClientRepo) nhsTaken(c *Client) bool {
	if c.NHSNumber == nil {
		return false
	}
	for id, other := range m.store {
		if id != c.ID && other.NHSNumber != nil && *other.NHSNumber == *c.NHSNumber {
			return true
		}
	}
	return false
}

func (m *mockClientRepo) Create(_ context.Context, c *Client) error {
	c.ID = uuid.New()
	if m.nhsTaken(c) {
		return ErrDuplicateNHS
	}
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockClientRepo) GetByID(_ context.Context, id uuid.UUID) (*Client, error) {
	c, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockClientRepo) Update(_ context.Context, c *Client) error {
	if _, ok := m.store[c.ID]; !ok {
		return ErrNotFound
	}
	if m.nhsTaken(c) {
		return ErrDuplicateNHS
	}
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockClientRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockClientRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Client, int, error) {
	var r []*Client
	for _, c := range m.store {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		r = append(r, c)
	}
	return r, len(r), nil
}

type mockAgreementRepo struct {
	store map[uuid.UUID]*Agreement
	fail  error
}

func newMockAgreementRepo() *mockAgreementRepo {
	return &mockAgreementRepo{store: make(map[uuid.UUID]*Agreement)}
}

func (m *mockAgreementRepo) Create(_ context.Context, a *Agreement) error {
	if m.fail != nil {
		return m.fail
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	cp.Attachment = nil
	m.store[a.ID] = &cp
	return nil
}

func (m *mockAgreementRepo) GetByID(_ context.Context, id uuid.UUID) (*Agreement, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, ErrAgreementNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAgreementRepo) Update(_ context.Context, a *Agreement) error {
	if _, ok := m.store[a.ID]; !ok {
		return ErrAgreementNotFound
	}
	cp := *a
	cp.Attachment = nil
	m.store[a.ID] = &cp
	return nil
}

func (m *mockAgreementRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrAgreementNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockAgreementRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]*Agreement, error) {
	var r []*Agreement
	for _, a := range m.store {
		if a.ClientID == clientID {
			cp := *a
			r = append(r, &cp)
		}
	}
	return r, nil
}

var testPrincipal = auth.Principal{UserID: "manager-1", TenantID: "acme", Roles: []string{auth.RoleManager}}

type testDeps struct {
	agreements *mockAgreementRepo
	blobs      *blobstore.MemoryStore
	events     *eventbus.Recorder
}

func newTestService() (*Service, testDeps) {
	deps := testDeps{agreements: newMockAgreementRepo(), blobs: blobstore.NewMemoryStore(), events: &eventbus.Recorder{}}
	return NewService(newMockClientRepo(), deps.agreements, deps.blobs, deps.events), deps
}

func strPtr(s string) *string { return &s }

func createClient(t *testing.T, svc *Service) *Client {
	t.Helper()
	c := &Client{FirstName: "Margaret", LastName: "Hughes", NHSNumber: strPtr("943 476 5919")}
	if err := svc.CreateClient(context.Background(), testPrincipal, c); err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

// document returns a parsed upload of size bytes.
func document(t *testing.T, name, contentType string, size int) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="document"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(bytes.Repeat([]byte("x"), size))
	w.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(64 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["document"][0]
}

func TestService_CreateClient(t *testing.T) {
	svc, deps := newTestService()
	c := createClient(t, svc)
	if c.Status != StatusActive {
		t.Errorf("expected default status active, got %s", c.Status)
	}
	if *c.NHSNumber != "9434765919" {
		t.Errorf("expected normalized NHS number, got %s", *c.NHSNumber)
	}
	if evt := deps.events.Last(); evt.Entity != eventbus.EntityClient || evt.Action != eventbus.ActionCreated {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestService_CreateClient_Validation(t *testing.T) {
	svc, _ := newTestService()
	future := time.Now().AddDate(1, 0, 0)
	c := &Client{LastName: "Hughes", NHSNumber: strPtr("1234567890"), Status: "archived", DateOfBirth: &future}
	err := svc.CreateClient(context.Background(), testPrincipal, c)
	ve, ok := validation.As(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	for _, field := range []string{"firstName", "nhsNumber", "status", "dateOfBirth"} {
		if _, ok := ve[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, ve)
		}
	}
}

func TestService_CreateClient_DuplicateNHS(t *testing.T) {
	svc, _ := newTestService()
	createClient(t, svc)
	dup := &Client{FirstName: "Peggy", LastName: "Hughes", NHSNumber: strPtr("9434765919")}
	if err := svc.CreateClient(context.Background(), testPrincipal, dup); !errors.Is(err, ErrDuplicateNHS) {
		t.Errorf("expected ErrDuplicateNHS, got %v", err)
	}
}

func TestService_UpdateClient(t *testing.T) {
	svc, _ := newTestService()
	c := createClient(t, svc)
	upd := &Client{ID: c.ID, FirstName: "Margaret", LastName: "Hughes", Status: StatusDischarged}
	if err := svc.UpdateClient(context.Background(), testPrincipal, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetClient(context.Background(), c.ID)
	if got.Status != StatusDischarged {
		t.Errorf("expected discharged, got %s", got.Status)
	}

	missing := &Client{ID: uuid.New(), FirstName: "A", LastName: "B"}
	if err := svc.UpdateClient(context.Background(), testPrincipal, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListClients_BadStatus(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ListClients(context.Background(), ListFilter{Status: "gone"}, 20, 0); err == nil {
		t.Error("expected validation error")
	}
}

func newAgreement() *Agreement {
	return &Agreement{Title: "Tenancy agreement", StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestService_CreateAgreement_WithDocument(t *testing.T) {
	svc, deps := newTestService()
	c := createClient(t, svc)
	a := newAgreement()
	doc := document(t, "tenancy.pdf", "application/pdf", 15*blobstore.MB)

	if err := svc.CreateAgreement(context.Background(), testPrincipal, c.ID, a, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != AgreementDraft || a.AttachmentID == nil || a.Attachment == nil {
		t.Fatalf("unexpected agreement %+v", a)
	}
	if a.Attachment.OwnerID != a.ID.String() || a.Attachment.Owner != AttachmentOwner {
		t.Errorf("document should be owned by the agreement, got %+v", a.Attachment)
	}

	got, err := svc.GetAgreement(context.Background(), testPrincipal, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attachment == nil || got.Attachment.FileName != "tenancy.pdf" {
		t.Errorf("expected attachment metadata on read, got %+v", got.Attachment)
	}
	if deps.events.Last().Entity != eventbus.EntityAgreement {
		t.Error("expected agreement event")
	}
}

func TestService_CreateAgreement_DocumentTooLarge(t *testing.T) {
	svc, deps := newTestService()
	c := createClient(t, svc)
	doc := document(t, "scan.pdf", "application/pdf", blobstore.AgreementMaxSize+1)

	err := svc.CreateAgreement(context.Background(), testPrincipal, c.ID, newAgreement(), doc)
	if !errors.Is(err, blobstore.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if len(deps.agreements.store) != 0 {
		t.Error("agreement must not be stored when the document is rejected")
	}
}

func TestService_CreateAgreement_StoreFailureDropsDocument(t *testing.T) {
	svc, deps := newTestService()
	c := createClient(t, svc)
	deps.agreements.fail = errors.New("db down")
	a := newAgreement()

	if err := svc.CreateAgreement(context.Background(), testPrincipal, c.ID, a, document(t, "a.pdf", "application/pdf", 10)); err == nil {
		t.Fatal("expected error")
	}
	atts, _ := deps.blobs.ListByOwner(context.Background(), "acme", AttachmentOwner, a.ID.String())
	if len(atts) != 0 {
		t.Error("orphaned document should be deleted")
	}
}

func TestService_CreateAgreement_Validation(t *testing.T) {
	svc, _ := newTestService()
	c := createClient(t, svc)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Agreement{StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: &end, Status: "void"}
	ve, ok := validation.As(svc.CreateAgreement(context.Background(), testPrincipal, c.ID, a, nil))
	if !ok {
		t.Fatal("expected validation errors")
	}
	for _, field := range []string{"title", "endDate", "status"} {
		if _, ok := ve[field]; !ok {
			t.Errorf("expected error for %s, got %v", field, ve)
		}
	}
}

func TestService_CreateAgreement_UnknownClient(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateAgreement(context.Background(), testPrincipal, uuid.New(), newAgreement(), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ReplaceDocument(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	c := createClient(t, svc)
	a := newAgreement()
	svc.CreateAgreement(ctx, testPrincipal, c.ID, a, document(t, "v1.pdf", "application/pdf", 10))
	first := *a.AttachmentID

	got, err := svc.ReplaceDocument(ctx, testPrincipal, a.ID, document(t, "v2.pdf", "application/pdf", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Attachment.FileName != "v2.pdf" {
		t.Errorf("expected v2, got %s", got.Attachment.FileName)
	}
	if _, err := deps.blobs.Stat(ctx, "acme", first); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Error("previous document should be deleted")
	}
}

func TestService_UpdateAgreement_KeepsDocument(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c := createClient(t, svc)
	a := newAgreement()
	svc.CreateAgreement(ctx, testPrincipal, c.ID, a, document(t, "v1.pdf", "application/pdf", 10))

	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	upd := &Agreement{ID: a.ID, Title: "Tenancy agreement", StartDate: a.StartDate, EndDate: &end, Status: AgreementEnded}
	if err := svc.UpdateAgreement(ctx, testPrincipal, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.AttachmentID == nil || *upd.AttachmentID != *a.AttachmentID || upd.ClientID != c.ID {
		t.Errorf("document and client must be kept, got %+v", upd)
	}
}

func TestService_DeleteClient_DropsDocuments(t *testing.T) {
	svc, deps := newTestService()
	ctx := context.Background()
	c := createClient(t, svc)
	a := newAgreement()
	svc.CreateAgreement(ctx, testPrincipal, c.ID, a, document(t, "v1.pdf", "application/pdf", 10))

	if err := svc.DeleteClient(ctx, testPrincipal, c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := deps.blobs.Stat(ctx, "acme", *a.AttachmentID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Error("agreement documents should be deleted with the client")
	}
}
