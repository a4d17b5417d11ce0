package clients

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/blobstore"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/validation"
)

// AttachmentOwner is the blob owner name for agreement documents.
const AttachmentOwner = "agreement"

type Service struct {
	clients    Repository
	agreements AgreementRepository
	blobs      blobstore.Store
	events     eventbus.Publisher
	validate   *validation.Validator
	now        func() time.Time
}

func NewService(clients Repository, agreements AgreementRepository, blobs blobstore.Store, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{
		clients:    clients,
		agreements: agreements,
		blobs:      blobs,
		events:     events,
		validate:   validation.New(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(ctx context.Context, p auth.Principal, entity string, id uuid.UUID, action eventbus.Action) {
	s.events.Publish(ctx, eventbus.EntityChanged{
		TenantID: p.TenantID,
		Entity:   entity,
		ID:       id.String(),
		Action:   action,
	})
}

// -- Clients --

func (s *Service) checkClient(c *Client) error {
	c.NHSNumber = NormalizeNHSNumber(c.NHSNumber)
	errs := s.validate.Struct(c)
	if c.Status == "" {
		c.Status = StatusActive
	}
	if !validStatuses[c.Status] {
		errs.Add("status", "must be one of: active, inactive, discharged")
	}
	if c.NHSNumber != nil && !ValidNHSNumber(*c.NHSNumber) {
		errs.Add("nhsNumber", "is not a valid NHS number")
	}
	if c.DateOfBirth != nil && c.DateOfBirth.After(s.now()) {
		errs.Add("dateOfBirth", "must not be in the future")
	}
	return errs.Err()
}

func (s *Service) CreateClient(ctx context.Context, p auth.Principal, c *Client) error {
	if err := s.checkClient(c); err != nil {
		return err
	}
	if err := s.clients.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateNHS) {
			return err
		}
		return fmt.Errorf("create client: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityClient, c.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.clients.GetByID(ctx, id)
}

func (s *Service) ListClients(ctx context.Context, f ListFilter, limit, offset int) ([]*Client, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, validation.Errors{"status": "must be one of: active, inactive, discharged"}
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.clients.List(ctx, f, limit, offset)
}

func (s *Service) UpdateClient(ctx context.Context, p auth.Principal, c *Client) error {
	existing, err := s.clients.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt
	if err := s.checkClient(c); err != nil {
		return err
	}
	if err := s.clients.Update(ctx, c); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateNHS) {
			return err
		}
		return fmt.Errorf("update client: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityClient, c.ID, eventbus.ActionUpdated)
	return nil
}

// DeleteClient removes the client and the documents of its agreements.
func (s *Service) DeleteClient(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	agreements, err := s.agreements.ListByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("list agreements: %w", err)
	}
	if err := s.clients.Delete(ctx, id); err != nil {
		return err
	}
	for _, a := range agreements {
		s.dropAttachment(ctx, p, a.AttachmentID)
	}
	s.publish(ctx, p, eventbus.EntityClient, id, eventbus.ActionDeleted)
	return nil
}

// -- Agreements --

func (s *Service) checkAgreement(a *Agreement) error {
	errs := s.validate.Struct(a)
	if a.Status == "" {
		a.Status = AgreementDraft
	}
	if !validAgreementStatuses[a.Status] {
		errs.Add("status", "must be one of: draft, active, ended")
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		errs.Add("endDate", "must not be before startDate")
	}
	if a.Status == AgreementEnded && a.EndDate == nil {
		errs.Add("endDate", "is required when the agreement has ended")
	}
	return errs.Err()
}

// CreateAgreement stores the optional document first so that a rejected
// upload leaves nothing behind.
func (s *Service) CreateAgreement(ctx context.Context, p auth.Principal, clientID uuid.UUID, a *Agreement, doc *multipart.FileHeader) error {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return err
	}
	a.ClientID = clientID
	a.CreatedBy = p.UserID
	if err := s.checkAgreement(a); err != nil {
		return err
	}

	a.ID = uuid.New()
	if doc != nil {
		meta, err := s.putDocument(ctx, p, a.ID, doc)
		if err != nil {
			return err
		}
		a.AttachmentID = &meta.ID
		a.Attachment = meta
	}

	if err := s.agreements.Create(ctx, a); err != nil {
		s.dropAttachment(ctx, p, a.AttachmentID)
		return fmt.Errorf("create agreement: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityAgreement, a.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) putDocument(ctx context.Context, p auth.Principal, agreementID uuid.UUID, doc *multipart.FileHeader) (*blobstore.Metadata, error) {
	return blobstore.PutFile(ctx, s.blobs, blobstore.AgreementPolicy, blobstore.Metadata{
		TenantID:  p.TenantID,
		Owner:     AttachmentOwner,
		OwnerID:   agreementID.String(),
		CreatedBy: p.UserID,
	}, doc)
}

func (s *Service) dropAttachment(ctx context.Context, p auth.Principal, id *string) {
	if id == nil {
		return
	}
	if err := s.blobs.Delete(ctx, p.TenantID, *id); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("blob_id", *id).Msg("delete agreement document")
	}
}

func (s *Service) withAttachment(ctx context.Context, p auth.Principal, a *Agreement) {
	if a.AttachmentID == nil {
		return
	}
	meta, err := s.blobs.Stat(ctx, p.TenantID, *a.AttachmentID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("agreement_id", a.ID.String()).Msg("agreement document missing")
		return
	}
	a.Attachment = meta
}

func (s *Service) GetAgreement(ctx context.Context, p auth.Principal, id uuid.UUID) (*Agreement, error) {
	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.withAttachment(ctx, p, a)
	return a, nil
}

func (s *Service) ListAgreements(ctx context.Context, p auth.Principal, clientID uuid.UUID) ([]*Agreement, error) {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	items, err := s.agreements.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, a := range items {
		s.withAttachment(ctx, p, a)
	}
	return items, nil
}

// UpdateAgreement edits the agreement fields. The document is replaced
// through ReplaceDocument.
func (s *Service) UpdateAgreement(ctx context.Context, p auth.Principal, a *Agreement) error {
	existing, err := s.agreements.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	a.ClientID = existing.ClientID
	a.AttachmentID = existing.AttachmentID
	a.CreatedBy = existing.CreatedBy
	a.CreatedAt = existing.CreatedAt
	if err := s.checkAgreement(a); err != nil {
		return err
	}
	if err := s.agreements.Update(ctx, a); err != nil {
		return err
	}
	s.withAttachment(ctx, p, a)
	s.publish(ctx, p, eventbus.EntityAgreement, a.ID, eventbus.ActionUpdated)
	return nil
}

// ReplaceDocument uploads a new document and drops the previous one.
func (s *Service) ReplaceDocument(ctx context.Context, p auth.Principal, id uuid.UUID, doc *multipart.FileHeader) (*Agreement, error) {
	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	meta, err := s.putDocument(ctx, p, a.ID, doc)
	if err != nil {
		return nil, err
	}
	previous := a.AttachmentID
	a.AttachmentID = &meta.ID
	if err := s.agreements.Update(ctx, a); err != nil {
		s.dropAttachment(ctx, p, a.AttachmentID)
		return nil, err
	}
	s.dropAttachment(ctx, p, previous)
	a.Attachment = meta
	s.publish(ctx, p, eventbus.EntityAgreement, a.ID, eventbus.ActionUpdated)
	return a, nil
}

func (s *Service) DeleteAgreement(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	a, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.agreements.Delete(ctx, id); err != nil {
		return err
	}
	s.dropAttachment(ctx, p, a.AttachmentID)
	s.publish(ctx, p, eventbus.EntityAgreement, id, eventbus.ActionDeleted)
	return nil
}
