package events

import (
	"bytes"
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
	"github.com/carehub/carehub/internal/platform/pdf"
	"github.com/carehub/carehub/internal/platform/validation"
)

// AttachmentOwner is the blob owner name for event attachments.
const AttachmentOwner = "event"

// maxExportRows bounds a single CSV or list export.
const maxExportRows = 10000

var (
	ErrInvalidTransition = errors.New("status transition is not allowed")
	ErrPointNotFound     = errors.New("body map point not found")
	ErrForbidden         = errors.New("only administrators may delete events")
)

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	renderer pdf.Renderer
	diagrams *DiagramResolver
	events   eventbus.Publisher
	validate *validation.Validator
	newID    func() string
	now      func() time.Time

	exportLimit int
}

func NewService(repo Repository, blobs blobstore.Store, renderer pdf.Renderer, diagrams *DiagramResolver, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{
		repo:     repo,
		blobs:    blobs,
		renderer: renderer,
		diagrams: diagrams,
		events:   events,
		validate: validation.New(),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },

		exportLimit: maxExportRows,
	}
}

func (s *Service) publish(ctx context.Context, p auth.Principal, id uuid.UUID, action eventbus.Action) {
	s.events.Publish(ctx, eventbus.EntityChanged{
		TenantID: p.TenantID,
		Entity:   eventbus.EntityEvent,
		ID:       id.String(),
		Action:   action,
	})
}

func (s *Service) check(e *Event) error {
	errs := s.validate.Struct(e)
	if e.Type != "" && !validTypes[e.Type] {
		errs.Add("type", "is not a known event type")
	}
	if e.Category != "" && !validCategories[e.Category] {
		errs.Add("category", "is not a known category")
	}
	if e.Severity != "" && !validSeverities[e.Severity] {
		errs.Add("severity", "is not a known severity")
	}
	if e.OccurredAt.After(s.now().Add(5 * time.Minute)) {
		errs.Add("occurredAt", "must not be in the future")
	}
	for i, pt := range e.BodyMapPoints {
		errs.Merge(fmt.Sprintf("bodyMapPoints[%d].", i), ValidatePoint(pt))
	}
	return errs.Err()
}

// AttachmentFailure names an upload that was not stored.
type AttachmentFailure struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// CreateResult reports a stored event. Partial is set when the event was
// saved but one or more attachments were not.
type CreateResult struct {
	Event   *Event              `json:"event"`
	Partial bool                `json:"partial"`
	Failed  []AttachmentFailure `json:"failed,omitempty"`
}

// Create stores a new open event and then its attachments. Attachment
// failures do not undo the event.
func (s *Service) Create(ctx context.Context, p auth.Principal, e *Event, files []*multipart.FileHeader) (*CreateResult, error) {
	e.Status = StatusOpen
	if e.ReportedBy == "" {
		e.ReportedBy = p.UserID
	}
	for i := range e.BodyMapPoints {
		s.preparePoint(&e.BodyMapPoints[i])
	}
	if err := s.check(e); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.publish(ctx, p, e.ID, eventbus.ActionCreated)

	res := &CreateResult{Event: e}
	res.Failed = s.attach(ctx, p, e, files)
	res.Partial = len(res.Failed) > 0
	return res, nil
}

// AddAttachments stores further files on an existing event.
func (s *Service) AddAttachments(ctx context.Context, p auth.Principal, id uuid.UUID, files []*multipart.FileHeader) (*CreateResult, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &CreateResult{Event: e}
	res.Failed = s.attach(ctx, p, e, files)
	res.Partial = len(res.Failed) > 0
	if len(res.Failed) < len(files) {
		s.publish(ctx, p, e.ID, eventbus.ActionUpdated)
	}
	return res, nil
}

func (s *Service) attach(ctx context.Context, p auth.Principal, e *Event, files []*multipart.FileHeader) []AttachmentFailure {
	var failed []AttachmentFailure
	for _, fh := range files {
		meta, err := blobstore.PutFile(ctx, s.blobs, blobstore.EventAttachmentPolicy, blobstore.Metadata{
			TenantID:  p.TenantID,
			Owner:     AttachmentOwner,
			OwnerID:   e.ID.String(),
			CreatedBy: p.UserID,
		}, fh)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("event_id", e.ID.String()).
				Str("file", fh.Filename).
				Msg("attachment not stored")
			failed = append(failed, AttachmentFailure{FileName: fh.Filename, Reason: attachmentReason(err)})
			continue
		}
		e.Attachments = append(e.Attachments, meta)
	}
	return failed
}

func attachmentReason(err error) string {
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return "file exceeds the 10 MB limit"
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return "file type is not allowed"
	case errors.Is(err, blobstore.ErrMissingFileName):
		return "file name is required"
	}
	return "upload failed"
}

func (s *Service) preparePoint(pt *BodyMapPoint) {
	if pt.ID == "" {
		pt.ID = s.newID()
	}
	if pt.Color == "" {
		pt.Color = SeverityColor(pt.Severity)
	}
}

// Get returns the event with its attachment list.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	atts, err := s.blobs.ListByOwner(ctx, p.TenantID, AttachmentOwner, id.String())
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	e.Attachments = atts
	return e, nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Patch carries field edits. Nil fields are left unchanged.
type Patch struct {
	Type            *Type          `json:"type,omitempty"`
	Category        *Category      `json:"category,omitempty"`
	Severity        *Severity      `json:"severity,omitempty"`
	Title           *string        `json:"title,omitempty"`
	Description     *string        `json:"description,omitempty"`
	ImmediateAction *string        `json:"immediateAction,omitempty"`
	Location        *string        `json:"location,omitempty"`
	OccurredAt      *time.Time     `json:"occurredAt,omitempty"`
	ClientID        *uuid.UUID     `json:"clientId,omitempty"`
	BranchID        *string        `json:"branchId,omitempty"`
	StaffInvolved   *[]string      `json:"staffInvolved,omitempty"`
	Witnesses       *[]string      `json:"witnesses,omitempty"`
	FollowUp        *FollowUp      `json:"followUp,omitempty"`
	Investigation   *Investigation `json:"investigation,omitempty"`
}

func (pt Patch) apply(e *Event) {
	if pt.Type != nil {
		e.Type = *pt.Type
	}
	if pt.Category != nil {
		e.Category = *pt.Category
	}
	if pt.Severity != nil {
		e.Severity = *pt.Severity
	}
	if pt.Title != nil {
		e.Title = *pt.Title
	}
	if pt.Description != nil {
		e.Description = *pt.Description
	}
	if pt.ImmediateAction != nil {
		e.ImmediateAction = *pt.ImmediateAction
	}
	if pt.Location != nil {
		e.Location = *pt.Location
	}
	if pt.OccurredAt != nil {
		e.OccurredAt = *pt.OccurredAt
	}
	if pt.ClientID != nil {
		id := *pt.ClientID
		e.ClientID = &id
	}
	if pt.BranchID != nil {
		e.BranchID = *pt.BranchID
	}
	if pt.StaffInvolved != nil {
		e.StaffInvolved = append([]string(nil), (*pt.StaffInvolved)...)
	}
	if pt.Witnesses != nil {
		e.Witnesses = append([]string(nil), (*pt.Witnesses)...)
	}
	if pt.FollowUp != nil {
		e.FollowUp = *pt.FollowUp
	}
	if pt.Investigation != nil {
		e.Investigation = *pt.Investigation
	}
}

// mutate loads an event, applies fn, validates and stores it.
func (s *Service) mutate(ctx context.Context, p auth.Principal, id uuid.UUID, fn func(e *Event) error) (*Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	if err := s.check(e); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	s.publish(ctx, p, e.ID, eventbus.ActionUpdated)
	return e, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, patch Patch) (*Event, error) {
	return s.mutate(ctx, p, id, func(e *Event) error {
		patch.apply(e)
		return nil
	})
}

// Transition moves an event along its status lifecycle.
func (s *Service) Transition(ctx context.Context, p auth.Principal, id uuid.UUID, to Status) (*Event, error) {
	if !validStatuses[to] {
		return nil, validation.Errors{"status": "is not a known status"}
	}
	return s.mutate(ctx, p, id, func(e *Event) error {
		if !CanTransition(e.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, e.Status, to)
		}
		e.Status = to
		if to == StatusClosed && e.FollowUp.Required && e.FollowUp.CompletedAt == nil {
			return validation.Errors{"followUp.completedAt": "follow-up must be completed before closing"}
		}
		return nil
	})
}

// NotificationUpdate sets compliance flags. Marking a party notified
// stamps the time; clearing it removes the stamp.
type NotificationUpdate struct {
	NotifiableToRegulator *bool `json:"notifiableToRegulator,omitempty"`
	RegulatorNotified     *bool `json:"regulatorNotified,omitempty"`
	FamilyNotified        *bool `json:"familyNotified,omitempty"`
	RIDDORReportable      *bool `json:"riddorReportable,omitempty"`
}

func (s *Service) SetNotifications(ctx context.Context, p auth.Principal, id uuid.UUID, u NotificationUpdate) (*Event, error) {
	return s.mutate(ctx, p, id, func(e *Event) error {
		c := &e.Compliance
		now := s.now()
		if u.NotifiableToRegulator != nil {
			c.NotifiableToRegulator = *u.NotifiableToRegulator
		}
		if u.RIDDORReportable != nil {
			c.RIDDORReportable = *u.RIDDORReportable
		}
		if u.RegulatorNotified != nil {
			c.RegulatorNotified, c.RegulatorNotifiedAt = stamp(*u.RegulatorNotified, c.RegulatorNotified, c.RegulatorNotifiedAt, now)
		}
		if u.FamilyNotified != nil {
			c.FamilyNotified, c.FamilyNotifiedAt = stamp(*u.FamilyNotified, c.FamilyNotified, c.FamilyNotifiedAt, now)
		}
		return nil
	})
}

func stamp(want, had bool, at *time.Time, now time.Time) (bool, *time.Time) {
	switch {
	case !want:
		return false, nil
	case had && at != nil:
		return true, at
	default:
		return true, &now
	}
}

// Delete removes the event and its attachments. Admin only.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	atts, err := s.blobs.ListByOwner(ctx, p.TenantID, AttachmentOwner, id.String())
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event_id", id.String()).Msg("list attachments for delete")
	}
	for _, a := range atts {
		if err := s.blobs.Delete(ctx, p.TenantID, a.ID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("blob_id", a.ID).Msg("delete attachment")
		}
	}
	s.publish(ctx, p, id, eventbus.ActionDeleted)
	return nil
}

// -- Body map --

func (s *Service) AddPoint(ctx context.Context, p auth.Principal, id uuid.UUID, pt BodyMapPoint) (*Event, BodyMapPoint, error) {
	pt.ID = ""
	s.preparePoint(&pt)
	if err := ValidatePoint(pt).Err(); err != nil {
		return nil, BodyMapPoint{}, err
	}
	e, err := s.mutate(ctx, p, id, func(e *Event) error {
		e.BodyMapPoints = append(e.BodyMapPoints, pt)
		return nil
	})
	if err != nil {
		return nil, BodyMapPoint{}, err
	}
	return e, pt, nil
}

// PointPatch edits a placed point. Coordinates are moved only when both
// are given.
type PointPatch struct {
	X           *float64  `json:"x,omitempty"`
	Y           *float64  `json:"y,omitempty"`
	Side        *Side     `json:"side,omitempty"`
	InjuryType  *string   `json:"injuryType,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
}

func (s *Service) UpdatePoint(ctx context.Context, p auth.Principal, id uuid.UUID, pointID string, patch PointPatch) (*Event, error) {
	return s.mutate(ctx, p, id, func(e *Event) error {
		i := pointIndex(e.BodyMapPoints, pointID)
		if i < 0 {
			return ErrPointNotFound
		}
		pt := &e.BodyMapPoints[i]
		if patch.X != nil && patch.Y != nil {
			pt.X, pt.Y = *patch.X, *patch.Y
		}
		if patch.Side != nil {
			pt.Side = *patch.Side
		}
		if patch.InjuryType != nil {
			pt.InjuryType = *patch.InjuryType
		}
		if patch.Severity != nil {
			pt.Severity = *patch.Severity
		}
		if patch.Description != nil {
			pt.Description = *patch.Description
		}
		if patch.Color != nil {
			pt.Color = *patch.Color
		}
		return nil
	})
}

func (s *Service) RemovePoint(ctx context.Context, p auth.Principal, id uuid.UUID, pointID string) (*Event, error) {
	return s.mutate(ctx, p, id, func(e *Event) error {
		i := pointIndex(e.BodyMapPoints, pointID)
		if i < 0 {
			return ErrPointNotFound
		}
		e.BodyMapPoints = append(e.BodyMapPoints[:i], e.BodyMapPoints[i+1:]...)
		return nil
	})
}

func pointIndex(points []BodyMapPoint, id string) int {
	for i, pt := range points {
		if pt.ID == id {
			return i
		}
	}
	return -1
}

// Diagram resolves the body map image for side.
func (s *Service) Diagram(ctx context.Context, side Side) (Diagram, error) {
	if side != SideFront && side != SideBack {
		return Diagram{}, validation.Errors{"side": "must be one of: front, back"}
	}
	return s.diagrams.Resolve(ctx, side), nil
}

// -- Export --

// CSVExport is a rendered event log. Total counts every matching event;
// Truncated is set when more matched than the export holds.
type CSVExport struct {
	Data      []byte
	Filename  string
	Rows      int
	Total     int
	Truncated bool
}

// ExportCSV writes the events matching f, newest first, up to the export
// row limit.
func (s *Service) ExportCSV(ctx context.Context, f Filter) (*CSVExport, error) {
	items, total, err := s.repo.List(ctx, f, s.exportLimit, 0)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, items); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	if total > len(items) {
		zerolog.Ctx(ctx).Warn().
			Int("rows", len(items)).
			Int("total", total).
			Msg("event export truncated")
	}
	return &CSVExport{
		Data:      buf.Bytes(),
		Filename:  CSVFilename(s.now()),
		Rows:      len(items),
		Total:     total,
		Truncated: total > len(items),
	}, nil
}

// ExportPDF prints one event.
func (s *Service) ExportPDF(ctx context.Context, p auth.Principal, id uuid.UUID) ([]byte, string, error) {
	e, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	out, err := s.renderer.Render(ctx, Document(e, now))
	if err != nil {
		return nil, "", fmt.Errorf("render event pdf: %w", err)
	}
	name := e.Title
	if strings.TrimSpace(name) == "" {
		name = e.ID.String()
	}
	return out, pdf.Filename("event", name, now), nil
}
