package forms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/eventbus"
	"github.com/carehub/carehub/internal/platform/validation"
)

var (
	ErrElementNotFound = errors.New("form element not found")
	ErrNotPublished    = errors.New("form is not published")
	ErrSubmitted       = errors.New("submission is already final")
)

type Service struct {
	schemas     SchemaRepository
	submissions SubmissionRepository
	events      eventbus.Publisher
	newID       func() string
	now         func() time.Time
}

func NewService(schemas SchemaRepository, submissions SubmissionRepository, events eventbus.Publisher) *Service {
	if events == nil {
		events = eventbus.Nop{}
	}
	return &Service{
		schemas:     schemas,
		submissions: submissions,
		events:      events,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
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

// -- Schemas --

func (s *Service) CreateSchema(ctx context.Context, p auth.Principal, sc *Schema) error {
	if sc.Settings == (Settings{}) {
		sc.Settings = DefaultSettings()
	}
	sc.Normalize()
	if err := sc.Validate().Err(); err != nil {
		return err
	}
	sc.CreatedBy = p.UserID
	if err := s.schemas.Create(ctx, sc); err != nil {
		return fmt.Errorf("create form: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityForm, sc.ID, eventbus.ActionCreated)
	return nil
}

func (s *Service) GetSchema(ctx context.Context, id uuid.UUID) (*Schema, error) {
	return s.schemas.GetByID(ctx, id)
}

func (s *Service) ListSchemas(ctx context.Context, publishedOnly bool, limit, offset int) ([]*Schema, int, error) {
	return s.schemas.List(ctx, publishedOnly, limit, offset)
}

// UpdateSchema replaces the editable content of a form. Publication state
// and authorship are kept.
func (s *Service) UpdateSchema(ctx context.Context, p auth.Principal, sc *Schema) error {
	existing, err := s.schemas.GetByID(ctx, sc.ID)
	if err != nil {
		return err
	}
	sc.Published = existing.Published
	sc.CreatedBy = existing.CreatedBy
	sc.CreatedAt = existing.CreatedAt
	sc.Normalize()
	if err := sc.Validate().Err(); err != nil {
		return err
	}
	if err := s.schemas.Update(ctx, sc); err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityForm, sc.ID, eventbus.ActionUpdated)
	return nil
}

func (s *Service) DeleteSchema(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if err := s.schemas.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, p, eventbus.EntityForm, id, eventbus.ActionDeleted)
	return nil
}

// SetPublished publishes or withdraws a form. Publishing re-validates the
// whole schema.
func (s *Service) SetPublished(ctx context.Context, p auth.Principal, id uuid.UUID, published bool) (*Schema, error) {
	sc, err := s.schemas.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if published {
		if err := sc.Validate().Err(); err != nil {
			return nil, err
		}
	}
	sc.Published = published
	if err := s.schemas.Update(ctx, sc); err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityForm, sc.ID, eventbus.ActionUpdated)
	return sc, nil
}

// Design loads a form, applies fn to a designer over its elements and
// stores the result. Nothing is written when fn fails or the tree does not
// validate.
func (s *Service) Design(ctx context.Context, p auth.Principal, id uuid.UUID, fn func(d *Designer) error) (*Schema, error) {
	sc, err := s.schemas.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := NewDesigner(sc.Elements, WithIDGenerator(s.newID))
	if err := fn(d); err != nil {
		return nil, err
	}
	sc.Elements = d.Elements()
	if err := sc.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.schemas.Update(ctx, sc); err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityForm, sc.ID, eventbus.ActionUpdated)
	return sc, nil
}

// AddElement appends a new element at the top level or, with parentID,
// inside a section.
func (s *Service) AddElement(ctx context.Context, p auth.Principal, formID uuid.UUID, t ElementType, parentID string) (*Schema, Element, error) {
	if !t.Valid() {
		return nil, Element{}, validation.Errors{"type": fmt.Sprintf("unknown element type %q", t)}
	}
	var added Element
	sc, err := s.Design(ctx, p, formID, func(d *Designer) error {
		if parentID == "" {
			added = d.AddElement(t)
			return nil
		}
		if t == TypeSection {
			return validation.Errors{"type": "sections cannot be nested"}
		}
		var ok bool
		if added, ok = d.AddChild(parentID, t); !ok {
			return fmt.Errorf("%w: section %s", ErrElementNotFound, parentID)
		}
		return nil
	})
	return sc, added, err
}

func (s *Service) UpdateElement(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID string, patch Patch) (*Schema, error) {
	return s.Design(ctx, p, formID, func(d *Designer) error {
		if !d.UpdateElement(elementID, patch) {
			return fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
		}
		return nil
	})
}

func (s *Service) RemoveElement(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID string) (*Schema, error) {
	return s.Design(ctx, p, formID, func(d *Designer) error {
		if !d.RemoveElement(elementID) {
			return fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
		}
		return nil
	})
}

func (s *Service) DuplicateElement(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID string) (*Schema, Element, error) {
	var dup Element
	sc, err := s.Design(ctx, p, formID, func(d *Designer) error {
		var ok bool
		if dup, ok = d.DuplicateElement(elementID); !ok {
			return fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
		}
		return nil
	})
	return sc, dup, err
}

// ReorderElements applies a new sequence of element ids to the top level or
// to the children of parentID. ids must be a permutation of the scope.
func (s *Service) ReorderElements(ctx context.Context, p auth.Principal, formID uuid.UUID, parentID string, ids []string) (*Schema, error) {
	return s.Design(ctx, p, formID, func(d *Designer) error {
		scope := d.Elements()
		if parentID != "" {
			parent, ok := d.Find(parentID)
			if !ok || parent.Type != TypeSection {
				return fmt.Errorf("%w: section %s", ErrElementNotFound, parentID)
			}
			scope = parent.Children()
		}
		seq, err := permute(scope, ids)
		if err != nil {
			return err
		}
		if parentID == "" {
			d.ReorderElements(seq)
		} else {
			d.ReorderChildren(parentID, seq)
		}
		return nil
	})
}

func permute(scope []Element, ids []string) ([]Element, error) {
	if len(ids) != len(scope) {
		return nil, validation.Errors{"ids": fmt.Sprintf("must list all %d elements of the scope", len(scope))}
	}
	byID := make(map[string]Element, len(scope))
	for _, e := range scope {
		byID[e.ID] = e
	}
	seq := make([]Element, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, validation.Errors{"ids": fmt.Sprintf("contains unknown or repeated id %q", id)}
		}
		delete(byID, id)
		seq = append(seq, e)
	}
	return seq, nil
}

func (s *Service) MoveElement(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID string, index int) (*Schema, error) {
	return s.Design(ctx, p, formID, func(d *Designer) error {
		if !d.MoveElement(elementID, index) {
			return fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
		}
		return nil
	})
}

func (s *Service) AddOption(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID string) (*Schema, Option, error) {
	var added Option
	sc, err := s.Design(ctx, p, formID, func(d *Designer) error {
		var ok bool
		if added, ok = d.AddOption(elementID); !ok {
			return choiceLookupError(d, elementID)
		}
		return nil
	})
	return sc, added, err
}

func (s *Service) UpdateOption(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID, optionID string, patch OptionPatch) (*Schema, error) {
	return s.Design(ctx, p, formID, func(d *Designer) error {
		if !d.UpdateOption(elementID, optionID, patch) {
			if err := choiceLookupError(d, elementID); err != nil {
				return err
			}
			return fmt.Errorf("%w: option %s", ErrElementNotFound, optionID)
		}
		return nil
	})
}

// RemoveOption leaves the element unchanged when optionID is its last
// option.
func (s *Service) RemoveOption(ctx context.Context, p auth.Principal, formID uuid.UUID, elementID, optionID string) (*Schema, error) {
	return s.Design(ctx, p, formID, func(d *Designer) error {
		if err := choiceLookupError(d, elementID); err != nil {
			return err
		}
		e, _ := d.Find(elementID)
		if !CanRemoveOption(e) {
			return nil
		}
		if !d.RemoveOption(elementID, optionID) {
			return fmt.Errorf("%w: option %s", ErrElementNotFound, optionID)
		}
		return nil
	})
}

func choiceLookupError(d *Designer, elementID string) error {
	e, ok := d.Find(elementID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
	}
	if !e.Type.IsChoice() {
		return validation.Errors{"elementId": "is not a choice element"}
	}
	return nil
}

// Panel describes the property panel of one element.
func (s *Service) Panel(ctx context.Context, formID uuid.UUID, elementID string) (Panel, error) {
	sc, err := s.schemas.GetByID(ctx, formID)
	if err != nil {
		return Panel{}, err
	}
	e, ok := findElement(sc.Elements, elementID)
	if !ok {
		return Panel{}, fmt.Errorf("%w: %s", ErrElementNotFound, elementID)
	}
	return PanelFor(e), nil
}

// -- Rendering and preview --

// PreviewResult is what the preview pane shows for a set of answers.
type PreviewResult struct {
	Progress int               `json:"progress"`
	Errors   validation.Errors `json:"errors,omitempty"`
	Nodes    []Node            `json:"nodes"`
}

// Render draws the designer canvas, or the filled-in form when preview is
// set.
func (s *Service) Render(ctx context.Context, formID uuid.UUID, preview bool, values map[string]interface{}) ([]Node, error) {
	sc, err := s.schemas.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	return RenderAll(sc.Elements, RenderOptions{Preview: preview, Values: values}), nil
}

func (s *Service) Preview(ctx context.Context, formID uuid.UUID, values map[string]interface{}) (*PreviewResult, error) {
	sc, err := s.schemas.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	sess := NewSession(*sc)
	for id, v := range values {
		// unknown ids surface through Validate
		_ = sess.SetValue(id, v)
	}
	errs := ValidateValues(sc.Elements, values)
	return &PreviewResult{
		Progress: sess.Progress(),
		Errors:   errs,
		Nodes:    sess.Render(errs),
	}, nil
}

// -- Submissions --

type SubmitRequest struct {
	ClientID *uuid.UUID             `json:"clientId,omitempty"`
	Values   map[string]interface{} `json:"values"`
	Draft    bool                   `json:"draft"`
}

// Submit stores a draft or final submission for a published form.
func (s *Service) Submit(ctx context.Context, p auth.Principal, formID uuid.UUID, req SubmitRequest) (*Submission, error) {
	sc, err := s.schemas.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !sc.Published {
		return nil, ErrNotPublished
	}
	sess, err := sessionWith(sc, req.Values)
	if err != nil {
		return nil, err
	}
	sub, err := sess.Submission(req.Draft, p.UserID, s.now())
	if err != nil {
		return nil, err
	}
	sub.ClientID = req.ClientID
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityFormSubmission, sub.ID, eventbus.ActionCreated)
	return sub, nil
}

// UpdateDraft replaces the values of a draft and optionally finalises it.
func (s *Service) UpdateDraft(ctx context.Context, p auth.Principal, id uuid.UUID, req SubmitRequest) (*Submission, error) {
	existing, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != SubmissionDraft {
		return nil, ErrSubmitted
	}
	sc, err := s.schemas.GetByID(ctx, existing.FormID)
	if err != nil {
		return nil, err
	}
	sess, err := sessionWith(sc, req.Values)
	if err != nil {
		return nil, err
	}
	sub, err := sess.Submission(req.Draft, existing.SubmittedBy, s.now())
	if err != nil {
		return nil, err
	}
	sub.ID = existing.ID
	sub.ClientID = existing.ClientID
	sub.CreatedAt = existing.CreatedAt
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	s.publish(ctx, p, eventbus.EntityFormSubmission, sub.ID, eventbus.ActionUpdated)
	return sub, nil
}

func sessionWith(sc *Schema, values map[string]interface{}) (*Session, error) {
	sess := NewSession(*sc)
	errs := validation.Errors{}
	for id, v := range values {
		if err := sess.SetValue(id, v); err != nil {
			errs.Add("values."+id, "is not a field of this form")
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.submissions.GetByID(ctx, id)
}

func (s *Service) ListSubmissions(ctx context.Context, formID uuid.UUID, limit, offset int) ([]*Submission, int, error) {
	return s.submissions.ListByForm(ctx, formID, limit, offset)
}

// -- Templates --

// Import creates an unpublished form from a JSON or YAML template.
func (s *Service) Import(ctx context.Context, p auth.Principal, data []byte) (*Schema, error) {
	t, err := ParseTemplate(data)
	if err != nil {
		var unknown *UnknownTypeError
		if errors.As(err, &unknown) {
			return nil, validation.Errors{"elements": unknown.Error()}
		}
		return nil, validation.Errors{"file": err.Error()}
	}
	sc := t.Schema()
	if err := s.CreateSchema(ctx, p, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Service) Export(ctx context.Context, formID uuid.UUID) ([]byte, *Schema, error) {
	sc, err := s.schemas.GetByID(ctx, formID)
	if err != nil {
		return nil, nil, err
	}
	out, err := TemplateOf(sc).YAML()
	if err != nil {
		return nil, nil, err
	}
	return out, sc, nil
}
