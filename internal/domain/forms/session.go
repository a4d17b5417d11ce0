package forms

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/carehub/carehub/internal/platform/validation"
)

var (
	ErrUnknownElement = errors.New("unknown form element")
	ErrLayoutElement  = errors.New("layout elements do not take values")
	ErrDraftDisabled  = errors.New("drafts are disabled for this form")
)

// Session simulates filling in a form: it tracks values and reports
// progress and inline validation messages.
type Session struct {
	schema Schema
	values map[string]interface{}
}

func NewSession(s Schema) *Session {
	return &Session{schema: s, values: map[string]interface{}{}}
}

// SetValue records the answer for an input element anywhere in the tree.
func (s *Session) SetValue(elementID string, v interface{}) error {
	e, ok := findElement(s.schema.Elements, elementID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, elementID)
	}
	if e.Type.IsLayout() {
		return fmt.Errorf("%w: %s", ErrLayoutElement, elementID)
	}
	if v == nil {
		delete(s.values, elementID)
		return nil
	}
	s.values[elementID] = v
	return nil
}

func (s *Session) Value(elementID string) interface{} {
	return s.values[elementID]
}

// Values returns a copy of the current answers.
func (s *Session) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Session) Progress() int {
	return Progress(s.schema.Elements, s.values)
}

// Validate returns inline messages keyed by element id.
func (s *Session) Validate() validation.Errors {
	return ValidateValues(s.schema.Elements, s.values)
}

// Render draws the form in preview mode bound to the session values.
// Edits made through Node.Change are written back to the session.
func (s *Session) Render(errs validation.Errors) []Node {
	return RenderAll(s.schema.Elements, RenderOptions{
		Preview: true,
		Values:  s.values,
		Errors:  errs,
		OnChange: func(id string, v interface{}) {
			_ = s.SetValue(id, v)
		},
	})
}

// Submission builds the record to store. A final submission must pass
// validation; a draft is accepted as is when the form allows drafts.
func (s *Session) Submission(draft bool, submittedBy string, now time.Time) (*Submission, error) {
	sub := &Submission{
		FormID:      s.schema.ID,
		Values:      s.Values(),
		Progress:    s.Progress(),
		Status:      SubmissionSubmitted,
		SubmittedBy: submittedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if draft {
		if !s.schema.Settings.AllowDraft {
			return nil, ErrDraftDisabled
		}
		sub.Status = SubmissionDraft
		return sub, nil
	}
	if err := s.Validate().Err(); err != nil {
		return nil, err
	}
	sub.SubmittedAt = &now
	return sub, nil
}

// ValidateValues checks answers against the element tree: required inputs
// must be present, typed inputs must parse and choice answers must name
// one of the element's options. Keys that match no input are rejected.
func ValidateValues(elements []Element, values map[string]interface{}) validation.Errors {
	errs := validation.Errors{}
	inputs := map[string]bool{}
	walk(elements, func(e Element, _ int) {
		if e.Type.IsLayout() {
			return
		}
		inputs[e.ID] = true
		v, present := values[e.ID], IsPresent(values[e.ID])
		if !present {
			if e.Required {
				errs.Add(e.ID, "is required")
			}
			return
		}
		if msg := checkValue(e, v); msg != "" {
			errs.Add(e.ID, msg)
		}
	})
	for id := range values {
		if !inputs[id] {
			errs.Add(id, "is not a field of this form")
		}
	}
	return errs
}

func checkValue(e Element, v interface{}) string {
	switch e.Type {
	case TypeText, TypeTextarea, TypeTel, TypeSignature:
		if _, ok := v.(string); !ok {
			return "must be text"
		}
	case TypeEmail:
		s, ok := v.(string)
		if !ok || !validation.Var(s, "email") {
			return "must be a valid email address"
		}
	case TypeNumber:
		switch x := v.(type) {
		case float64, float32, int, int64:
		case string:
			if _, err := strconv.ParseFloat(x, 64); err != nil {
				return "must be a number"
			}
		default:
			return "must be a number"
		}
	case TypeDate:
		s, _ := v.(string)
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	case TypeTime:
		s, _ := v.(string)
		if _, err := time.Parse("15:04", s); err != nil {
			return "must be a time (HH:MM)"
		}
	case TypeRadio, TypeSelect:
		s, ok := v.(string)
		if !ok || !hasOptionValue(e, s) {
			return "must be one of the listed options"
		}
	case TypeCheckbox, TypeMultiselect:
		list, ok := asStringList(v)
		if !ok {
			return "must be a list of options"
		}
		for _, s := range list {
			if !hasOptionValue(e, s) {
				return fmt.Sprintf("contains unknown option %q", s)
			}
		}
	case TypeFile:
		fp, _ := e.Props.(*FileProps)
		if list, ok := asStringList(v); ok && len(list) > 1 && fp != nil && !fp.Multiple {
			return "accepts a single file"
		}
	}
	return ""
}

func hasOptionValue(e Element, value string) bool {
	for _, o := range e.Options() {
		if o.Value == value {
			return true
		}
	}
	return false
}

func asStringList(v interface{}) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
