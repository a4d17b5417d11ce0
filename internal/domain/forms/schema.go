package forms

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carehub/carehub/internal/platform/validation"
)

const DefaultSubmitLabel = "Submit"

type Autosave struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	IntervalSeconds int  `json:"intervalSeconds" yaml:"intervalSeconds"`
}

type Redirect struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
}

type Settings struct {
	ShowProgressBar bool     `json:"showProgressBar" yaml:"showProgressBar"`
	AllowDraft      bool     `json:"allowDraft" yaml:"allowDraft"`
	Autosave        Autosave `json:"autosave" yaml:"autosave"`
	Redirect        Redirect `json:"redirect" yaml:"redirect"`
	SubmitLabel     string   `json:"submitLabel" yaml:"submitLabel"`
}

func DefaultSettings() Settings {
	return Settings{
		ShowProgressBar: true,
		AllowDraft:      true,
		Autosave:        Autosave{Enabled: true, IntervalSeconds: 30},
		SubmitLabel:     DefaultSubmitLabel,
	}
}

// Schema maps to the form_schema table.
type Schema struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Elements    []Element `json:"elements"`
	Settings    Settings  `json:"settings"`
	Published   bool      `json:"published"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Normalize fills defaults and restores contiguous ordering in every scope.
func (s *Schema) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	if strings.TrimSpace(s.Settings.SubmitLabel) == "" {
		s.Settings.SubmitLabel = DefaultSubmitLabel
	}
	if s.Elements == nil {
		s.Elements = []Element{}
	}
	normalizeOrders(s.Elements)
}

func normalizeOrders(scope []Element) {
	renumber(scope)
	for _, e := range scope {
		if sp, ok := e.Props.(*SectionProps); ok {
			normalizeOrders(sp.Children)
		}
	}
}

// Validate reports every invariant violation keyed by field path.
func (s *Schema) Validate() validation.Errors {
	errs := validation.Errors{}
	if strings.TrimSpace(s.Title) == "" {
		errs.Add("title", "is required")
	}
	if s.Settings.Autosave.Enabled && s.Settings.Autosave.IntervalSeconds <= 0 {
		errs.Add("settings.autosave.intervalSeconds", "must be greater than 0 when autosave is enabled")
	}
	if s.Settings.Redirect.Enabled {
		u, err := url.Parse(s.Settings.Redirect.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("settings.redirect.url", "must be an absolute http(s) URL when redirect is enabled")
		}
	}
	seen := map[string]string{}
	validateScope(errs, "elements", s.Elements, seen)
	return errs
}

// ValidateElements checks element invariants without schema-level fields.
func ValidateElements(elements []Element) validation.Errors {
	errs := validation.Errors{}
	validateScope(errs, "elements", elements, map[string]string{})
	return errs
}

func validateScope(errs validation.Errors, path string, scope []Element, seen map[string]string) {
	orders := map[int]bool{}
	for i, e := range scope {
		p := fmt.Sprintf("%s[%d]", path, i)
		if e.ID == "" {
			errs.Add(p+".id", "is required")
		} else if prev, dup := seen[e.ID]; dup {
			errs.Add(p+".id", fmt.Sprintf("duplicates the id of %s", prev))
		} else {
			seen[e.ID] = p
		}
		if orders[e.Order] {
			errs.Add(p+".order", "must be unique within its parent")
		}
		orders[e.Order] = true

		if !e.Type.Valid() {
			errs.Add(p+".type", fmt.Sprintf("unknown element type %q", e.Type))
			continue
		}
		if e.Props == nil {
			errs.Add(p, "is missing its type properties")
			continue
		}
		if reflect.TypeOf(e.Props) != reflect.TypeOf(emptyProps(e.Type)) {
			errs.Add(p, fmt.Sprintf("has properties that do not match type %q", e.Type))
			continue
		}
		if strings.TrimSpace(e.Label) == "" && !e.Type.IsLayout() {
			errs.Add(p+".label", "is required")
		}

		switch props := e.Props.(type) {
		case *InputProps, *SignatureProps, *ParagraphProps, *DividerProps:
		case *ChoiceProps:
			if len(props.Options) == 0 {
				errs.Add(p+".options", "must contain at least one option")
			}
			optIDs := map[string]bool{}
			for j, o := range props.Options {
				if o.ID == "" {
					errs.Add(fmt.Sprintf("%s.options[%d].id", p, j), "is required")
				} else if optIDs[o.ID] {
					errs.Add(fmt.Sprintf("%s.options[%d].id", p, j), "must be unique within the element")
				}
				optIDs[o.ID] = true
				if strings.TrimSpace(o.Label) == "" {
					errs.Add(fmt.Sprintf("%s.options[%d].label", p, j), "is required")
				}
			}
		case *FileProps:
			for j, a := range props.Accept {
				if strings.TrimSpace(a) == "" {
					errs.Add(fmt.Sprintf("%s.accept[%d]", p, j), "must not be empty")
				}
			}
		case *HeadingProps:
			if props.Level < 1 || props.Level > 6 {
				errs.Add(p+".level", "must be between 1 and 6")
			}
		case *SectionProps:
			validateScope(errs, p+".children", props.Children, seen)
		}
	}
}
