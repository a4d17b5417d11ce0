package forms

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Template is the portable form definition used for import and export.
type Template struct {
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Settings    Settings  `json:"settings" yaml:"settings"`
	Elements    []Element `json:"elements" yaml:"elements"`
}

// ParseTemplate reads a JSON or YAML template. Settings missing from the
// document keep their defaults.
func ParseTemplate(data []byte) (*Template, error) {
	t := &Template{Settings: DefaultSettings()}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("parse template: empty document")
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, t); err != nil {
			return nil, fmt.Errorf("parse template json: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, t); err != nil {
		return nil, fmt.Errorf("parse template yaml: %w", err)
	}
	return t, nil
}

// Schema builds an unsaved schema from the template.
func (t *Template) Schema() *Schema {
	s := &Schema{
		Title:       t.Title,
		Description: t.Description,
		Elements:    cloneElements(t.Elements),
		Settings:    t.Settings,
	}
	s.Normalize()
	return s
}

// TemplateOf strips the storage fields of a schema.
func TemplateOf(s *Schema) *Template {
	return &Template{
		Title:       s.Title,
		Description: s.Description,
		Settings:    s.Settings,
		Elements:    cloneElements(s.Elements),
	}
}

func (t *Template) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SampleTemplate is a small incident follow-up form exercising every
// element family.
func SampleTemplate(newID func() string) *Template {
	d := NewDesigner(nil, WithIDGenerator(newID))
	heading := d.AddElement(TypeHeading)
	d.UpdateElement(heading.ID, Patch{Text: strPtr("Incident follow-up")})

	intro := d.AddElement(TypeParagraph)
	d.UpdateElement(intro.ID, Patch{Text: strPtr("Complete within <strong>24 hours</strong> of the incident.")})

	name := d.AddElement(TypeText)
	d.UpdateElement(name.ID, Patch{Label: strPtr("Reported by"), Required: boolPtr(true)})

	date := d.AddElement(TypeDate)
	d.UpdateElement(date.ID, Patch{Label: strPtr("Date of review"), Required: boolPtr(true)})

	outcome := d.AddElement(TypeRadio)
	d.UpdateElement(outcome.ID, Patch{
		Label:    strPtr("Outcome"),
		Required: boolPtr(true),
		Options: &[]Option{
			{ID: newID(), Label: "No further action", Value: "no_action"},
			{ID: newID(), Label: "Care plan updated", Value: "care_plan_updated"},
			{ID: newID(), Label: "Escalated", Value: "escalated"},
		},
	})

	section := d.AddElement(TypeSection)
	d.UpdateElement(section.ID, Patch{Label: strPtr("Sign-off")})
	sig, _ := d.AddChild(section.ID, TypeSignature)
	d.UpdateElement(sig.ID, Patch{Label: strPtr("Manager signature")})

	return &Template{
		Title:       "Incident follow-up",
		Description: "Review completed after an accident or incident.",
		Settings:    DefaultSettings(),
		Elements:    d.Elements(),
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
