package forms

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ElementType is the closed set of element kinds a form can contain.
type ElementType string

const (
	TypeText        ElementType = "text"
	TypeTextarea    ElementType = "textarea"
	TypeNumber      ElementType = "number"
	TypeEmail       ElementType = "email"
	TypeTel         ElementType = "tel"
	TypeDate        ElementType = "date"
	TypeTime        ElementType = "time"
	TypeCheckbox    ElementType = "checkbox"
	TypeRadio       ElementType = "radio"
	TypeSelect      ElementType = "select"
	TypeMultiselect ElementType = "multiselect"
	TypeFile        ElementType = "file"
	TypeSignature   ElementType = "signature"
	TypeHeading     ElementType = "heading"
	TypeParagraph   ElementType = "paragraph"
	TypeSection     ElementType = "section"
	TypeDivider     ElementType = "divider"
)

// AllTypes lists every element type in palette order.
var AllTypes = []ElementType{
	TypeText, TypeTextarea, TypeNumber, TypeEmail, TypeTel, TypeDate, TypeTime,
	TypeCheckbox, TypeRadio, TypeSelect, TypeMultiselect,
	TypeFile, TypeSignature,
	TypeHeading, TypeParagraph, TypeSection, TypeDivider,
}

func (t ElementType) Valid() bool {
	for _, v := range AllTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsLayout reports types that never carry a value.
func (t ElementType) IsLayout() bool {
	switch t {
	case TypeHeading, TypeParagraph, TypeSection, TypeDivider:
		return true
	}
	return false
}

func (t ElementType) IsChoice() bool {
	switch t {
	case TypeCheckbox, TypeRadio, TypeSelect, TypeMultiselect:
		return true
	}
	return false
}

// MultiValued reports types whose value is a list.
func (t ElementType) MultiValued() bool {
	return t == TypeCheckbox || t == TypeMultiselect
}

type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Props holds the variant-specific fields of an element. The set of
// implementations is closed; every switch over it handles all of them.
type Props interface {
	isProps()
	clone() Props
}

// InputProps backs text, textarea, number, email, tel, date and time.
type InputProps struct {
	Placeholder  string
	DefaultValue string
}

// ChoiceProps backs checkbox, radio, select and multiselect. Options is
// never empty.
type ChoiceProps struct {
	Options []Option
}

type FileProps struct {
	Accept   []string
	Multiple bool
}

type SignatureProps struct{}

type HeadingProps struct {
	Level int
	Text  string
}

// ParagraphProps.Text is rich text, sanitized before rendering.
type ParagraphProps struct {
	Text string
}

type SectionProps struct {
	Children []Element
}

type DividerProps struct{}

func (*InputProps) isProps()     {}
func (*ChoiceProps) isProps()    {}
func (*FileProps) isProps()      {}
func (*SignatureProps) isProps() {}
func (*HeadingProps) isProps()   {}
func (*ParagraphProps) isProps() {}
func (*SectionProps) isProps()   {}
func (*DividerProps) isProps()   {}

func (p *InputProps) clone() Props { c := *p; return &c }

func (p *ChoiceProps) clone() Props {
	c := &ChoiceProps{}
	if p.Options != nil {
		c.Options = append([]Option{}, p.Options...)
	}
	return c
}

func (p *FileProps) clone() Props {
	c := &FileProps{Multiple: p.Multiple}
	if p.Accept != nil {
		c.Accept = append([]string{}, p.Accept...)
	}
	return c
}

func (p *SignatureProps) clone() Props { return &SignatureProps{} }
func (p *HeadingProps) clone() Props   { c := *p; return &c }
func (p *ParagraphProps) clone() Props { c := *p; return &c }
func (p *SectionProps) clone() Props   { return &SectionProps{Children: cloneElements(p.Children)} }
func (p *DividerProps) clone() Props   { return &DividerProps{} }

// Element is one field or layout unit. Props always matches Type.
type Element struct {
	ID       string
	Type     ElementType
	Label    string
	Required bool
	Order    int
	Props    Props
}

// Clone returns a deep copy.
func (e Element) Clone() Element {
	if e.Props != nil {
		e.Props = e.Props.clone()
	}
	return e
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// Options returns the option list of a choice element, nil otherwise.
func (e Element) Options() []Option {
	if p, ok := e.Props.(*ChoiceProps); ok {
		return p.Options
	}
	return nil
}

// Children returns the nested elements of a section, nil otherwise.
func (e Element) Children() []Element {
	if p, ok := e.Props.(*SectionProps); ok {
		return p.Children
	}
	return nil
}

// DefaultLabel is the palette name of a type.
func DefaultLabel(t ElementType) string {
	switch t {
	case TypeText:
		return "Text field"
	case TypeTextarea:
		return "Long answer"
	case TypeNumber:
		return "Number"
	case TypeEmail:
		return "Email"
	case TypeTel:
		return "Phone number"
	case TypeDate:
		return "Date"
	case TypeTime:
		return "Time"
	case TypeCheckbox:
		return "Checkboxes"
	case TypeRadio:
		return "Multiple choice"
	case TypeSelect:
		return "Dropdown"
	case TypeMultiselect:
		return "Multi-select"
	case TypeFile:
		return "File upload"
	case TypeSignature:
		return "Signature"
	case TypeHeading:
		return "Heading"
	case TypeParagraph:
		return "Paragraph"
	case TypeSection:
		return "Section"
	case TypeDivider:
		return "Divider"
	}
	panic(fmt.Sprintf("forms: unknown element type %q", t))
}

// DefaultFileAccept is the accept filter given to new file elements.
var DefaultFileAccept = []string{"image/*", "application/pdf"}

// NewElement builds an element of type t with its defaults. newID supplies
// the element id and option ids. An unknown type is a programming error
// and panics.
func NewElement(t ElementType, newID func() string) Element {
	e := Element{ID: newID(), Type: t, Label: DefaultLabel(t)}
	switch t {
	case TypeText:
		e.Props = &InputProps{Placeholder: "Enter text"}
	case TypeTextarea:
		e.Props = &InputProps{Placeholder: "Enter details"}
	case TypeNumber:
		e.Props = &InputProps{Placeholder: "0"}
	case TypeEmail:
		e.Props = &InputProps{Placeholder: "name@example.com"}
	case TypeTel:
		e.Props = &InputProps{Placeholder: "Enter phone number"}
	case TypeDate, TypeTime:
		e.Props = &InputProps{}
	case TypeCheckbox, TypeRadio, TypeSelect, TypeMultiselect:
		e.Props = &ChoiceProps{Options: []Option{
			{ID: newID(), Label: "Option 1", Value: "option_1"},
			{ID: newID(), Label: "Option 2", Value: "option_2"},
		}}
	case TypeFile:
		e.Props = &FileProps{Accept: append([]string{}, DefaultFileAccept...)}
	case TypeSignature:
		e.Props = &SignatureProps{}
	case TypeHeading:
		e.Props = &HeadingProps{Level: 2, Text: "Section heading"}
	case TypeParagraph:
		e.Props = &ParagraphProps{Text: "Add instructions here"}
	case TypeSection:
		e.Props = &SectionProps{}
	case TypeDivider:
		e.Props = &DividerProps{}
	default:
		panic(fmt.Sprintf("forms: unknown element type %q", t))
	}
	return e
}

// emptyProps returns zero props for t, or nil for an unknown type.
func emptyProps(t ElementType) Props {
	switch t {
	case TypeText, TypeTextarea, TypeNumber, TypeEmail, TypeTel, TypeDate, TypeTime:
		return &InputProps{}
	case TypeCheckbox, TypeRadio, TypeSelect, TypeMultiselect:
		return &ChoiceProps{}
	case TypeFile:
		return &FileProps{}
	case TypeSignature:
		return &SignatureProps{}
	case TypeHeading:
		return &HeadingProps{}
	case TypeParagraph:
		return &ParagraphProps{}
	case TypeSection:
		return &SectionProps{}
	case TypeDivider:
		return &DividerProps{}
	}
	return nil
}

// wireElement is the flat JSON/YAML shape: variant fields sit next to the
// common ones.
type wireElement struct {
	ID           string      `json:"id" yaml:"id"`
	Type         ElementType `json:"type" yaml:"type"`
	Label        string      `json:"label" yaml:"label"`
	Required     bool        `json:"required" yaml:"required"`
	Order        int         `json:"order" yaml:"order"`
	Placeholder  string      `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	DefaultValue string      `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Options      []Option    `json:"options,omitempty" yaml:"options,omitempty"`
	Accept       []string    `json:"accept,omitempty" yaml:"accept,omitempty"`
	Multiple     bool        `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Level        int         `json:"level,omitempty" yaml:"level,omitempty"`
	Text         string      `json:"text,omitempty" yaml:"text,omitempty"`
	Children     []Element   `json:"children,omitempty" yaml:"children,omitempty"`
}

// UnknownTypeError is returned when decoding an element whose type is not
// part of the closed set.
type UnknownTypeError struct {
	Type ElementType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown element type %q", e.Type)
}

func (e Element) toWire() wireElement {
	w := wireElement{ID: e.ID, Type: e.Type, Label: e.Label, Required: e.Required, Order: e.Order}
	switch p := e.Props.(type) {
	case *InputProps:
		w.Placeholder, w.DefaultValue = p.Placeholder, p.DefaultValue
	case *ChoiceProps:
		w.Options = p.Options
	case *FileProps:
		w.Accept, w.Multiple = p.Accept, p.Multiple
	case *SignatureProps, *DividerProps, nil:
	case *HeadingProps:
		w.Level, w.Text = p.Level, p.Text
	case *ParagraphProps:
		w.Text = p.Text
	case *SectionProps:
		w.Children = p.Children
	}
	return w
}

func (w wireElement) toElement() (Element, error) {
	e := Element{ID: w.ID, Type: w.Type, Label: w.Label, Required: w.Required, Order: w.Order}
	e.Props = emptyProps(w.Type)
	switch p := e.Props.(type) {
	case nil:
		return Element{}, &UnknownTypeError{Type: w.Type}
	case *InputProps:
		p.Placeholder, p.DefaultValue = w.Placeholder, w.DefaultValue
	case *ChoiceProps:
		p.Options = w.Options
	case *FileProps:
		p.Accept, p.Multiple = w.Accept, w.Multiple
	case *SignatureProps, *DividerProps:
	case *HeadingProps:
		p.Level, p.Text = w.Level, w.Text
	case *ParagraphProps:
		p.Text = w.Text
	case *SectionProps:
		p.Children = w.Children
	}
	return e, nil
}

func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toWire())
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	el, err := w.toElement()
	if err != nil {
		return err
	}
	*e = el
	return nil
}

func (e Element) MarshalYAML() (interface{}, error) {
	return e.toWire(), nil
}

func (e *Element) UnmarshalYAML(node *yaml.Node) error {
	var w wireElement
	if err := node.Decode(&w); err != nil {
		return err
	}
	el, err := w.toElement()
	if err != nil {
		return err
	}
	*e = el
	return nil
}
