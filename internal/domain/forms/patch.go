package forms

// Patch is a partial update. Nil fields are left unchanged; fields that do
// not apply to the element's type are ignored. Type, id and order are not
// patchable.
type Patch struct {
	Label        *string   `json:"label,omitempty"`
	Required     *bool     `json:"required,omitempty"`
	Placeholder  *string   `json:"placeholder,omitempty"`
	DefaultValue *string   `json:"defaultValue,omitempty"`
	Options      *[]Option `json:"options,omitempty"`
	Accept       *[]string `json:"accept,omitempty"`
	Multiple     *bool     `json:"multiple,omitempty"`
	Level        *int      `json:"level,omitempty"`
	Text         *string   `json:"text,omitempty"`
}

// Apply returns a copy of e with the patch merged in. An empty option
// list is ignored so that choice elements keep at least one option, and
// heading levels are clamped to 1-6.
func (p Patch) Apply(e Element) Element {
	e = e.Clone()
	if p.Label != nil {
		e.Label = *p.Label
	}
	if p.Required != nil && !e.Type.IsLayout() {
		e.Required = *p.Required
	}

	switch props := e.Props.(type) {
	case *InputProps:
		if p.Placeholder != nil {
			props.Placeholder = *p.Placeholder
		}
		if p.DefaultValue != nil {
			props.DefaultValue = *p.DefaultValue
		}
	case *ChoiceProps:
		if p.Options != nil && len(*p.Options) > 0 {
			props.Options = append([]Option{}, (*p.Options)...)
		}
	case *FileProps:
		if p.Accept != nil {
			props.Accept = append([]string{}, (*p.Accept)...)
		}
		if p.Multiple != nil {
			props.Multiple = *p.Multiple
		}
	case *SignatureProps, *DividerProps, *SectionProps:
	case *HeadingProps:
		if p.Level != nil {
			props.Level = clampLevel(*p.Level)
		}
		if p.Text != nil {
			props.Text = *p.Text
		}
	case *ParagraphProps:
		if p.Text != nil {
			props.Text = *p.Text
		}
	}
	return e
}

func clampLevel(l int) int {
	if l < 1 {
		return 1
	}
	if l > 6 {
		return 6
	}
	return l
}

// OptionPatch updates one option.
type OptionPatch struct {
	Label *string `json:"label,omitempty"`
	Value *string `json:"value,omitempty"`
}
