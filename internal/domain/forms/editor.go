package forms

import (
	"fmt"
	"strconv"
	"strings"
)

// Control names one input of the property panel.
type Control string

const (
	ControlLabel        Control = "label"
	ControlRequired     Control = "required"
	ControlPlaceholder  Control = "placeholder"
	ControlDefaultValue Control = "defaultValue"
	ControlOptions      Control = "options"
	ControlAccept       Control = "accept"
	ControlMultiple     Control = "multiple"
	ControlLevel        Control = "level"
	ControlText         Control = "text"
)

// Panel describes the property panel for one element.
type Panel struct {
	ElementID string      `json:"elementId"`
	Type      ElementType `json:"type"`
	Controls  []Control   `json:"controls"`
	// CanRemoveOption is false when the element is down to one option.
	CanRemoveOption bool `json:"canRemoveOption,omitempty"`
}

// PanelFor returns the ordered controls for the element's type.
func PanelFor(e Element) Panel {
	p := Panel{ElementID: e.ID, Type: e.Type}
	switch e.Props.(type) {
	case *InputProps:
		p.Controls = []Control{ControlLabel, ControlRequired, ControlPlaceholder, ControlDefaultValue}
	case *ChoiceProps:
		p.Controls = []Control{ControlLabel, ControlRequired, ControlOptions}
		p.CanRemoveOption = CanRemoveOption(e)
	case *FileProps:
		p.Controls = []Control{ControlLabel, ControlRequired, ControlAccept, ControlMultiple}
	case *SignatureProps:
		p.Controls = []Control{ControlLabel, ControlRequired}
	case *HeadingProps:
		p.Controls = []Control{ControlLevel, ControlText}
	case *ParagraphProps:
		p.Controls = []Control{ControlText}
	case *SectionProps:
		p.Controls = []Control{ControlLabel}
	case *DividerProps:
		p.Controls = []Control{}
	default:
		panic(fmt.Sprintf("forms: element %s has no properties", e.ID))
	}
	return p
}

// CanRemoveOption reports whether an option may be deleted.
func CanRemoveOption(e Element) bool {
	return len(e.Options()) > 1
}

// AddOption appends "Option N" with a value that does not collide with the
// existing ones. ok is false for non-choice elements.
func AddOption(e Element, newID func() string) (Element, Option, bool) {
	if _, ok := e.Props.(*ChoiceProps); !ok {
		return e, Option{}, false
	}
	e = e.Clone()
	cp := e.Props.(*ChoiceProps)

	used := map[string]bool{}
	maxN := len(cp.Options)
	for _, o := range cp.Options {
		used[o.Value] = true
		if n, err := strconv.Atoi(strings.TrimPrefix(o.Value, "option_")); err == nil && n > maxN {
			maxN = n
		}
	}
	n := maxN + 1
	for used[fmt.Sprintf("option_%d", n)] {
		n++
	}
	opt := Option{ID: newID(), Label: fmt.Sprintf("Option %d", n), Value: fmt.Sprintf("option_%d", n)}
	cp.Options = append(cp.Options, opt)
	return e, opt, true
}

// UpdateOption patches the option with optionID.
func UpdateOption(e Element, optionID string, patch OptionPatch) (Element, bool) {
	if _, ok := e.Props.(*ChoiceProps); !ok {
		return e, false
	}
	e = e.Clone()
	cp := e.Props.(*ChoiceProps)
	for i := range cp.Options {
		if cp.Options[i].ID != optionID {
			continue
		}
		if patch.Label != nil {
			cp.Options[i].Label = *patch.Label
		}
		if patch.Value != nil {
			cp.Options[i].Value = *patch.Value
		}
		return e, true
	}
	return e, false
}

// RemoveOption deletes the option with optionID unless it is the last one.
func RemoveOption(e Element, optionID string) (Element, bool) {
	if !CanRemoveOption(e) {
		return e, false
	}
	e = e.Clone()
	cp := e.Props.(*ChoiceProps)
	for i, o := range cp.Options {
		if o.ID == optionID {
			cp.Options = append(cp.Options[:i], cp.Options[i+1:]...)
			return e, true
		}
	}
	return e, false
}
