package forms

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPanelFor(t *testing.T) {
	tests := []struct {
		typ  ElementType
		want []Control
	}{
		{TypeText, []Control{ControlLabel, ControlRequired, ControlPlaceholder, ControlDefaultValue}},
		{TypeDate, []Control{ControlLabel, ControlRequired, ControlPlaceholder, ControlDefaultValue}},
		{TypeRadio, []Control{ControlLabel, ControlRequired, ControlOptions}},
		{TypeFile, []Control{ControlLabel, ControlRequired, ControlAccept, ControlMultiple}},
		{TypeSignature, []Control{ControlLabel, ControlRequired}},
		{TypeHeading, []Control{ControlLevel, ControlText}},
		{TypeParagraph, []Control{ControlText}},
		{TypeSection, []Control{ControlLabel}},
		{TypeDivider, []Control{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			p := PanelFor(NewElement(tt.typ, seqIDs()))
			if diff := cmp.Diff(tt.want, p.Controls); diff != "" {
				t.Errorf("controls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPanelFor_EveryType(t *testing.T) {
	for _, typ := range AllTypes {
		p := PanelFor(NewElement(typ, seqIDs()))
		if p.Type != typ {
			t.Errorf("panel type = %s, want %s", p.Type, typ)
		}
	}
}

func TestPanelFor_CanRemoveOption(t *testing.T) {
	e := NewElement(TypeSelect, seqIDs())
	if !PanelFor(e).CanRemoveOption {
		t.Error("two options should be removable")
	}
	e, _ = RemoveOption(e, e.Options()[0].ID)
	if PanelFor(e).CanRemoveOption {
		t.Error("the last option must not be removable")
	}
}

func TestAddOption_UniqueValues(t *testing.T) {
	ids := seqIDs()
	e := NewElement(TypeCheckbox, ids)
	e, _ = UpdateOption(e, e.Options()[1].ID, OptionPatch{Value: strPtr("option_5")})

	e, added, ok := AddOption(e, ids)
	if !ok {
		t.Fatal("AddOption failed")
	}
	if added.Value != "option_6" || added.Label != "Option 6" {
		t.Errorf("added = %+v", added)
	}
	seen := map[string]bool{}
	for _, o := range e.Options() {
		if seen[o.Value] {
			t.Errorf("duplicate value %q", o.Value)
		}
		seen[o.Value] = true
	}
}

func TestOptionHelpers_DoNotMutateInput(t *testing.T) {
	e := NewElement(TypeRadio, seqIDs())
	before := e.Clone()
	UpdateOption(e, e.Options()[0].ID, OptionPatch{Label: strPtr("Yes")})
	RemoveOption(e, e.Options()[0].ID)
	if diff := cmp.Diff(before, e); diff != "" {
		t.Errorf("input element mutated:\n%s", diff)
	}
}

func TestOptionHelpers_NonChoice(t *testing.T) {
	e := NewElement(TypeText, seqIDs())
	if _, ok := UpdateOption(e, "x", OptionPatch{}); ok {
		t.Error("UpdateOption on text should fail")
	}
	if _, ok := RemoveOption(e, "x"); ok {
		t.Error("RemoveOption on text should fail")
	}
	if CanRemoveOption(e) {
		t.Error("text elements have no options to remove")
	}
}
