package forms

import (
	"github.com/google/uuid"
)

// Designer holds the element tree of a form being edited and applies
// structural edits to it. Every mutation hands a copy of the new tree to
// OnChange; the designer keeps no other state besides the selection.
type Designer struct {
	elements []Element
	selected string
	newID    func() string
	onChange func([]Element)
}

type DesignerOption func(*Designer)

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(fn func() string) DesignerOption {
	return func(d *Designer) { d.newID = fn }
}

// WithOnChange registers the change callback.
func WithOnChange(fn func([]Element)) DesignerOption {
	return func(d *Designer) { d.onChange = fn }
}

func NewDesigner(elements []Element, opts ...DesignerOption) *Designer {
	d := &Designer{
		elements: cloneElements(elements),
		newID:    uuid.NewString,
	}
	if d.elements == nil {
		d.elements = []Element{}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Elements returns a copy of the current tree.
func (d *Designer) Elements() []Element {
	return cloneElements(d.elements)
}

// Find returns a copy of the element with id.
func (d *Designer) Find(id string) (Element, bool) {
	e, ok := findElement(d.elements, id)
	if !ok {
		return Element{}, false
	}
	return e.Clone(), true
}

func (d *Designer) changed() {
	if _, ok := findElement(d.elements, d.selected); !ok {
		d.selected = ""
	}
	if d.onChange != nil {
		d.onChange(d.Elements())
	}
}

// AddElement appends a new element of type t with its defaults and
// selects it for editing.
func (d *Designer) AddElement(t ElementType) Element {
	e := NewElement(t, d.newID)
	e.Order = len(d.elements)
	d.elements = append(d.elements, e)
	d.selected = e.ID
	d.changed()
	return e.Clone()
}

// AddChild appends a new element inside the section sectionID.
func (d *Designer) AddChild(sectionID string, t ElementType) (Element, bool) {
	section, ok := findElement(d.elements, sectionID)
	if !ok || section.Type != TypeSection {
		return Element{}, false
	}
	e := NewElement(t, d.newID)
	d.elements, _ = updateElement(d.elements, sectionID, func(s Element) Element {
		s = s.Clone()
		sp := s.Props.(*SectionProps)
		e.Order = len(sp.Children)
		sp.Children = append(sp.Children, e)
		return s
	})
	d.selected = e.ID
	d.changed()
	return e.Clone(), true
}

// UpdateElement merges patch into the element with id. Unknown ids are a
// no-op.
func (d *Designer) UpdateElement(id string, patch Patch) bool {
	var ok bool
	d.elements, ok = updateElement(d.elements, id, patch.Apply)
	if ok {
		d.changed()
	}
	return ok
}

// RemoveElement deletes the element with id, including any children, and
// renumbers the remaining elements of its scope.
func (d *Designer) RemoveElement(id string) bool {
	var ok bool
	d.elements, ok = updateScope(d.elements, id, func(scope []Element, idx int) []Element {
		out := make([]Element, 0, len(scope)-1)
		out = append(out, scope[:idx]...)
		out = append(out, scope[idx+1:]...)
		renumber(out)
		return out
	})
	if ok {
		d.changed()
	}
	return ok
}

// DuplicateElement appends a deep copy of the element to the end of its
// scope under a new id, with " (copy)" added to the label. Nested children
// receive new ids too.
func (d *Designer) DuplicateElement(id string) (Element, bool) {
	var dup Element
	var ok bool
	d.elements, ok = updateScope(d.elements, id, func(scope []Element, idx int) []Element {
		dup = reassignIDs(scope[idx].Clone(), d.newID)
		dup.Label = scope[idx].Label + " (copy)"
		dup.Order = len(scope)
		return append(scope, dup)
	})
	if !ok {
		return Element{}, false
	}
	d.changed()
	return dup.Clone(), true
}

// ReorderElements replaces the top-level sequence with seq, typically the
// result of a drag and drop, and renumbers every order to its index.
func (d *Designer) ReorderElements(seq []Element) {
	d.elements = cloneElements(seq)
	if d.elements == nil {
		d.elements = []Element{}
	}
	renumber(d.elements)
	d.changed()
}

// ReorderChildren does the same for the children of a section.
func (d *Designer) ReorderChildren(sectionID string, seq []Element) bool {
	section, ok := findElement(d.elements, sectionID)
	if !ok || section.Type != TypeSection {
		return false
	}
	children := cloneElements(seq)
	renumber(children)
	d.elements, _ = updateElement(d.elements, sectionID, func(s Element) Element {
		s = s.Clone()
		s.Props.(*SectionProps).Children = children
		return s
	})
	d.changed()
	return true
}

// MoveElement moves the element with id to index within its own scope.
// Out of range indexes are clamped.
func (d *Designer) MoveElement(id string, index int) bool {
	var ok bool
	d.elements, ok = updateScope(d.elements, id, func(scope []Element, idx int) []Element {
		if index < 0 {
			index = 0
		}
		if index >= len(scope) {
			index = len(scope) - 1
		}
		moved := scope[idx]
		out := make([]Element, 0, len(scope))
		out = append(out, scope[:idx]...)
		out = append(out, scope[idx+1:]...)
		out = append(out[:index], append([]Element{moved}, out[index:]...)...)
		renumber(out)
		return out
	})
	if ok {
		d.changed()
	}
	return ok
}

// AddOption appends a placeholder option to a choice element.
func (d *Designer) AddOption(elementID string) (Option, bool) {
	var added Option
	var ok, found bool
	d.elements, found = updateElement(d.elements, elementID, func(e Element) Element {
		var next Element
		next, added, ok = AddOption(e, d.newID)
		return next
	})
	if !found || !ok {
		return Option{}, false
	}
	d.changed()
	return added, true
}

func (d *Designer) UpdateOption(elementID, optionID string, patch OptionPatch) bool {
	var ok, found bool
	d.elements, found = updateElement(d.elements, elementID, func(e Element) Element {
		var next Element
		next, ok = UpdateOption(e, optionID, patch)
		return next
	})
	if !found || !ok {
		return false
	}
	d.changed()
	return true
}

// RemoveOption is a no-op when optionID is the last remaining option.
func (d *Designer) RemoveOption(elementID, optionID string) bool {
	var ok, found bool
	d.elements, found = updateElement(d.elements, elementID, func(e Element) Element {
		var next Element
		next, ok = RemoveOption(e, optionID)
		return next
	})
	if !found || !ok {
		return false
	}
	d.changed()
	return true
}

// Select marks the element with id as the one being edited.
func (d *Designer) Select(id string) bool {
	if _, ok := findElement(d.elements, id); !ok {
		return false
	}
	d.selected = id
	return true
}

// Selected returns the element being edited, if any.
func (d *Designer) Selected() (Element, bool) {
	if d.selected == "" {
		return Element{}, false
	}
	return d.Find(d.selected)
}

func (d *Designer) ClearSelection() {
	d.selected = ""
}
