package forms

// renumber sets order to the array index for every element in scope.
func renumber(scope []Element) {
	for i := range scope {
		scope[i].Order = i
	}
}

// findElement returns the element with id anywhere in the tree.
func findElement(elements []Element, id string) (Element, bool) {
	for _, e := range elements {
		if e.ID == id {
			return e, true
		}
		if found, ok := findElement(e.Children(), id); ok {
			return found, true
		}
	}
	return Element{}, false
}

// updateScope rewrites the scope (top level or section children) that
// directly contains id. fn receives the scope and the index of id and
// returns the replacement scope.
func updateScope(elements []Element, id string, fn func(scope []Element, idx int) []Element) ([]Element, bool) {
	for i, e := range elements {
		if e.ID == id {
			return fn(elements, i), true
		}
	}
	for i, e := range elements {
		sp, ok := e.Props.(*SectionProps)
		if !ok {
			continue
		}
		if children, ok := updateScope(sp.Children, id, fn); ok {
			elements[i].Props = &SectionProps{Children: children}
			return elements, true
		}
	}
	return elements, false
}

// updateElement replaces the element with id by fn(element).
func updateElement(elements []Element, id string, fn func(Element) Element) ([]Element, bool) {
	return updateScope(elements, id, func(scope []Element, idx int) []Element {
		scope[idx] = fn(scope[idx])
		return scope
	})
}

// walk visits every element depth first.
func walk(elements []Element, fn func(e Element, depth int)) {
	var visit func([]Element, int)
	visit = func(scope []Element, depth int) {
		for _, e := range scope {
			fn(e, depth)
			visit(e.Children(), depth+1)
		}
	}
	visit(elements, 0)
}

// Flatten lists every element in the tree depth first.
func Flatten(elements []Element) []Element {
	var out []Element
	walk(elements, func(e Element, _ int) { out = append(out, e) })
	return out
}

// reassignIDs gives e, its options and all nested children fresh ids.
// Option ids only need to be unique within their element, so they keep
// theirs.
func reassignIDs(e Element, newID func() string) Element {
	e.ID = newID()
	if sp, ok := e.Props.(*SectionProps); ok {
		for i := range sp.Children {
			sp.Children[i] = reassignIDs(sp.Children[i], newID)
		}
	}
	return e
}
