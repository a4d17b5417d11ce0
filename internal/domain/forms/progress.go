package forms

import "reflect"

// IsPresent reports whether a form value counts as answered: not nil, not
// an empty string and not an empty list or map.
func IsPresent(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case []interface{}:
		return len(x) > 0
	case []string:
		return len(x) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Progress returns the share of required input elements, nested ones
// included, that have a present value, as a percentage rounded half up.
// A form without required inputs is 100% complete.
func Progress(elements []Element, values map[string]interface{}) int {
	required, filled := 0, 0
	walk(elements, func(e Element, _ int) {
		if !e.Required || e.Type.IsLayout() {
			return
		}
		required++
		if IsPresent(values[e.ID]) {
			filled++
		}
	})
	if required == 0 {
		return 100
	}
	return (filled*200 + required) / (required * 2)
}
