// Package pattern matches actions against structural patterns.
//
// A string pattern matches an action whose type equals it. A map pattern is a
// subset match: every key must be present on the value and match, where a
// Predicate (or func(any) bool) is evaluated, a nested map recurses, and
// anything else is compared with strict equality.
//
// Go has a single nil where actions built elsewhere may distinguish a missing
// key from a null one: a key present with a nil value counts as absent and
// fails the match. Strict equality also requires equal dynamic types, so the
// pattern value 1 (int) does not match a payload holding float64(1), as
// decoded JSON numbers do.
package pattern

import (
	"reflect"

	"github.com/on-the-ground/effect_ive_feedbacks/effects/model"
)

// Predicate matches a single field value.
type Predicate func(any) bool

// IsMatch reports whether value satisfies pattern. It is pure.
func IsMatch(pattern, value any) bool {
	switch p := pattern.(type) {
	case string:
		t, ok := field(value, "type")
		return ok && t == p
	case map[string]any:
		if !isObject(value) {
			return strictEqual(pattern, value)
		}
		return matchObject(p, value)
	default:
		return strictEqual(pattern, value)
	}
}

func matchObject(p map[string]any, value any) bool {
	for k, want := range p {
		got, ok := field(value, k)
		if !ok {
			return false
		}
		switch w := want.(type) {
		case Predicate:
			if !w(got) {
				return false
			}
		case func(any) bool:
			if !w(got) {
				return false
			}
		case map[string]any:
			if !isObject(got) || !matchObject(w, got) {
				return false
			}
		default:
			if !strictEqual(want, got) {
				return false
			}
		}
	}
	return true
}

func isObject(v any) bool {
	switch o := v.(type) {
	case map[string]any:
		return true
	case model.Fielder:
		return !isNilPointer(o)
	default:
		return false
	}
}

// field looks up key on maps and Fielders. A nil entry counts as absent.
func field(v any, key string) (any, bool) {
	switch o := v.(type) {
	case map[string]any:
		got, ok := o[key]
		return got, ok && got != nil
	case model.Fielder:
		if isNilPointer(o) {
			return nil, false
		}
		return o.Field(key)
	default:
		return nil, false
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// strictEqual compares comparable values with ==, and reference types
// (maps, slices, funcs) by identity.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return va.UnsafePointer() == vb.UnsafePointer()
	default:
		return false
	}
}
