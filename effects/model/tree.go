package model

import "reflect"

// GetIn reads the value at p. Only map[string]any nodes are descended.
func GetIn(tree any, p Path) (any, bool) {
	cur := tree
	for _, seg := range p {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetIn returns a copy of tree with v stored at p. Maps along p are copied,
// siblings are shared. Non-map nodes on the way are replaced by maps.
func SetIn(tree any, p Path, v any) any {
	if len(p) == 0 {
		return v
	}
	src, _ := tree.(map[string]any)
	out := make(map[string]any, len(src)+1)
	for k, child := range src {
		out[k] = child
	}
	out[p[0]] = SetIn(src[p[0]], p[1:], v)
	return out
}

// SameValue reports whether a and b denote the same state node. Maps and slices
// compare by identity, which holds because state is copy-on-write.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
