package model

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Path is an ordered sequence of keys locating a node in the state tree.
// Segments may contain any character, so paths are compared element-wise.
type Path []string

// ParsePath splits a dotted path. The empty string is the root.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path(strings.Split(s, "."))
}

// Equal reports whether both paths have the same segments in the same order.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q is a leading subsequence of p.
func (p Path) HasPrefix(q Path) bool {
	return len(q) <= len(p) && p[:len(q)].Equal(q)
}

// Append returns a new path; p is never aliased.
func (p Path) Append(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Concat returns p followed by q.
func (p Path) Concat(q Path) Path {
	return p.Append(q...)
}

// Key is an injective string encoding of the path: each segment is
// length-prefixed, so no two distinct paths share a key.
func (p Path) Key() string {
	var b strings.Builder
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(len(p)))
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(len(seg)))
		b.WriteByte(':')
		b.WriteString(seg)
	}
	return b.String()
}

// Hash is the xxhash of Key. Equal paths hash equally; callers still compare
// with Equal on collision.
func (p Path) Hash() uint64 {
	return xxhash.Sum64String(p.Key())
}

// String is a dotted rendering for logs. It is not unique.
func (p Path) String() string {
	return strings.Join(p, ".")
}
