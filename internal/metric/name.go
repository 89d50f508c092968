package metric

import "strings"

// keySep separates segments in Name.Key. It cannot appear in a segment.
const keySep = "\x1f"

// Name is an immutable hierarchical metric identifier.
// Two names are equal if their segment sequences are equal.
type Name struct {
	segments []string
	key      string
}

// NewName builds a name from segments. Empty segments are dropped and
// separator bytes are stripped.
func NewName(segments ...string) Name {
	segs := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.ReplaceAll(s, keySep, "")
		if s == "" {
			continue
		}
		segs = append(segs, s)
	}
	return Name{segments: segs, key: strings.Join(segs, keySep)}
}

// ParseName splits a dotted string into segments.
func ParseName(s string) Name {
	if s == "" {
		return Name{}
	}
	return NewName(strings.Split(s, ".")...)
}

// Append returns a new name with segments added at the end.
func (n Name) Append(segments ...string) Name {
	all := make([]string, 0, len(n.segments)+len(segments))
	all = append(all, n.segments...)
	all = append(all, segments...)
	return NewName(all...)
}

// Prepend returns a new name with prefix in front of n.
func (n Name) Prepend(prefix Name) Name {
	if prefix.IsEmpty() {
		return n
	}
	if n.IsEmpty() {
		return prefix
	}
	all := make([]string, 0, len(prefix.segments)+len(n.segments))
	all = append(all, prefix.segments...)
	all = append(all, n.segments...)
	return Name{segments: all, key: prefix.key + keySep + n.key}
}

// Parent returns the name without its last segment.
func (n Name) Parent() Name {
	if len(n.segments) <= 1 {
		return Name{}
	}
	return NewName(n.segments[:len(n.segments)-1]...)
}

// Segments returns a copy of the segments.
func (n Name) Segments() []string {
	out := make([]string, len(n.segments))
	copy(out, n.segments)
	return out
}

// Leaf returns the last segment.
func (n Name) Leaf() string {
	if len(n.segments) == 0 {
		return ""
	}
	return n.segments[len(n.segments)-1]
}

// Len returns the number of segments.
func (n Name) Len() int {
	return len(n.segments)
}

// IsEmpty reports whether the name has no segments.
func (n Name) IsEmpty() bool {
	return len(n.segments) == 0
}

// Key returns a string usable as a map key. Equal names have equal keys.
func (n Name) Key() string {
	return n.key
}

// Equal reports whether both names have the same segments.
func (n Name) Equal(o Name) bool {
	return n.key == o.key
}

// Join joins the segments with sep.
func (n Name) Join(sep string) string {
	return strings.Join(n.segments, sep)
}

// String joins the segments with dots.
func (n Name) String() string {
	return n.Join(".")
}
