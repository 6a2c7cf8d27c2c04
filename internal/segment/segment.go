// Package segment identifies nodes of the composition tree and encodes their
// structural position as a stable path.
package segment

import "strings"

const (
	// ChildrenKey is the implicit slot every segment renders its main child in.
	ChildrenKey = "children"
	// PageName is the name of the leaf segment holding a route's page.
	PageName = "__PAGE__"
	// DefaultName is the name of a parallel slot's fallback segment.
	DefaultName = "__DEFAULT__"
)

// Param is the dynamic part of a parameterized segment.
type Param struct {
	Name  string
	Value string
	// Kind is the short parameter kind, e.g. "d" for dynamic or "c" for catch-all.
	Kind string
}

// Segment is one node's identity: a static name or a parameter binding.
type Segment struct {
	Name  string
	Param *Param
}

// Named returns a static segment.
func Named(name string) Segment {
	return Segment{Name: name}
}

// Dynamic returns a parameterized segment.
func Dynamic(name, value, kind string) Segment {
	return Segment{Name: name, Param: &Param{Name: name, Value: value, Kind: kind}}
}

// IsPage reports whether s is a page leaf.
func (s Segment) IsPage() bool {
	return s.Param == nil && strings.HasPrefix(s.Name, PageName)
}

func (s Segment) String() string {
	if s.Param != nil {
		return "[" + s.Param.Name + "=" + s.Param.Value + "]"
	}
	return s.Name
}

// Equal compares two segments by identity.
func (s Segment) Equal(o Segment) bool {
	if (s.Param == nil) != (o.Param == nil) {
		return false
	}
	if s.Param != nil {
		return *s.Param == *o.Param
	}
	return s.Name == o.Name
}

func (s Segment) encode() string {
	if s.Param == nil {
		return escape(s.Name)
	}
	return escape(s.Param.Name) + "|" + escape(s.Param.Value) + "|" + escape(s.Param.Kind)
}

const upperhex = "0123456789ABCDEF"

// escape percent-encodes every byte except ASCII letters, digits and
// -_.!~*'(). In particular '/', '@' and '|' are always escaped, so encoded
// names never contain path or slot separators.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
