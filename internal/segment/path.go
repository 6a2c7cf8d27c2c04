package segment

import "strings"

// Path uniquely identifies a position in the composition tree. Two nodes
// have the same Path exactly when they occupy the same structural position.
type Path string

// Root returns the path of the tree's root segment.
func Root(seg Segment) Path {
	return Path(seg.encode())
}

// Child returns the path of seg rendered in parent's slot key.
func (p Path) Child(key string, seg Segment) Path {
	var b strings.Builder
	b.WriteString(string(p))
	b.WriteByte('/')
	if key != ChildrenKey {
		b.WriteByte('@')
		b.WriteString(escape(key))
		b.WriteByte('/')
	}
	b.WriteString(seg.encode())
	return Path(b.String())
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	return len(other) > len(p) && strings.HasPrefix(string(other), string(p)+"/")
}

func (p Path) String() string {
	if p == "" {
		return "/"
	}
	return string(p)
}
