// Package view is the tree-shaped model handed to a renderer and recovered by
// a decoder: component nodes, fallback boundaries, data accesses, slot
// placeholders and the holes left by output that has not arrived yet.
package view

import (
	"fmt"

	"github.com/specialistvlad/stagecheck/internal/stage"
)

// Kind discriminates Node variants.
type Kind uint8

const (
	KindElement Kind = iota + 1
	KindText
	KindFragment
	// KindSuspense renders Fallback while any of its children is pending.
	KindSuspense
	// KindData is a data access; its children are the resolved content.
	KindData
	// KindSlot is replaced by the segment occupying the named slot.
	KindSlot
	// KindPending is output that has not arrived yet.
	KindPending
	// KindError is output that failed; only its digest survives.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindFragment:
		return "fragment"
	case KindSuspense:
		return "suspense"
	case KindData:
		return "data"
	case KindSlot:
		return "slot"
	case KindPending:
		return "pending"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Access describes when and where a data access resolves.
type Access struct {
	Stage stage.Stage
	Site  string
	// Sync accesses cannot be deferred; reaching one early interrupts the render.
	Sync bool
	// Digest marks an anticipated condition, e.g. a redirect.
	Digest string
}

// Node is one node of a view tree.
type Node struct {
	Kind     Kind
	Name     string
	Text     string
	Client   bool
	Children []*Node
	Fallback *Node
	Access   *Access
	Hole     *Hole
	Digest   string
}

func Element(name string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Name: name, Children: children}
}

func ClientElement(name string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Name: name, Client: true, Children: children}
}

func Text(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

func Fragment(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: children}
}

func Suspense(fallback *Node, children ...*Node) *Node {
	return &Node{Kind: KindSuspense, Fallback: fallback, Children: children}
}

func Data(name string, access Access, children ...*Node) *Node {
	return &Node{Kind: KindData, Name: name, Access: &access, Children: children}
}

func Slot(key string) *Node {
	return &Node{Kind: KindSlot, Name: key}
}

func Pending(h *Hole) *Node {
	return &Node{Kind: KindPending, Hole: h}
}

func Failed(digest string) *Node {
	return &Node{Kind: KindError, Digest: digest}
}

// Walk visits n and its descendants depth-first, fallbacks before children.
// Resolved holes are followed. Returning false from fn skips n's subtree.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if n.Kind == KindPending && n.Hole != nil {
		if resolved, err := n.Hole.Result(); err == nil && resolved != nil {
			Walk(resolved, fn)
		}
		return
	}
	Walk(n.Fallback, fn)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
