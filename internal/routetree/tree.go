package routetree

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/stagecheck/internal/segment"
)

// ErrConfig marks configuration errors. They abort the whole validation pass.
var ErrConfig = errors.New("invalid route configuration")

// ModuleKind is the kind of module attached to a segment.
type ModuleKind uint8

const (
	ModuleLayout ModuleKind = iota + 1
	ModulePage
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleLayout:
		return "layout"
	case ModulePage:
		return "page"
	default:
		return fmt.Sprintf("module(%d)", uint8(k))
	}
}

// ModuleInfo is what the walker needs to know about a segment's module.
type ModuleInfo struct {
	Kind    ModuleKind
	Instant InstantConfig
	Source  string
}

// Child is one occupied slot of a Description.
type Child struct {
	Key  string
	Node Description
}

// Description is the static tree description the tree is built from.
type Description interface {
	Descriptor() segment.Segment
	ParallelChildren() []Child
	ModuleInfo() *ModuleInfo
}

// Tree is one node of the route tree. It is immutable once built.
type Tree struct {
	Path    segment.Path
	Segment segment.Segment
	Module  *ModuleInfo
	Slots   []Slot
}

// Slot is a child of a Tree.
type Slot struct {
	Key  string
	Tree *Tree
}

// Build constructs the tree for d.
func Build(d Description) *Tree {
	return build(d, segment.Root(d.Descriptor()))
}

func build(d Description, path segment.Path) *Tree {
	t := &Tree{Path: path, Segment: d.Descriptor()}
	if info := d.ModuleInfo(); info != nil {
		copied := *info
		t.Module = &copied
	}
	for _, child := range d.ParallelChildren() {
		if child.Node == nil {
			continue
		}
		childPath := path.Child(child.Key, child.Node.Descriptor())
		t.Slots = append(t.Slots, Slot{Key: child.Key, Tree: build(child.Node, childPath)})
	}
	return t
}

// Walk visits every node depth-first, parents first.
func (t *Tree) Walk(fn func(*Tree)) {
	fn(t)
	for _, s := range t.Slots {
		s.Tree.Walk(fn)
	}
}

// Find returns the node at path, or nil.
func (t *Tree) Find(path segment.Path) *Tree {
	if t.Path == path {
		return t
	}
	for _, s := range t.Slots {
		if s.Tree.Path == path || s.Tree.Path.IsAncestorOf(path) {
			return s.Tree.Find(path)
		}
	}
	return nil
}

// Instant returns the node's declared config.
func (t *Tree) Instant() InstantConfig {
	if t.Module == nil {
		return InstantConfig{}
	}
	return t.Module.Instant
}

// Child returns the occupant of key, or nil.
func (t *Tree) Child(key string) *Tree {
	for _, s := range t.Slots {
		if s.Key == key {
			return s.Tree
		}
	}
	return nil
}
