package view

import "github.com/specialistvlad/stagecheck/internal/segment"

// BoundaryName is the component name of the validation boundary. It is a
// transparent wrapper and is matched by name, so it must never change.
const BoundaryName = "StagecheckValidationBoundary"

// Boundary wraps children in the validation boundary marker.
func Boundary(children ...*Node) *Node {
	return Element(BoundaryName, children...)
}

// IsBoundary reports whether n is the validation boundary marker.
func IsBoundary(n *Node) bool {
	return n != nil && n.Kind == KindElement && n.Name == BoundaryName
}

// Model is anything a renderer accepts: a full payload or one segment's data.
type Model interface {
	model()
}

// Payload is the output of a full route render.
type Payload struct {
	Seed *Seed
	Head *Node
}

// Seed is one segment's output plus the segments occupying its slots.
type Seed struct {
	Segment segment.Segment
	// Node is the segment's own content, with Slot placeholders.
	Node  *Node
	Slots []SeedSlot
	// Loading, when set, is shown in place of each slot occupant while it is pending.
	Loading            *Node
	IsPartial          bool
	HasRuntimePrefetch bool
}

// SeedSlot binds a slot key to its occupant.
type SeedSlot struct {
	Key  string
	Seed *Seed
}

// SegmentData is a single segment's output, without its slot occupants.
type SegmentData struct {
	Node               *Node
	Loading            *Node
	IsPartial          bool
	HasRuntimePrefetch bool
}

func (*Payload) model()     {}
func (*SegmentData) model() {}

// Slot returns the occupant of key, or nil.
func (s *Seed) Slot(key string) *Seed {
	for _, slot := range s.Slots {
		if slot.Key == key {
			return slot.Seed
		}
	}
	return nil
}

// Walk visits every seed under s with its path, parents before children.
func (s *Seed) Walk(path segment.Path, fn func(segment.Path, *Seed) error) error {
	if err := fn(path, s); err != nil {
		return err
	}
	for _, slot := range s.Slots {
		if slot.Seed == nil {
			continue
		}
		if err := slot.Seed.Walk(path.Child(slot.Key, slot.Seed.Segment), fn); err != nil {
			return err
		}
	}
	return nil
}

// Compose assembles the renderable tree for s by substituting slot
// placeholders with their occupants. A segment's Loading wraps each occupant
// in a fallback boundary; if the occupant is the validation boundary, the
// fallback is placed inside it so it counts as part of the occupant.
func Compose(s *Seed) *Node {
	if s == nil {
		return Fragment()
	}
	return s.compose(s.Node)
}

func (s *Seed) compose(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindSlot {
		occupant := s.Slot(n.Name)
		if occupant == nil {
			return Fragment()
		}
		return s.wrapLoading(Compose(occupant))
	}
	if n.Kind == KindPending && n.Hole != nil {
		if resolved, err := n.Hole.Result(); err == nil && resolved != nil {
			return s.compose(resolved)
		}
		return n
	}

	out := *n
	out.Fallback = s.compose(n.Fallback)
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = s.compose(c)
		}
	}
	return &out
}

func (s *Seed) wrapLoading(child *Node) *Node {
	if s.Loading == nil {
		return child
	}
	if IsBoundary(child) {
		return Boundary(Suspense(s.Loading, child.Children...))
	}
	return Suspense(s.Loading, child)
}
