package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// ErrInvalidModel is wrapped by every structural model error.
var ErrInvalidModel = errors.New("invalid route description")

// Model is the unified, format-agnostic representation of one route.
type Model struct {
	Root *Segment
	// Files lists the sources the model was loaded from.
	Files []string
}

// Segment is one node of the route description.
type Segment struct {
	Name  string
	Param *segment.Param
	// Loading, when set, is the fallback shown while the segment's children
	// are pending.
	Loading  *view.Node
	Module   *Module
	Children []*Slot
}

// Slot binds a slot key to the segment occupying it.
type Slot struct {
	Key     string
	Segment *Segment
}

// Module is the layout or page attached to a segment.
type Module struct {
	Kind    routetree.ModuleKind
	Source  string
	Instant routetree.InstantConfig
	View    *view.Node
}

var _ routetree.Description = (*Segment)(nil)

// Descriptor returns the segment's identity.
func (s *Segment) Descriptor() segment.Segment {
	if s.Param != nil {
		p := *s.Param
		return segment.Segment{Name: s.Name, Param: &p}
	}
	return segment.Named(s.Name)
}

// ParallelChildren returns the occupied slots in declaration order.
func (s *Segment) ParallelChildren() []routetree.Child {
	if len(s.Children) == 0 {
		return nil
	}
	out := make([]routetree.Child, 0, len(s.Children))
	for _, c := range s.Children {
		out = append(out, routetree.Child{Key: c.Key, Node: c.Segment})
	}
	return out
}

// ModuleInfo returns what the route tree needs to know about the module.
func (s *Segment) ModuleInfo() *routetree.ModuleInfo {
	if s.Module == nil {
		return nil
	}
	return &routetree.ModuleInfo{Kind: s.Module.Kind, Instant: s.Module.Instant, Source: s.Module.Source}
}

// Slot returns the occupant of key, or nil.
func (s *Segment) Slot(key string) *Segment {
	for _, c := range s.Children {
		if c.Key == key {
			return c.Segment
		}
	}
	return nil
}

// Walk visits every segment, parents first.
func (s *Segment) Walk(fn func(*Segment)) {
	fn(s)
	for _, c := range s.Children {
		c.Segment.Walk(fn)
	}
}

// Validate checks the structural rules every loader must uphold.
func (m *Model) Validate() error {
	if m.Root == nil {
		return fmt.Errorf("%w: no root segment", ErrInvalidModel)
	}
	var err error
	var check func(s *Segment, path string)
	check = func(s *Segment, path string) {
		if err != nil {
			return
		}
		keys := make([]string, 0, len(s.Children))
		for _, c := range s.Children {
			if c.Segment == nil {
				err = fmt.Errorf("%w: slot %q of %s is empty", ErrInvalidModel, c.Key, path)
				return
			}
			if slices.Contains(keys, c.Key) {
				err = fmt.Errorf("%w: slot %q of %s has more than one occupant", ErrInvalidModel, c.Key, path)
				return
			}
			keys = append(keys, c.Key)
		}
		if mod := s.Module; mod != nil && mod.Kind == routetree.ModulePage && len(s.Children) > 0 {
			err = fmt.Errorf("%w: page segment %s cannot have children", ErrInvalidModel, path)
			return
		}
		for _, c := range s.Children {
			check(c.Segment, path+"/"+c.Segment.Name)
		}
	}
	check(m.Root, "/"+m.Root.Name)
	return err
}

// ClientModules builds the client module table for every client component
// used by the route. Module ids are derived from the declaring module's source.
func (m *Model) ClientModules() render.Modules {
	modules := render.Modules{}
	if m.Root == nil {
		return modules
	}
	m.Root.Walk(func(s *Segment) {
		if s.Module == nil {
			return
		}
		source := s.Module.Source
		if source == "" {
			source = s.Name
		}
		view.Walk(s.Module.View, func(n *view.Node) bool {
			if n.Kind == view.KindElement && n.Client {
				if _, ok := modules[n.Name]; !ok {
					modules[n.Name] = source + "#" + n.Name
				}
			}
			return true
		})
	})
	return modules
}
