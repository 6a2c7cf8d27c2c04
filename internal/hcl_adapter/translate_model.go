// This file contains the logic for translating HCL schema structs into the
// format-agnostic route description defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stagecheck/internal/config"
	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// translateSegment converts a segment block and everything below it.
func (l *Loader) translateSegment(ctx context.Context, s *Segment) (*config.Segment, error) {
	logger := ctxlog.FromContext(ctx).With("segment", s.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Translating HCL segment to route model.")

	out := &config.Segment{Name: s.Name}
	if s.Param != nil {
		kind := s.Param.Kind
		if kind == "" {
			kind = "d"
		}
		out.Param = &segment.Param{Name: s.Param.Name, Value: s.Param.Value, Kind: kind}
	}
	if s.Loading != nil {
		out.Loading = view.Text(*s.Loading)
	}

	if s.Layout != nil {
		mod, err := l.translateModule(ctx, s.Layout, routetree.ModuleLayout)
		if err != nil {
			return nil, fmt.Errorf("layout of segment %q: %w", s.Name, err)
		}
		out.Module = mod
	}

	occupants := len(s.Segments)
	if s.Page != nil {
		occupants++
	}
	if occupants > 1 {
		return nil, fmt.Errorf("segment %q has %d children occupants; declare extra slots with parallel blocks", s.Name, occupants)
	}
	if s.Page != nil {
		mod, err := l.translateModule(ctx, s.Page, routetree.ModulePage)
		if err != nil {
			return nil, fmt.Errorf("page of segment %q: %w", s.Name, err)
		}
		page := &config.Segment{Name: segment.PageName, Module: mod}
		out.Children = append(out.Children, &config.Slot{Key: segment.ChildrenKey, Segment: page})
	}
	for _, child := range s.Segments {
		c, err := l.translateSegment(ctx, child)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, &config.Slot{Key: segment.ChildrenKey, Segment: c})
	}

	for _, p := range s.Parallel {
		if p.Key == segment.ChildrenKey {
			return nil, fmt.Errorf("segment %q: parallel slot cannot be named %q", s.Name, segment.ChildrenKey)
		}
		if p.Segment == nil {
			return nil, fmt.Errorf("segment %q: parallel slot %q has no segment", s.Name, p.Key)
		}
		c, err := l.translateSegment(ctx, p.Segment)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, &config.Slot{Key: p.Key, Segment: c})
	}
	return out, nil
}

// translateModule converts a layout or page block.
func (l *Loader) translateModule(ctx context.Context, m *Module, kind routetree.ModuleKind) (*config.Module, error) {
	instant, err := translateInstant(ctx, m.Instant)
	if err != nil {
		return nil, err
	}
	out := &config.Module{Kind: kind, Source: m.Source, Instant: instant}
	if m.View != nil {
		nodes, err := l.translateView(ctx, m.View.Body)
		if err != nil {
			return nil, err
		}
		out.View = view.Fragment(nodes...)
		if len(nodes) == 1 {
			out.View = nodes[0]
		}
	}
	ctxlog.FromContext(ctx).Debug("Translated module.", "kind", kind.String(), "source", m.Source, "instant", instant.String())
	return out, nil
}
