package engine

import (
	"github.com/specialistvlad/stagecheck/internal/config"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// BuildPayload turns a route description into the payload of a full render.
// A segment without a view of its own renders its slots in declaration order.
func BuildPayload(m *config.Model) *view.Payload {
	return &view.Payload{Seed: seedFor(m.Root)}
}

func seedFor(s *config.Segment) *view.Seed {
	seed := &view.Seed{Segment: s.Descriptor(), Loading: s.Loading}
	if mod := s.Module; mod != nil {
		seed.Node = mod.View
		seed.HasRuntimePrefetch = mod.Instant.IsRuntime()
	}
	if seed.Node == nil {
		placeholders := make([]*view.Node, 0, len(s.Children))
		for _, c := range s.Children {
			placeholders = append(placeholders, view.Slot(c.Key))
		}
		seed.Node = view.Fragment(placeholders...)
	}
	for _, c := range s.Children {
		seed.Slots = append(seed.Slots, view.SeedSlot{Key: c.Key, Seed: seedFor(c.Segment)})
	}
	return seed
}
