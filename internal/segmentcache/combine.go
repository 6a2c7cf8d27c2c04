package segmentcache

import (
	"context"
	"fmt"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/flight"
	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/routetree"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/stagedstream"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// CombineOptions configures CombinedPayload.
type CombineOptions struct {
	Options
	EndTimes StageEndTimes
	// UseRuntimeStageForPartialSegments prefetches every new segment with
	// runtime data, not only those below a runtime prefetch config.
	UseRuntimeStageForPartialSegments bool
	// Release lets partially deserialized segments finish with their full
	// output. Until it fires they stay exactly as their stage left them.
	Release *phase.Gate
}

type traversal uint8

const (
	sharedTree traversal = iota + 1
	newTree
)

func (t traversal) String() string {
	if t == sharedTree {
		return "shared"
	}
	return "new"
}

type combiner struct {
	ctx    context.Context
	cache  *Cache
	opts   CombineOptions
	parent segment.Path
	used   StageSet
}

// CombinedPayload builds the payload a client has right after navigating to
// task.Target from its navigation parent: every segment down to and
// including the parent fully resolved, everything below it only as far as
// its prefetch stage allows. The first new segment is wrapped in the
// validation boundary. It also returns the stages used for partial segments.
func CombinedPayload(ctx context.Context, tree *routetree.Tree, cache *Cache, task routetree.Task, opts CombineOptions) (*view.Payload, StageSet, error) {
	if len(task.Parents) == 0 {
		return nil, 0, invariant.Errorf("task for %s has no navigation parent", task.Target)
	}
	if opts.Release == nil {
		return nil, 0, invariant.Errorf("combined payload requires a release signal")
	}
	c := &combiner{ctx: ctx, cache: cache, opts: opts, parent: task.NavigationParent()}
	if tree.Find(c.parent) == nil {
		return nil, 0, invariant.Errorf("navigation parent %s is not part of the route", c.parent)
	}

	seed, err := c.seed(tree, sharedTree, sharedTree, false)
	if err != nil {
		return nil, 0, err
	}
	return &view.Payload{Seed: seed}, c.used, nil
}

func (c *combiner) seed(t *routetree.Tree, state, parentState traversal, runtimeSticky bool) (*view.Seed, error) {
	item, ok := c.cache.Get(t.Path)
	if !ok {
		return nil, invariant.Errorf("no cached output for segment %s", t.Path)
	}

	want := stage.Dynamic
	if state == newTree {
		if t.Instant().IsRuntime() {
			runtimeSticky = true
		}
		want = stage.Static
		if runtimeSticky || c.opts.UseRuntimeStageForPartialSegments {
			want = stage.Runtime
		}
		c.used.Add(want)
	}
	ctxlog.FromContext(c.ctx).Debug("Combining segment.", "segment", t.Path.String(), "state", state.String(), "stage", want.String())

	data, err := c.deserialize(item, want, t.Path)
	if err != nil {
		return nil, err
	}

	node := data.Node
	if state == newTree && parentState == sharedTree {
		node = view.Boundary(node)
	}
	s := &view.Seed{
		Segment:            t.Segment,
		Node:               node,
		Loading:            data.Loading,
		IsPartial:          want != stage.Dynamic,
		HasRuntimePrefetch: runtimeSticky,
	}

	childState := state
	if state == sharedTree && t.Path == c.parent {
		childState = newTree
	}
	for _, slot := range t.Slots {
		child, err := c.seed(slot.Tree, childState, state, runtimeSticky)
		if err != nil {
			return nil, err
		}
		s.Slots = append(s.Slots, view.SeedSlot{Key: slot.Key, Seed: child})
	}
	return s, nil
}

// deserialize decodes an item as far as want allows. Output beyond that is
// held back until the release signal fires.
func (c *combiner) deserialize(item *Item, want stage.Stage, path segment.Path) (*view.SegmentData, error) {
	partial, err := item.Chunks.ForStage(want)
	if err != nil {
		return nil, err
	}
	full := item.Chunks.All()

	dec, err := flight.NewDecoder(c.opts.Modules, flight.DecodeOptions{
		Debug:   item.DebugChunks(),
		EndTime: c.opts.EndTimes.For(want),
	})
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}

	var stream *stagedstream.Stream
	if len(partial) == len(full) {
		stream = stagedstream.FromChunks(full)
	} else {
		stream = stagedstream.NewLateRelease(partial, full, c.opts.Release)
	}
	sink := &decodeSink{Decoder: dec}
	stream.Pipe(sink)
	if err := sink.Err(); err != nil {
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}

	m, ok := dec.Root()
	if !ok {
		// The segment's own row only arrives with the rest of its output.
		hole := view.NewHole(0)
		dec.OnRoot(func(m view.Model, err error) {
			if err != nil {
				hole.Reject(err)
				return
			}
			if data, ok := m.(*view.SegmentData); ok {
				hole.Resolve(data.Node)
				return
			}
			hole.Reject(invariant.Errorf("segment %s decoded to %T", path, m))
		})
		return &view.SegmentData{Node: view.Pending(hole), IsPartial: true}, nil
	}
	data, ok := m.(*view.SegmentData)
	if !ok {
		return nil, invariant.Errorf("segment %s decoded to %T", path, m)
	}
	return data, nil
}
