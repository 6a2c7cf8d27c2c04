package segmentcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/flight"
	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/stagedstream"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// Options are shared by collection and recombination.
type Options struct {
	Modules     render.Modules
	OnError     func(err error) string
	Environment func(stage.Stage) string
}

// decodeSink remembers the first decoding failure of a piped stream.
type decodeSink struct {
	*flight.Decoder
	mu  sync.Mutex
	err error
}

func (s *decodeSink) WriteChunk(chunk []byte) error {
	if err := s.Decoder.WriteChunk(chunk); err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *decodeSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Collect replays a full render stage by stage and re-renders every segment
// into its own cache entry. Each entry's chunks are tagged with the stage the
// replay was in when they were produced, so they line up with the stages of
// the full render.
func Collect(ctx context.Context, full *stage.Chunks, debug [][]byte, r render.Renderer, opts Options) (*Cache, error) {
	logger := ctxlog.FromContext(ctx)
	cache := New()

	stager := stagedstream.New(full)
	dec, err := flight.NewDecoder(opts.Modules, flight.DecodeOptions{Debug: debug})
	if err != nil {
		return nil, err
	}
	sink := &decodeSink{Decoder: dec}

	var mu sync.Mutex
	var finished []*phase.Gate
	var lateErr error

	renderSegment := func(path segment.Path, seed *view.Seed) error {
		item, err := cache.Put(path)
		if err != nil {
			return err
		}
		data := &view.SegmentData{
			Node:               seed.Node,
			Loading:            seed.Loading,
			IsPartial:          seed.IsPartial,
			HasRuntimePrefetch: seed.HasRuntimePrefetch,
		}
		w := render.ChunkWriterFunc(func(chunk []byte) error {
			return item.Chunks.Append(stager.CurrentStage(), chunk)
		})
		done, err := r.Render(ctx, data, opts.Modules, w, render.Options{
			OnError:     opts.OnError,
			Environment: opts.Environment,
			Debug:       item,
		})
		if err != nil {
			return fmt.Errorf("failed to render segment %s: %w", path, err)
		}
		logger.Debug("Segment render started.", "segment", path.String())
		mu.Lock()
		finished = append(finished, done)
		mu.Unlock()
		return nil
	}

	launch := func(p *phase.Phase, m view.Model) error {
		payload, ok := m.(*view.Payload)
		if !ok {
			return invariant.Errorf("full render produced %T instead of a payload", m)
		}
		return payload.Seed.Walk(segment.Root(payload.Seed.Segment), func(path segment.Path, seed *view.Seed) error {
			if p == nil {
				return renderSegment(path, seed)
			}
			p.Go(func(context.Context) error {
				return renderSegment(path, seed)
			})
			return nil
		})
	}

	err = phase.Run(ctx,
		func(p *phase.Phase) error {
			stager.Pipe(sink)
			if m, ok := dec.Root(); ok {
				return launch(p, m)
			}
			dec.OnRoot(func(m view.Model, err error) {
				if err == nil {
					err = launch(nil, m)
				}
				mu.Lock()
				lateErr = err
				mu.Unlock()
			})
			return nil
		},
		func(p *phase.Phase) error {
			stager.AdvanceStage(stage.Runtime)
			return nil
		},
		func(p *phase.Phase) error {
			stager.AdvanceStage(stage.Dynamic)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if err := sink.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode full render: %w", err)
	}
	mu.Lock()
	if lateErr != nil {
		mu.Unlock()
		return nil, lateErr
	}
	gates := finished
	mu.Unlock()

	for _, g := range gates {
		if err := g.Wait(ctx); err != nil {
			return nil, fmt.Errorf("segment render did not finish: %w", err)
		}
	}
	logger.Debug("Segment cache collected.", "segments", cache.Len())
	return cache, nil
}
