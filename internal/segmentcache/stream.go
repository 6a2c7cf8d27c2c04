package segmentcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/stagedstream"
	"github.com/specialistvlad/stagecheck/internal/view"
)

// CombinedStream is the rendered combined payload.
type CombinedStream struct {
	// Stream yields what was renderable before the partial segments were
	// released, and the rest once the render signal fires.
	*stagedstream.Stream
	Debug [][]byte
}

// CombinedPayloadStream renders payload, then fires release so partial
// segments complete. Output produced before release is renderable; output
// after it is withheld until renderSignal fires.
func CombinedPayloadStream(ctx context.Context, payload *view.Payload, r render.Renderer, release, renderSignal *phase.Gate, opts Options) (*CombinedStream, error) {
	var mu sync.Mutex
	var renderable, all, debug [][]byte
	isRenderable := true

	w := render.ChunkWriterFunc(func(chunk []byte) error {
		mu.Lock()
		defer mu.Unlock()
		all = append(all, chunk)
		if isRenderable {
			renderable = append(renderable, chunk)
		}
		return nil
	})
	dw := render.ChunkWriterFunc(func(chunk []byte) error {
		mu.Lock()
		defer mu.Unlock()
		debug = append(debug, chunk)
		return nil
	})

	var finished *phase.Gate
	err := phase.Run(ctx,
		func(p *phase.Phase) error {
			var err error
			finished, err = r.Render(ctx, payload, opts.Modules, w, render.Options{
				OnError:     opts.OnError,
				Environment: opts.Environment,
				Debug:       dw,
			})
			return err
		},
		func(p *phase.Phase) error {
			mu.Lock()
			isRenderable = false
			mu.Unlock()
			release.Open()
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render combined payload: %w", err)
	}
	if err := finished.Wait(ctx); err != nil {
		return nil, fmt.Errorf("combined payload did not finish: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return &CombinedStream{
		Stream: stagedstream.NewLateRelease(renderable, all, renderSignal),
		Debug:  debug,
	}, nil
}
