package phase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Phase is the fan-out scope of a single pipeline step.
type Phase struct {
	index int
	ctx   context.Context
	group *errgroup.Group
}

// Index is the zero-based position of the step in the pipeline.
func (p *Phase) Index() int {
	return p.index
}

// Context returns the step's context. It is cancelled once the step's
// barrier has been passed or any goroutine of the step has failed.
func (p *Phase) Context() context.Context {
	return p.ctx
}

// Go launches fn as part of this step. The barrier after the step waits for it.
func (p *Phase) Go(fn func(ctx context.Context) error) {
	p.group.Go(func() error {
		return fn(p.ctx)
	})
}

// Step is one stage of a pipeline.
type Step func(p *Phase) error

// Run executes steps in order. A step's goroutines are joined before the next
// step begins. The first error stops the pipeline.
func Run(ctx context.Context, steps ...Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		group, gctx := errgroup.WithContext(ctx)
		p := &Phase{index: i, ctx: gctx, group: group}

		stepErr := step(p)
		waitErr := group.Wait()
		if stepErr != nil {
			return fmt.Errorf("phase %d: %w", i, stepErr)
		}
		if waitErr != nil {
			return fmt.Errorf("phase %d: %w", i, waitErr)
		}
	}
	return nil
}
