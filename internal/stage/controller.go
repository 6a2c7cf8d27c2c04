package stage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/phase"
)

// Controller tracks one render attempt's progress through the stages.
//
// Listener queues and stage gates are owned by the instance; every attempt
// gets its own Controller. A Controller built with an abort context is
// abandonable: synchronous interrupts abandon it instead of forcing it to
// Dynamic.
type Controller struct {
	mu      sync.Mutex
	current Stage

	staticInterrupt  error
	runtimeInterrupt error
	staticEnd        time.Time
	runtimeEnd       time.Time

	runtimeListeners []func()
	dynamicListeners []func()
	runtimeGate      *phase.Gate
	dynamicGate      *phase.Gate
	// A gate is claimed under mu by whoever settles it, so an abort and an
	// advance never both decide the same gate.
	runtimeClaimed bool
	dynamicClaimed bool

	mayAbandon         bool
	hasRuntimePrefetch bool
	stopAbort          func() bool
	now                func() time.Time
}

// NewController creates a controller in the Before stage. If abort is
// non-nil the controller is abandonable, and cancelling abort rejects every
// stage wait that has not resolved yet.
func NewController(abort context.Context, hasRuntimePrefetch bool) *Controller {
	c := &Controller{
		current:            Before,
		runtimeGate:        phase.NewGate(),
		dynamicGate:        phase.NewGate(),
		hasRuntimePrefetch: hasRuntimePrefetch,
		now:                time.Now,
	}
	if abort != nil {
		c.mayAbandon = true
		c.stopAbort = context.AfterFunc(abort, func() {
			c.onAbort(context.Cause(abort))
		})
	}
	return c
}

// onAbort rejects the stage waits that have not been claimed yet. The gates
// carry no callbacks of their own, so failing them under mu cannot re-enter
// the controller.
func (c *Controller) onAbort(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reason := fmt.Errorf("%w: %w", ErrCancelled, cause)
	if !c.runtimeClaimed && c.current < Runtime {
		c.runtimeClaimed = true
		c.runtimeGate.Fail(reason)
	}
	if !c.dynamicClaimed && (c.current < Dynamic || c.current == Abandoned) {
		c.dynamicClaimed = true
		c.dynamicGate.Fail(reason)
	}
}

// Close detaches the controller from its abort context.
func (c *Controller) Close() {
	if c.stopAbort != nil {
		c.stopAbort()
	}
}

// CurrentStage returns the stage the attempt is in.
func (c *Controller) CurrentStage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Abandonable reports whether the controller was built with an abort context.
func (c *Controller) Abandonable() bool {
	return c.mayAbandon
}

// HasRuntimePrefetch reports whether the route supports runtime prefetching.
func (c *Controller) HasRuntimePrefetch() bool {
	return c.hasRuntimePrefetch
}

// StaticInterruptReason is the cause recorded when a synchronous access
// forced the Static stage straight to Dynamic.
func (c *Controller) StaticInterruptReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staticInterrupt
}

// RuntimeInterruptReason is the Runtime counterpart of StaticInterruptReason.
func (c *Controller) RuntimeInterruptReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtimeInterrupt
}

// StaticStageEndTime is when the attempt left the Static stage. The zero
// time means it has not.
func (c *Controller) StaticStageEndTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staticEnd
}

// RuntimeStageEndTime is when the attempt reached Dynamic.
func (c *Controller) RuntimeStageEndTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtimeEnd
}

// OnStage runs cb once stage is reached. If the attempt is already at or past
// stage, cb runs immediately. Queued callbacks run in registration order,
// outside the controller's lock. Only Runtime and Dynamic accept listeners.
func (c *Controller) OnStage(stage Stage, cb func()) error {
	c.mu.Lock()
	if c.current >= stage {
		c.mu.Unlock()
		cb()
		return nil
	}
	switch stage {
	case Runtime:
		c.runtimeListeners = append(c.runtimeListeners, cb)
	case Dynamic:
		c.dynamicListeners = append(c.dynamicListeners, cb)
	case Before, Static, Abandoned:
		c.mu.Unlock()
		return invariant.Errorf("cannot listen for render stage %s", stage)
	default:
		c.mu.Unlock()
		return invariant.Errorf("invalid render stage %d", uint8(stage))
	}
	c.mu.Unlock()
	return nil
}

// WaitForStage blocks until stage is reached. It returns an error wrapping
// ErrCancelled if the attempt's abort signal fires first or ctx ends.
func (c *Controller) WaitForStage(ctx context.Context, stage Stage) error {
	var gate *phase.Gate
	switch stage {
	case Runtime:
		gate = c.runtimeGate
	case Dynamic:
		gate = c.dynamicGate
	case Before, Static, Abandoned:
		return invariant.Errorf("cannot wait for render stage %s", stage)
	default:
		return invariant.Errorf("invalid render stage %d", uint8(stage))
	}

	if err := gate.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return err
	}
	return nil
}

// CanSyncInterrupt reports whether a synchronous access may still interrupt
// the attempt. The boundary is Dynamic for routes with runtime prefetching
// and Runtime otherwise.
func (c *Controller) CanSyncInterrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == Before {
		return false
	}
	boundary := Runtime
	if c.hasRuntimePrefetch {
		boundary = Dynamic
	}
	return c.current < boundary
}

// SyncInterrupt handles a synchronous access that cannot wait for its stage.
// An abandonable attempt is abandoned. A final attempt records reason against
// the current stage and is forced to Dynamic.
func (c *Controller) SyncInterrupt(reason error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == Before {
		return
	}
	if c.mayAbandon {
		_ = c.abandon()
		return
	}

	switch current {
	case Static:
		c.mu.Lock()
		c.staticInterrupt = reason
		c.mu.Unlock()
		c.AdvanceStage(Dynamic)
	case Runtime:
		// Only a runtime prefetch is aborted by sync access in this stage.
		if c.hasRuntimePrefetch {
			c.mu.Lock()
			c.runtimeInterrupt = reason
			c.mu.Unlock()
			c.AdvanceStage(Dynamic)
		}
	case Before, Dynamic, Abandoned:
	}
}

// AbandonRender abandons an abandonable attempt. From Static it releases
// Runtime listeners and waiters; from Runtime nobody is released.
func (c *Controller) AbandonRender() error {
	if !c.mayAbandon {
		return invariant.Errorf("AbandonRender called on a stage controller that cannot be abandoned")
	}
	return c.abandon()
}

func (c *Controller) abandon() error {
	c.mu.Lock()
	switch c.current {
	case Static:
		c.current = Abandoned
		listeners := c.runtimeListeners
		c.runtimeListeners = nil
		open := !c.runtimeClaimed
		c.runtimeClaimed = true
		c.mu.Unlock()
		for _, cb := range listeners {
			cb()
		}
		if open {
			c.runtimeGate.Open()
		}
		return nil
	case Runtime:
		c.current = Abandoned
		c.mu.Unlock()
		return nil
	case Dynamic:
		c.mu.Unlock()
		return invariant.Errorf("cannot abandon a render that reached the dynamic stage")
	case Before, Abandoned:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return invariant.Errorf("invalid render stage %d", uint8(c.current))
	}
}

// AdvanceStage moves the attempt forward to stage. Requests for a stage at
// or behind the current one are ignored, so listeners never fire twice.
func (c *Controller) AdvanceStage(stage Stage) {
	c.mu.Lock()
	if stage < Static || stage > Dynamic || stage <= c.current {
		c.mu.Unlock()
		return
	}
	prev := c.current
	c.current = stage

	var fire []func()
	var gates []*phase.Gate
	if prev < Runtime && stage >= Runtime {
		c.staticEnd = c.now()
		fire = append(fire, c.runtimeListeners...)
		c.runtimeListeners = nil
		if !c.runtimeClaimed {
			c.runtimeClaimed = true
			gates = append(gates, c.runtimeGate)
		}
	}
	if prev < Dynamic && stage >= Dynamic {
		c.runtimeEnd = c.now()
		fire = append(fire, c.dynamicListeners...)
		c.dynamicListeners = nil
		if !c.dynamicClaimed {
			c.dynamicClaimed = true
			gates = append(gates, c.dynamicGate)
		}
	}
	c.mu.Unlock()

	for _, cb := range fire {
		cb()
	}
	for _, g := range gates {
		g.Open()
	}
}
