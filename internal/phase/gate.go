package phase

import (
	"context"
	"sync"
)

// Gate is a signal that fires exactly once, either opened (nil error) or
// failed with a reason.
type Gate struct {
	mu        sync.Mutex
	done      chan struct{}
	fired     bool
	err       error
	callbacks []func(error)
}

// NewGate returns an unfired Gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Open fires the gate successfully. It reports whether this call fired it.
func (g *Gate) Open() bool {
	return g.fire(nil)
}

// Fail fires the gate with err. A nil err is treated as Open.
func (g *Gate) Fail(err error) bool {
	return g.fire(err)
}

func (g *Gate) fire(err error) bool {
	g.mu.Lock()
	if g.fired {
		g.mu.Unlock()
		return false
	}
	g.fired = true
	g.err = err
	callbacks := g.callbacks
	g.callbacks = nil
	close(g.done)
	g.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
	return true
}

// Fired reports whether the gate has fired.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

// Err returns the failure reason, or nil if the gate is unfired or opened.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Done returns a channel closed when the gate fires.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the gate fires or ctx is done. It returns the gate's
// failure reason, or ctx.Err() if the context ended first.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnFire registers cb to run when the gate fires. If it already fired, cb
// runs immediately in the calling goroutine.
func (g *Gate) OnFire(cb func(err error)) {
	g.mu.Lock()
	if g.fired {
		err := g.err
		g.mu.Unlock()
		cb(err)
		return
	}
	g.callbacks = append(g.callbacks, cb)
	g.mu.Unlock()
}
