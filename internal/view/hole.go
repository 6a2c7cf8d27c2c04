package view

import (
	"sync"
	"time"

	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/stage"
)

// DebugInfo is what the debug side channel records about a pending access.
type DebugInfo struct {
	Site        string
	Stack       []string
	Sync        bool
	Digest      string
	Environment string
	At          time.Time
	Stage       stage.Stage
}

// Hole is output that has not arrived yet. It settles exactly once.
type Hole struct {
	ID    int
	Debug *DebugInfo

	mu      sync.Mutex
	settled bool
	node    *Node
	gate    *phase.Gate
}

func NewHole(id int) *Hole {
	return &Hole{ID: id, gate: phase.NewGate()}
}

// Resolve settles the hole with n.
func (h *Hole) Resolve(n *Node) {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return
	}
	h.settled = true
	h.node = n
	h.mu.Unlock()
	h.gate.Open()
}

// Reject settles the hole with err.
func (h *Hole) Reject(err error) {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return
	}
	h.settled = true
	h.mu.Unlock()
	h.gate.Fail(err)
}

// Settled reports whether the hole has been resolved or rejected.
func (h *Hole) Settled() bool {
	return h.gate.Fired()
}

// Result returns the settled outcome. Both values are nil while pending.
func (h *Hole) Result() (*Node, error) {
	if !h.gate.Fired() {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.node, h.gate.Err()
}

// OnSettle runs cb once the hole settles, immediately if it already has.
func (h *Hole) OnSettle(cb func(n *Node, err error)) {
	h.gate.OnFire(func(err error) {
		h.mu.Lock()
		n := h.node
		h.mu.Unlock()
		cb(n, err)
	})
}
