package flight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/view"
	"github.com/vmihailenco/msgpack/v5"
)

// DecodeOptions configures a Decoder.
type DecodeOptions struct {
	// Debug is the complete debug side channel of the stream.
	Debug [][]byte
	// EndTime, when set, drops debug info recorded after it.
	EndTime time.Time
}

// Decoder rebuilds a view model from rows. It implements stagedstream.Sink.
type Decoder struct {
	mu     sync.Mutex
	names  map[string]string
	debug  map[int]*view.DebugInfo
	holes  map[int]*view.Hole
	early  map[int]*view.Node
	model  view.Model
	root   *phase.Gate
	closed bool
}

// NewDecoder creates a decoder resolving client modules through modules.
func NewDecoder(modules render.Modules, opts DecodeOptions) (*Decoder, error) {
	d := &Decoder{
		names: make(map[string]string, len(modules)),
		debug: make(map[int]*view.DebugInfo),
		holes: make(map[int]*view.Hole),
		early: make(map[int]*view.Node),
		root:  phase.NewGate(),
	}
	for name, id := range modules {
		d.names[id] = name
	}
	for _, chunk := range opts.Debug {
		var entry wireDebug
		if err := msgpack.Unmarshal(chunk, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode debug chunk: %w", err)
		}
		info := entry.info()
		if !opts.EndTime.IsZero() && info.At.After(opts.EndTime) {
			continue
		}
		d.debug[entry.ID] = info
	}
	return d, nil
}

// WriteChunk decodes one row.
func (d *Decoder) WriteChunk(chunk []byte) error {
	var row wireRow
	if err := msgpack.Unmarshal(chunk, &row); err != nil {
		return fmt.Errorf("failed to decode row: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("row %d received after the stream was closed", row.ID)
	}

	var settle func()
	switch {
	case row.ID == 0:
		m, err := d.decodeModel(&row)
		if err != nil {
			d.mu.Unlock()
			return err
		}
		d.model = m
		settle = func() { d.root.Open() }
	case row.Failed:
		err := &render.RowError{Digest: row.Digest}
		if h, ok := d.holes[row.ID]; ok {
			delete(d.holes, row.ID)
			settle = func() { h.Reject(err) }
		} else {
			d.early[row.ID] = view.Failed(row.Digest)
		}
	case row.Node != nil:
		n, err := d.decodeNode(row.Node)
		if err != nil {
			d.mu.Unlock()
			return err
		}
		if h, ok := d.holes[row.ID]; ok {
			delete(d.holes, row.ID)
			settle = func() { h.Resolve(n) }
		} else {
			d.early[row.ID] = n
		}
	default:
		d.mu.Unlock()
		return invariant.Errorf("row %d has no content", row.ID)
	}
	d.mu.Unlock()

	if settle != nil {
		settle()
	}
	return nil
}

// CloseWithError ends the stream. Holes still pending are rejected with err,
// or with ErrConnectionClosed if err is nil.
func (d *Decoder) CloseWithError(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	holes := d.holes
	d.holes = make(map[int]*view.Hole)
	d.mu.Unlock()

	if err == nil {
		err = ErrConnectionClosed
	}
	for _, h := range holes {
		h.Reject(err)
	}
	d.root.Fail(err)
}

// Root returns the model if row 0 has been decoded.
func (d *Decoder) Root() (view.Model, bool) {
	if d.root.Fired() && d.root.Err() == nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.model, true
	}
	return nil, false
}

// Wait blocks until row 0 has been decoded.
func (d *Decoder) Wait(ctx context.Context) (view.Model, error) {
	if err := d.root.Wait(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model, nil
}

// OnRoot runs cb once row 0 has been decoded or the stream has failed.
func (d *Decoder) OnRoot(cb func(view.Model, error)) {
	d.root.OnFire(func(err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		d.mu.Lock()
		m := d.model
		d.mu.Unlock()
		cb(m, nil)
	})
}

// Pending reports how many references are still waiting for their row.
func (d *Decoder) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.holes)
}

func (d *Decoder) decodeModel(row *wireRow) (view.Model, error) {
	switch {
	case row.Payload != nil:
		seed, err := d.decodeSeed(row.Payload.Seed)
		if err != nil {
			return nil, err
		}
		head, err := d.decodeNode(row.Payload.Head)
		if err != nil {
			return nil, err
		}
		return &view.Payload{Seed: seed, Head: head}, nil
	case row.Segment != nil:
		node, err := d.decodeNode(row.Segment.Node)
		if err != nil {
			return nil, err
		}
		loading, err := d.decodeNode(row.Segment.Loading)
		if err != nil {
			return nil, err
		}
		return &view.SegmentData{
			Node:               node,
			Loading:            loading,
			IsPartial:          row.Segment.Partial,
			HasRuntimePrefetch: row.Segment.RuntimePrefetch,
		}, nil
	default:
		return nil, invariant.Errorf("root row carries no model")
	}
}

func (d *Decoder) decodeSeed(w *wireSeed) (*view.Seed, error) {
	if w == nil {
		return nil, invariant.Errorf("payload has no seed")
	}
	node, err := d.decodeNode(w.Node)
	if err != nil {
		return nil, err
	}
	loading, err := d.decodeNode(w.Loading)
	if err != nil {
		return nil, err
	}
	s := &view.Seed{
		Segment:            w.Segment.segment(),
		Node:               node,
		Loading:            loading,
		IsPartial:          w.Partial,
		HasRuntimePrefetch: w.RuntimePrefetch,
	}
	for _, slot := range w.Slots {
		child, err := d.decodeSeed(slot.Seed)
		if err != nil {
			return nil, err
		}
		s.Slots = append(s.Slots, view.SeedSlot{Key: slot.Key, Seed: child})
	}
	return s, nil
}

func (d *Decoder) decodeChildren(ws []*wireNode) ([]*view.Node, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]*view.Node, 0, len(ws))
	for _, w := range ws {
		n, err := d.decodeNode(w)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// decodeNode runs with d.mu held.
func (d *Decoder) decodeNode(w *wireNode) (*view.Node, error) {
	if w == nil {
		return nil, nil
	}
	switch w.K {
	case wireElement:
		n := &view.Node{Kind: view.KindElement, Name: w.N}
		if w.M != "" {
			name, ok := d.names[w.M]
			if !ok {
				return nil, fmt.Errorf("unknown client module %q", w.M)
			}
			n.Name, n.Client = name, true
		}
		children, err := d.decodeChildren(w.C)
		if err != nil {
			return nil, err
		}
		n.Children = children
		return n, nil
	case wireText:
		return view.Text(w.T), nil
	case wireFragment:
		children, err := d.decodeChildren(w.C)
		if err != nil {
			return nil, err
		}
		return view.Fragment(children...), nil
	case wireSuspense:
		fallback, err := d.decodeNode(w.F)
		if err != nil {
			return nil, err
		}
		children, err := d.decodeChildren(w.C)
		if err != nil {
			return nil, err
		}
		return view.Suspense(fallback, children...), nil
	case wireSlot:
		return view.Slot(w.N), nil
	case wireError:
		return view.Failed(w.D), nil
	case wireRef:
		if w.R <= 0 {
			return nil, invariant.Errorf("reference to row %d", w.R)
		}
		if n, ok := d.early[w.R]; ok {
			delete(d.early, w.R)
			return n, nil
		}
		h, ok := d.holes[w.R]
		if !ok {
			h = view.NewHole(w.R)
			h.Debug = d.debug[w.R]
			d.holes[w.R] = h
		}
		return view.Pending(h), nil
	default:
		return nil, invariant.Errorf("unknown wire node kind %d", w.K)
	}
}

// Decode reads a complete stream.
func Decode(ctx context.Context, chunks [][]byte, modules render.Modules, opts DecodeOptions) (view.Model, error) {
	d, err := NewDecoder(modules, opts)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := d.WriteChunk(chunk); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := d.Root()
	d.CloseWithError(nil)
	if !ok {
		return nil, fmt.Errorf("stream ended without a root row")
	}
	return m, nil
}
