package flight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/phase"
	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/stage"
	"github.com/specialistvlad/stagecheck/internal/view"
	"github.com/vmihailenco/msgpack/v5"
)

// Renderer is the msgpack implementation of render.Renderer.
type Renderer struct {
	now func() time.Time
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

var _ render.Renderer = (*Renderer)(nil)

// Render writes row 0 for m and schedules a row for every piece of output
// that is not ready yet: data accesses waiting for a later stage and holes
// left by a previous decode. A synchronous access reached early interrupts
// the attempt through opts.Interrupter; if that abandons it, Render returns
// stage.ErrAbandoned.
func (r *Renderer) Render(ctx context.Context, m view.Model, modules render.Modules, w render.ChunkWriter, opts render.Options) (*phase.Gate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := &request{
		ctx:      ctx,
		modules:  modules,
		w:        w,
		opts:     opts,
		now:      r.now,
		nextID:   1,
		finished: phase.NewGate(),
	}
	stop := context.AfterFunc(ctx, func() {
		q.abort(fmt.Errorf("%w: %w", stage.ErrCancelled, context.Cause(ctx)))
	})
	q.finished.OnFire(func(error) { stop() })

	if err := q.run(m); err != nil {
		q.abort(err)
		return nil, err
	}
	return q.finished, nil
}

type request struct {
	ctx     context.Context
	modules render.Modules
	w       render.ChunkWriter
	opts    render.Options
	now     func() time.Time

	mu       sync.Mutex
	nextID   int
	pending  int
	rootDone bool
	aborted  bool
	finished *phase.Gate

	writeMu sync.Mutex
}

func (q *request) run(m view.Model) error {
	row := wireRow{ID: 0}
	switch m := m.(type) {
	case *view.Payload:
		seed, err := q.encodeSeed(m.Seed)
		if err != nil {
			return err
		}
		head, err := q.encodeNode(m.Head, nil)
		if err != nil {
			return err
		}
		row.Payload = &wirePayload{Seed: seed, Head: head}
	case *view.SegmentData:
		node, err := q.encodeNode(m.Node, nil)
		if err != nil {
			return err
		}
		loading, err := q.encodeNode(m.Loading, nil)
		if err != nil {
			return err
		}
		row.Segment = &wireSegmentData{Node: node, Loading: loading, Partial: m.IsPartial, RuntimePrefetch: m.HasRuntimePrefetch}
	default:
		return invariant.Errorf("cannot render model of type %T", m)
	}
	if err := q.writeRow(&row); err != nil {
		return err
	}

	q.mu.Lock()
	q.rootDone = true
	done := q.pending == 0
	q.mu.Unlock()
	if done {
		q.finished.Open()
	}
	return nil
}

func (q *request) encodeSeed(s *view.Seed) (*wireSeed, error) {
	if s == nil {
		return nil, invariant.Errorf("payload has no seed")
	}
	node, err := q.encodeNode(s.Node, nil)
	if err != nil {
		return nil, err
	}
	loading, err := q.encodeNode(s.Loading, nil)
	if err != nil {
		return nil, err
	}
	w := &wireSeed{
		Segment:         toWireSegment(s.Segment),
		Node:            node,
		Loading:         loading,
		Partial:         s.IsPartial,
		RuntimePrefetch: s.HasRuntimePrefetch,
	}
	for _, slot := range s.Slots {
		child, err := q.encodeSeed(slot.Seed)
		if err != nil {
			return nil, err
		}
		w.Slots = append(w.Slots, wireSeedSlot{Key: slot.Key, Seed: child})
	}
	return w, nil
}

func (q *request) encodeChildren(children []*view.Node, owners []string) ([]*wireNode, error) {
	if len(children) == 0 {
		return nil, nil
	}
	out := make([]*wireNode, 0, len(children))
	for _, c := range children {
		w, err := q.encodeNode(c, owners)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out = append(out, w)
		}
	}
	return out, nil
}

func (q *request) encodeNode(n *view.Node, owners []string) (*wireNode, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case view.KindElement:
		w := &wireNode{K: wireElement, N: n.Name}
		if n.Client {
			id, ok := q.modules[n.Name]
			if !ok {
				return nil, fmt.Errorf("client component %q is missing from the module table", n.Name)
			}
			w.N, w.M = "", id
		}
		children, err := q.encodeChildren(n.Children, append(owners[:len(owners):len(owners)], n.Name))
		if err != nil {
			return nil, err
		}
		w.C = children
		return w, nil
	case view.KindText:
		return &wireNode{K: wireText, T: n.Text}, nil
	case view.KindFragment:
		children, err := q.encodeChildren(n.Children, owners)
		if err != nil {
			return nil, err
		}
		return &wireNode{K: wireFragment, C: children}, nil
	case view.KindSuspense:
		fallback, err := q.encodeNode(n.Fallback, owners)
		if err != nil {
			return nil, err
		}
		children, err := q.encodeChildren(n.Children, owners)
		if err != nil {
			return nil, err
		}
		return &wireNode{K: wireSuspense, F: fallback, C: children}, nil
	case view.KindSlot:
		return &wireNode{K: wireSlot, N: n.Name}, nil
	case view.KindError:
		return &wireNode{K: wireError, D: n.Digest}, nil
	case view.KindData:
		return q.encodeData(n, owners)
	case view.KindPending:
		return q.encodeHole(n.Hole, owners)
	default:
		return nil, invariant.Errorf("unknown view node kind %s", n.Kind)
	}
}

func (q *request) currentStage() stage.Stage {
	if q.opts.Stages == nil {
		return stage.Dynamic
	}
	return q.opts.Stages.CurrentStage()
}

func (q *request) encodeData(n *view.Node, owners []string) (*wireNode, error) {
	access := view.Access{Stage: stage.Static}
	if n.Access != nil {
		access = *n.Access
	}
	current := q.currentStage()
	if current == stage.Abandoned {
		return nil, stage.ErrAbandoned
	}

	if access.Sync && access.Stage > current && q.opts.Interrupter != nil && q.opts.Interrupter.CanSyncInterrupt() {
		q.opts.Interrupter.SyncInterrupt(&render.SyncAccessError{Name: n.Name, Site: access.Site, Stage: access.Stage})
		current = q.currentStage()
		if current == stage.Abandoned {
			return nil, stage.ErrAbandoned
		}
	}
	if access.Stage <= current || q.opts.Stages == nil {
		return q.resolveData(n, access, owners)
	}

	id := q.allocate()
	q.writeDebug(&wireDebug{
		ID:     id,
		Site:   access.Site,
		Stack:  owners,
		Sync:   access.Sync,
		Digest: access.Digest,
		Env:    q.environment(access.Stage),
		At:     q.now().UnixNano(),
		Stage:  uint8(access.Stage),
	})
	if err := q.opts.Stages.OnStage(access.Stage, func() { q.emitData(id, n, access, owners) }); err != nil {
		return nil, err
	}
	return &wireNode{K: wireRef, R: id}, nil
}

func (q *request) resolveData(n *view.Node, access view.Access, owners []string) (*wireNode, error) {
	if access.Digest != "" {
		return &wireNode{K: wireError, D: q.digest(&render.WellKnownError{Digest: access.Digest})}, nil
	}
	children, err := q.encodeChildren(n.Children, owners)
	if err != nil {
		return nil, err
	}
	return &wireNode{K: wireFragment, C: children}, nil
}

func (q *request) emitData(id int, n *view.Node, access view.Access, owners []string) {
	defer q.settle()
	if q.stopped() {
		return
	}
	node, err := q.resolveData(n, access, owners)
	q.emit(id, node, err)
}

func (q *request) encodeHole(h *view.Hole, owners []string) (*wireNode, error) {
	if h == nil {
		return nil, invariant.Errorf("pending node without a hole")
	}
	if h.Settled() {
		node, err := h.Result()
		if err != nil {
			return &wireNode{K: wireError, D: q.digest(err)}, nil
		}
		return q.encodeNode(node, owners)
	}

	id := q.allocate()
	if d := h.Debug; d != nil {
		q.writeDebug(&wireDebug{
			ID:     id,
			Site:   d.Site,
			Stack:  d.Stack,
			Sync:   d.Sync,
			Digest: d.Digest,
			Env:    d.Environment,
			At:     d.At.UnixNano(),
			Stage:  uint8(d.Stage),
		})
	}
	h.OnSettle(func(node *view.Node, err error) {
		defer q.settle()
		if q.stopped() {
			return
		}
		if err != nil {
			q.emit(id, nil, err)
			return
		}
		w, encErr := q.encodeNode(node, owners)
		q.emit(id, w, encErr)
	})
	return &wireNode{K: wireRef, R: id}, nil
}

// emit writes the row for reference id, or an error row if err is set.
func (q *request) emit(id int, node *wireNode, err error) {
	if errors.Is(err, stage.ErrAbandoned) {
		q.abort(err)
		return
	}
	row := &wireRow{ID: id, Node: node}
	if err != nil {
		row = &wireRow{ID: id, Failed: true, Digest: q.digest(err)}
	} else if node == nil {
		row.Node = &wireNode{K: wireFragment}
	}
	if writeErr := q.writeRow(row); writeErr != nil {
		q.abort(writeErr)
	}
}

func (q *request) allocate() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.pending++
	return id
}

func (q *request) settle() {
	q.mu.Lock()
	q.pending--
	done := q.pending == 0 && q.rootDone
	q.mu.Unlock()
	if done {
		q.finished.Open()
	}
}

func (q *request) stopped() bool {
	q.mu.Lock()
	aborted := q.aborted
	q.mu.Unlock()
	return aborted || q.ctx.Err() != nil || q.currentStage() == stage.Abandoned
}

func (q *request) abort(err error) {
	q.mu.Lock()
	q.aborted = true
	q.mu.Unlock()
	q.finished.Fail(err)
}

func (q *request) digest(err error) string {
	if q.opts.OnError != nil {
		return q.opts.OnError(err)
	}
	return render.Digest(err)
}

func (q *request) environment(s stage.Stage) string {
	if q.opts.Environment != nil {
		return q.opts.Environment(s)
	}
	return render.EnvironmentLabel(s, false)
}

func (q *request) writeRow(row *wireRow) error {
	b, err := msgpack.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row %d: %w", row.ID, err)
	}
	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	return q.w.WriteChunk(b)
}

func (q *request) writeDebug(d *wireDebug) {
	if q.opts.Debug == nil {
		return
	}
	b, err := msgpack.Marshal(d)
	if err != nil {
		return
	}
	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	_ = q.opts.Debug.WriteChunk(b)
}
