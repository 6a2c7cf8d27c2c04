package validation

import (
	"slices"

	"github.com/specialistvlad/stagecheck/internal/render"
	"github.com/specialistvlad/stagecheck/internal/view"
)

type inspectState struct {
	stack      []string
	inBoundary bool
	suspended  bool
}

// Inspect walks a composed tree and returns an error for every unsettled
// hole below the validation boundary that no fallback covers. Holes whose
// debug info carries a well-known digest are skipped. Target and navigation
// parent are left for the caller to fill in.
func Inspect(root *view.Node) []*Error {
	var out []*Error
	inspect(root, inspectState{}, &out)
	return out
}

func inspect(n *view.Node, st inspectState, out *[]*Error) {
	if n == nil {
		return
	}
	switch n.Kind {
	case view.KindElement:
		if view.IsBoundary(n) {
			// Fallbacks above the boundary belong to the shared tree and are
			// already showing their content.
			st.inBoundary = true
			st.suspended = false
		} else {
			st.stack = append(slices.Clip(st.stack), n.Name)
		}
	case view.KindSuspense:
		inspect(n.Fallback, st, out)
		st.suspended = true
	case view.KindPending:
		if n.Hole == nil {
			return
		}
		if n.Hole.Settled() {
			if resolved, err := n.Hole.Result(); err == nil {
				inspect(resolved, st, out)
			}
			return
		}
		if st.inBoundary && !st.suspended {
			if e := holeError(n.Hole, st); e != nil {
				*out = append(*out, e)
			}
		}
		return
	case view.KindText, view.KindFragment, view.KindData, view.KindSlot, view.KindError:
	}
	for _, c := range n.Children {
		inspect(c, st, out)
	}
}

func holeError(h *view.Hole, st inspectState) *Error {
	e := &Error{Label: LabelBlockingRoute, Stack: slices.Clone(st.stack)}
	if d := h.Debug; d != nil {
		if render.IsWellKnownDigest(d.Digest) {
			return nil
		}
		e.Site = d.Site
		e.Environment = d.Environment
		e.sync = d.Sync
		if d.Sync {
			e.Label = LabelConsoleError
		}
		if len(e.Stack) == 0 {
			e.Stack = slices.Clone(d.Stack)
		}
	}
	return e
}
