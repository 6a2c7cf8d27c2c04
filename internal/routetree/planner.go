package routetree

import (
	"context"
	"fmt"
	"slices"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/segment"
)

// Task is one navigation to validate: arriving at Target from any of
// Parents, ordered outermost first.
type Task struct {
	Target  segment.Path
	Parents []segment.Path
}

// NavigationParent is the deepest candidate parent.
func (t Task) NavigationParent() segment.Path {
	if len(t.Parents) == 0 {
		return ""
	}
	return t.Parents[len(t.Parents)-1]
}

func (t Task) String() string {
	return fmt.Sprintf("%s <- %v", t.Target, t.Parents)
}

// walkState is copied into every recursive call; nothing in it is mutated in
// place after the copy.
type walkState struct {
	parents   []segment.Path
	hasLayout bool
	inherited InstantConfig
	parent    segment.Path
	parallel  bool
}

func (s walkState) withParents(parents []segment.Path) walkState {
	s.parents = parents
	return s
}

func (s walkState) pushParent(p segment.Path) walkState {
	s.parents = append(slices.Clip(s.parents), p)
	return s
}

type planner struct {
	ctx   context.Context
	tasks []Task
}

// FindNavigationsToValidate returns the validation tasks for t. It returns
// an error wrapping ErrConfig for invalid configuration, and no tasks at all
// if any segment disables validation.
func FindNavigationsToValidate(ctx context.Context, t *Tree) ([]Task, error) {
	if err := CheckConfig(t); err != nil {
		return nil, err
	}
	p := &planner{ctx: ctx}
	if err := p.visit(t, walkState{}); err != nil {
		return nil, err
	}
	if anyDisablesValidation(t) {
		ctxlog.FromContext(ctx).Debug("Validation disabled by instant config.", "route", t.Path.String())
		return nil, nil
	}
	return p.tasks, nil
}

func (p *planner) emit(target segment.Path, parents []segment.Path) {
	p.tasks = append(p.tasks, Task{Target: target, Parents: slices.Clone(parents)})
}

func (p *planner) visit(t *Tree, st walkState) error {
	if mod := t.Module; mod != nil {
		if mod.Kind == ModulePage && !st.hasLayout {
			return fmt.Errorf("%w: page %s has no root layout", ErrConfig, t.Path)
		}

		if st.parallel {
			if mod.Instant.IsSet() {
				ctxlog.FromContext(p.ctx).Warn("Instant config is not fully implemented for parallel routes, skipping.",
					"segment", t.Path.String(), "config", mod.Instant.String())
			}
		} else {
			switch mod.Kind {
			case ModuleLayout:
				st = p.visitLayout(t, st)
			case ModulePage:
				st = p.visitPage(t, st)
			}
		}

		if mod.Kind == ModuleLayout {
			st.hasLayout = true
			st = st.pushParent(t.Path)
		}
		if mod.Instant.IsSet() {
			st.inherited = mod.Instant
		}
	}

	for _, slot := range t.Slots {
		child := st
		child.parent = t.Path
		if slot.Key != segment.ChildrenKey {
			child.parallel = true
		}
		if err := p.visit(slot.Tree, child); err != nil {
			return err
		}
	}
	return nil
}

func (p *planner) visitLayout(t *Tree, st walkState) walkState {
	switch t.Module.Instant.Kind {
	case ConfigBlocking:
		return st.withParents(nil)
	case ConfigPrefetch:
		if len(st.parents) > 0 {
			p.emit(t.Path, st.parents)
		}
		return st.withParents(nil)
	case ConfigNone:
	}
	return st
}

func (p *planner) visitPage(t *Tree, st walkState) walkState {
	config := t.Module.Instant
	if !config.IsSet() {
		config = st.inherited
	}
	switch config.Kind {
	case ConfigBlocking:
		return st.withParents(nil)
	case ConfigPrefetch:
		if !slices.Contains(st.parents, st.parent) {
			st = st.pushParent(st.parent)
		}
		p.emit(t.Path, st.parents)
		return st.withParents(nil)
	case ConfigNone:
	}
	return st
}

// CheckConfig rejects configurations no render can satisfy.
func CheckConfig(t *Tree) error {
	var err error
	var disabledAt, runtimeAt *Tree

	var check func(n *Tree, underLayout bool)
	check = func(n *Tree, underLayout bool) {
		if err != nil {
			return
		}
		if mod := n.Module; mod != nil {
			if mod.Kind == ModuleLayout && !underLayout && mod.Instant.IsRuntime() {
				err = fmt.Errorf("%w: root layout %s cannot use runtime prefetching", ErrConfig, n.Path)
				return
			}
			if mod.Instant.DisableValidation && disabledAt == nil {
				disabledAt = n
			}
			if mod.Instant.IsRuntime() && !mod.Instant.DisableValidation && runtimeAt == nil {
				runtimeAt = n
			}
			if mod.Kind == ModuleLayout {
				underLayout = true
			}
		}
		for _, s := range n.Slots {
			check(s.Tree, underLayout)
		}
	}
	check(t, false)
	if err != nil {
		return err
	}
	if disabledAt != nil && runtimeAt != nil {
		return fmt.Errorf("%w: %s disables validation while %s requires runtime prefetching", ErrConfig, disabledAt.Path, runtimeAt.Path)
	}
	return nil
}

func anyDisablesValidation(t *Tree) bool {
	found := false
	t.Walk(func(n *Tree) {
		if n.Instant().DisableValidation {
			found = true
		}
	})
	return found
}
