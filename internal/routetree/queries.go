package routetree

import (
	"github.com/specialistvlad/stagecheck/internal/segment"
)

// AnySegmentHasRuntimePrefetch reports whether any module requires runtime
// prefetching. Such routes move the sync-interrupt boundary to Dynamic.
func AnySegmentHasRuntimePrefetch(t *Tree) bool {
	found := false
	t.Walk(func(n *Tree) {
		if n.Instant().IsRuntime() {
			found = true
		}
	})
	return found
}

// AnySegmentNeedsValidation reports whether some module declares a prefetch
// contract and nothing disables validation.
func AnySegmentNeedsValidation(t *Tree) bool {
	if anyDisablesValidation(t) {
		return false
	}
	found := false
	t.Walk(func(n *Tree) {
		if n.Instant().Kind == ConfigPrefetch {
			found = true
		}
	})
	return found
}

// FindSegmentsWithInstantConfig lists the paths of every module declaring a
// config, in walk order.
func FindSegmentsWithInstantConfig(t *Tree) []segment.Path {
	var paths []segment.Path
	t.Walk(func(n *Tree) {
		if n.Instant().IsSet() {
			paths = append(paths, n.Path)
		}
	})
	return paths
}

// IsPageAllowedToBlock reports whether the route's page may block. Walking
// down from the root, the first config met on a branch decides it: false
// allows blocking, a prefetch config does not. The page may block if any
// branch allows it.
func IsPageAllowedToBlock(t *Tree) bool {
	switch t.Instant().Kind {
	case ConfigBlocking:
		return true
	case ConfigPrefetch:
		return false
	}
	for _, s := range t.Slots {
		if IsPageAllowedToBlock(s.Tree) {
			return true
		}
	}
	return false
}
