package validation

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/stagecheck/internal/segment"
)

const (
	// LabelBlockingRoute marks output that would block a navigation.
	LabelBlockingRoute = "Blocking Route"
	// LabelConsoleError marks a synchronous access reached too early.
	LabelConsoleError = "Console Error"
)

// HoleKind says which kind of prefetch would have filled a hole.
type HoleKind uint8

const (
	HoleUnclassified HoleKind = iota
	// HoleRuntime output is available with runtime prefetching.
	HoleRuntime
	// HoleDynamic output is only available at request time.
	HoleDynamic
)

func (k HoleKind) String() string {
	switch k {
	case HoleRuntime:
		return "runtime"
	case HoleDynamic:
		return "dynamic"
	default:
		return "unclassified"
	}
}

// Error is one blocking-navigation violation. It is reported, never returned.
type Error struct {
	Label            string
	Message          string
	Site             string
	Environment      string
	Stack            []string
	Target           segment.Path
	NavigationParent segment.Path
	HoleKind         HoleKind
	sync             bool
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Label, e.Message)
	if e.Site != "" {
		fmt.Fprintf(&b, " (at %s)", e.Site)
	}
	return b.String()
}

// key identifies the access behind a violation across retries.
func (e *Error) key() string {
	return e.Site + "\x00" + strings.Join(e.Stack, "\x00")
}

func (e *Error) describe() {
	from := e.NavigationParent.String()
	if e.sync {
		e.Message = fmt.Sprintf("navigating from %s to %s reaches a synchronous data access before its data is available. "+
			"Move the access below a fallback boundary or out of the prefetched segment", from, e.Target)
		return
	}
	e.Message = fmt.Sprintf("navigating from %s to %s blocks on data outside of a fallback boundary. "+
		"Wrap the component reading it in a fallback boundary or add a loading state to the segment", from, e.Target)
}
