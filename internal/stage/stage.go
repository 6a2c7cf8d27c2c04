// Package stage models the ordered readiness tiers of a staged render and the
// controller that drives one render attempt through them.
package stage

import (
	"errors"
	"fmt"
	"strings"
)

// Stage is an ordered readiness tier. The zero value is invalid.
type Stage uint8

const (
	// Before is the state of an attempt that has not started rendering.
	Before Stage = iota + 1
	// Static output is available at build time.
	Static
	// Runtime output is available to a prefetch that has request data.
	Runtime
	// Dynamic output requires the live request.
	Dynamic
	// Abandoned is terminal: the attempt will be retried from scratch.
	Abandoned
)

var (
	// ErrCancelled is returned by stage waits that were cut short by the
	// attempt's cancellation signal. It is an outcome, not a failure.
	ErrCancelled = errors.New("render cancelled")
	// ErrAbandoned is returned by a render that stopped because its attempt
	// was abandoned.
	ErrAbandoned = errors.New("render abandoned")
)

func (s Stage) String() string {
	switch s {
	case Before:
		return "before"
	case Static:
		return "static"
	case Runtime:
		return "runtime"
	case Dynamic:
		return "dynamic"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s >= Before && s <= Abandoned
}

// Parse maps the names a route description may use for a data access stage.
func Parse(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "static", "":
		return Static, nil
	case "runtime":
		return Runtime, nil
	case "dynamic":
		return Dynamic, nil
	default:
		return 0, fmt.Errorf("unknown stage %q: must be 'static', 'runtime' or 'dynamic'", name)
	}
}
