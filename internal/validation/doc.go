// Package validation checks that navigating into a segment shows something
// immediately. For every navigation it renders the combined payload, with
// the first new segment wrapped in the validation boundary, and reports each
// piece of output below the boundary that is still pending and not covered by
// a fallback.
package validation
