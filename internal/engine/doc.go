// Package engine drives one validation pass over a route: it renders the
// route in stages, slices the output per segment, plans the navigations to
// check and validates each of them.
package engine
