// Package phase provides the synchronization primitives used by staged
// rendering.
//
// A Gate is a fire-once signal with fulfil and reject semantics. Any number
// of goroutines may wait on it, and callbacks registered with OnFire run
// synchronously in the goroutine that fires it. Once fired, a Gate stays
// fired.
//
// Run drives a sequence of steps separated by barriers. Each step may fan work
// out with Phase.Go; the next step starts only after every goroutine launched
// by the previous one has returned. Advancing between steps is always an
// explicit decision of the caller, never derived from the work itself.
package phase
