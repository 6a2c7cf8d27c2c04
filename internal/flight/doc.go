// Package flight is the reference implementation of the render contract.
//
// Output is a sequence of msgpack-encoded rows. Row 0 carries the model;
// every other row resolves a reference left in an earlier (or later) row by
// output that was not ready when its parent was written. References are
// positive integers. Debug information about each reference travels on a
// separate side channel so that consumers can drop it independently.
//
// The Decoder accepts rows in any order: a reference without its row becomes
// a view.Hole, and a row without its reference is held until the reference
// arrives.
package flight
