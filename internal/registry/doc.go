// Package registry provides the glue between the validation engine and the
// report sinks compiled into the binary.
//
// Modules register named sink factories. At startup the App resolves the
// sink names requested by the user against the registry, failing fast on
// unknown names, and after every validation pass the resulting report is
// published to each resolved sink.
package registry
