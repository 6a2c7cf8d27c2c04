// Package config defines the format-agnostic route description model and the
// Loader interface for reading it from a concrete source.
//
// The `config.Model` is the single source of truth for the `routetree` and
// `engine` packages. Concrete loaders, such as for HCL, are provided in
// separate packages.
package config
