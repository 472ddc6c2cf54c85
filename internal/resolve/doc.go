// Package resolve implements the coordinate resolution engine and the
// action dispatch layer on top of it. An Instance binds a sealed
// registry.Database and answers coordinate, location, and action queries by
// iteratively joining coordinate computers to a fixed point, filtering,
// and collapsing to one row per requested coordinate combination.
//
// Execution is single-threaded and synchronous. The per-instance
// memoization cache is the only shared mutable state and is append-only
// for the instance's lifetime.
package resolve
