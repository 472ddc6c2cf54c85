// Package table implements the relational table underlying coordinate
// resolution: named columns of cty.Value cells with natural join, distinct
// projection, and group-collapse operations. Row order is first-seen
// insertion order, which keeps results deterministic for fixed inputs
// without promising callers any contractual ordering.
package table
