// Package filter defines the column predicates accepted by resolution,
// location, and action calls: exact values, allowed sets, half-open numeric
// ranges, and user functions. Every predicate has a canonical key so a
// whole filter can serve as part of a memoization cache key.
package filter

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/table"
)

// Predicate decides whether a single cell value passes a filter.
type Predicate interface {
	Match(v cty.Value) (bool, error)
	// Key returns a canonical representation used in cache keys. Two
	// predicates with equal keys must accept the same values.
	Key() string
}

// Filter constrains columns by name. Columns absent from a table are left
// unconstrained until they appear; the resolution engine re-applies the
// filter as each computer's output is merged in.
type Filter map[string]Predicate

// Apply returns a new table holding only the rows whose present,
// constrained columns all satisfy their predicates.
func (f Filter) Apply(t *table.Table) (*table.Table, error) {
	if len(f) == 0 {
		return t, nil
	}
	var active []string
	for col := range f {
		if t.HasColumn(col) {
			active = append(active, col)
		}
	}
	if len(active) == 0 {
		return t, nil
	}
	sort.Strings(active)
	return t.Where(func(i int) (bool, error) {
		for _, col := range active {
			ok, err := f[col].Match(t.Value(i, col))
			if err != nil {
				return false, fmt.Errorf("filter on column %q: %w", col, err)
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	})
}

// Key returns a canonical representation of the whole filter, stable across
// map iteration order.
func (f Filter) Key() string {
	parts := make([]string, 0, len(f))
	for col, p := range f {
		parts = append(parts, col+"="+p.Key())
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// FromValues builds an exact-match filter from a coordinate assignment.
func FromValues(coords map[string]cty.Value) Filter {
	f := make(Filter, len(coords))
	for col, v := range coords {
		f[col] = Equal(v)
	}
	return f
}

type equalPredicate struct {
	want cty.Value
}

// Equal matches cells equal to the given value.
func Equal(v cty.Value) Predicate { return equalPredicate{want: v} }

func (p equalPredicate) Match(v cty.Value) (bool, error) {
	return valuesEqual(v, p.want), nil
}

func (p equalPredicate) Key() string {
	return "eq(" + table.ValueKey(p.want) + ")"
}

type oneOfPredicate struct {
	allowed []cty.Value
}

// OneOf matches cells equal to any of the given values.
func OneOf(vs ...cty.Value) Predicate {
	return oneOfPredicate{allowed: append([]cty.Value(nil), vs...)}
}

func (p oneOfPredicate) Match(v cty.Value) (bool, error) {
	for _, w := range p.allowed {
		if valuesEqual(v, w) {
			return true, nil
		}
	}
	return false, nil
}

func (p oneOfPredicate) Key() string {
	keys := make([]string, len(p.allowed))
	for i, w := range p.allowed {
		keys[i] = table.ValueKey(w)
	}
	sort.Strings(keys)
	return "in(" + strings.Join(keys, ",") + ")"
}

type rangePredicate struct {
	start, end cty.Value
}

// Range matches numeric cells in the half-open interval [start, end). Either
// bound may be cty.NilVal to leave that side open.
func Range(start, end cty.Value) Predicate {
	return rangePredicate{start: start, end: end}
}

func (p rangePredicate) Match(v cty.Value) (bool, error) {
	if v == cty.NilVal || v.IsNull() {
		return false, nil
	}
	if v.Type() != cty.Number {
		return false, fmt.Errorf("range filter applied to %s value", v.Type().FriendlyName())
	}
	if p.start != cty.NilVal && !v.GreaterThanOrEqualTo(p.start).True() {
		return false, nil
	}
	if p.end != cty.NilVal && !v.LessThan(p.end).True() {
		return false, nil
	}
	return true, nil
}

func (p rangePredicate) Key() string {
	return "range[" + table.ValueKey(p.start) + "," + table.ValueKey(p.end) + ")"
}

type funcPredicate struct {
	name string
	fn   func(cty.Value) (bool, error)
}

// Where matches cells accepted by a user function. The name identifies the
// predicate in cache keys; an empty name falls back to the function's
// pointer identity, which is stable for the life of the process (and the
// cache never outlives the process).
func Where(name string, fn func(cty.Value) (bool, error)) Predicate {
	return funcPredicate{name: name, fn: fn}
}

func (p funcPredicate) Match(v cty.Value) (bool, error) {
	return p.fn(v)
}

func (p funcPredicate) Key() string {
	if p.name != "" {
		return "fn(" + p.name + ")"
	}
	return fmt.Sprintf("fn@%#x", reflect.ValueOf(p.fn).Pointer())
}

func valuesEqual(a, b cty.Value) bool {
	if a == cty.NilVal || b == cty.NilVal {
		return a == b
	}
	if a.IsNull() || b.IsNull() {
		return a.RawEquals(b)
	}
	eq := a.Equals(b)
	return eq.IsKnown() && eq.True()
}
