package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/table"
)

// Runtime is the resolution surface handed back into user callbacks, so a
// compute function or action can resolve other coordinates or trigger other
// targets. The resolve package's Instance implements it.
type Runtime interface {
	GetCoords(ctx context.Context, names []string, f filter.Filter) (*table.Table, error)
	GetSingleCoord(ctx context.Context, name string, f filter.Filter) (cty.Value, error)
	GetLocations(ctx context.Context, data string, f filter.Filter) (*table.Table, error)
	GetSingleLocation(ctx context.Context, data string, f filter.Filter) (cty.Value, error)
	RunAction(ctx context.Context, action, target string, f filter.Filter) (*table.Table, error)
	RunActionSingle(ctx context.Context, action, target string, f filter.Filter) (cty.Value, error)
	Compute(ctx context.Context, target string, f filter.Filter) (*table.Table, error)
	ComputeSingle(ctx context.Context, target string, f filter.Filter) (cty.Value, error)
}

// ComputeFunc produces coordinate values for a whole parameter table at
// once. The input holds one row per distinct combination of the computer's
// dependency columns; the output must contain every declared coordinate
// column and should carry the dependency columns through so results can be
// joined back.
type ComputeFunc func(ctx context.Context, rt Runtime, params *table.Table) (*table.Table, error)

// RowFunc produces coordinate values for a single dependency combination.
// The returned table needs only the produced columns; the row-wise adapter
// attaches the dependency values.
type RowFunc func(ctx context.Context, rt Runtime, coords map[string]cty.Value) (*table.Table, error)

// LocationFunc maps a coordinate assignment to an artifact identity.
// Returning cty.NilVal (or a null) means no artifact exists for that
// combination; the row is dropped, not an error.
type LocationFunc func(coords map[string]cty.Value) (cty.Value, error)

// ActionFunc executes a named action against one resolved identity.
// Returning cty.NilVal means the action produced no value.
type ActionFunc func(ctx context.Context, rt Runtime, location cty.Value, coords map[string]cty.Value) (cty.Value, error)

// Declaration is the closed set of things a Database can hold: a
// CoordComputer or a Data spec.
type Declaration interface {
	isDeclaration()
}

// CoordComputer declares how a group of coordinate columns is computed from
// other coordinate columns.
type CoordComputer struct {
	// Coords are the column names this computer produces.
	Coords []string
	// Dependencies are the column names that must be resolved first.
	Dependencies []string
	// Compute materializes the produced columns.
	Compute ComputeFunc
}

func (CoordComputer) isDeclaration() {}

// Data declares a named artifact kind: the coordinates its location depends
// on, the location function, and its named actions.
type Data struct {
	Name         string
	Dependencies []string
	Location     LocationFunc
	Actions      map[string]ActionFunc
}

func (Data) isDeclaration() {}

// RowComputeError carries the dependency combination that made a row-wise
// compute function fail.
type RowComputeError struct {
	Params map[string]cty.Value
	Err    error
}

func (e *RowComputeError) Error() string {
	return fmt.Sprintf("computing row %s: %v", FormatCoords(e.Params), e.Err)
}

func (e *RowComputeError) Unwrap() error { return e.Err }

// Static returns a computer producing a single dependency-free coordinate
// with a fixed set of values.
func Static(name string, values ...cty.Value) CoordComputer {
	vals := append([]cty.Value(nil), values...)
	return CoordComputer{
		Coords: []string{name},
		Compute: func(ctx context.Context, rt Runtime, params *table.Table) (*table.Table, error) {
			return table.FromValues(name, vals...), nil
		},
	}
}

// Vectorized returns a computer that hands the whole de-duplicated
// dependency table to fn in one call.
func Vectorized(coords, dependencies []string, fn ComputeFunc) CoordComputer {
	return CoordComputer{
		Coords:       append([]string(nil), coords...),
		Dependencies: append([]string(nil), dependencies...),
		Compute:      fn,
	}
}

// RowWise adapts a per-combination function into a computer: fn runs once
// per distinct dependency row, the dependency values are attached to its
// output, and the per-row tables are concatenated. Failures carry the
// offending dependency combination.
func RowWise(coords, dependencies []string, fn RowFunc) CoordComputer {
	deps := append([]string(nil), dependencies...)
	return CoordComputer{
		Coords:       append([]string(nil), coords...),
		Dependencies: deps,
		Compute: func(ctx context.Context, rt Runtime, params *table.Table) (*table.Table, error) {
			var acc *table.Table
			for i := 0; i < params.NumRows(); i++ {
				row := params.Row(i)
				out, err := fn(ctx, rt, row)
				if err != nil {
					return nil, &RowComputeError{Params: row, Err: err}
				}
				for _, dep := range deps {
					vals := make([]cty.Value, out.NumRows())
					for j := range vals {
						vals[j] = row[dep]
					}
					if !out.HasColumn(dep) {
						if err := out.AppendColumn(dep, vals); err != nil {
							return nil, &RowComputeError{Params: row, Err: err}
						}
					}
				}
				if acc == nil {
					acc = out
					continue
				}
				if err := appendRows(acc, out); err != nil {
					return nil, &RowComputeError{Params: row, Err: err}
				}
			}
			if acc == nil {
				acc = table.New(append(append([]string(nil), coords...), deps...)...)
			}
			return acc, nil
		},
	}
}

func appendRows(dst, src *table.Table) error {
	aligned, err := src.Select(dst.Columns()...)
	if err != nil {
		return err
	}
	for i := 0; i < aligned.NumRows(); i++ {
		row := aligned.Row(i)
		vals := make([]cty.Value, 0, len(row))
		for _, c := range dst.Columns() {
			vals = append(vals, row[c])
		}
		if err := dst.AddRow(vals...); err != nil {
			return err
		}
	}
	return nil
}

// FormatCoords renders a coordinate assignment for error messages and logs,
// with columns in a stable order.
func FormatCoords(coords map[string]cty.Value) string {
	keys := make([]string, 0, len(coords))
	for k := range coords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + table.ValueKey(coords[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
