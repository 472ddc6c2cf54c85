package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/registry"
	"github.com/vk/datagrid/internal/table"
)

// GetCoords returns one row per distinct valid combination of the requested
// coordinate names. Other columns survive only where they are fully
// determined by the requested combination. Results are memoized per
// (names, filter); callers receive a defensive copy.
func (i *Instance) GetCoords(ctx context.Context, names []string, f filter.Filter) (*table.Table, error) {
	if len(names) == 0 {
		return nil, ErrNoCoordinates
	}
	names = dedupe(names)
	key := memoKey(names, f)
	if cached, ok := i.memo.Get(key); ok {
		ctxlog.FromContext(ctx).Debug("Resolution cache hit.", "key", key)
		return cached.(*table.Table).Copy(), nil
	}
	res, err := i.resolveCoords(ctx, names, f)
	if err != nil {
		return nil, err
	}
	i.memo.Set(key, res, gocache.NoExpiration)
	return res.Copy(), nil
}

// GetSingleCoord resolves a single coordinate name and extracts its value,
// failing unless exactly one row matches.
func (i *Instance) GetSingleCoord(ctx context.Context, name string, f filter.Filter) (cty.Value, error) {
	t, err := i.GetCoords(ctx, []string{name}, f)
	if err != nil {
		return cty.NilVal, err
	}
	return extractSingle(t, name)
}

// resolveCoords runs the closure / iterative-join / collapse pipeline.
func (i *Instance) resolveCoords(ctx context.Context, names []string, f filter.Filter) (*table.Table, error) {
	logger := ctxlog.FromContext(ctx)
	closure, err := i.closure(names)
	if err != nil {
		return nil, err
	}
	logger.Debug("Dependency closure computed.", "requested", names, "closure", closure)

	tbl := table.Unit()
	for !tbl.HasColumns(closure) {
		progressed := false
		for _, cc := range i.db.Computers() {
			if !i.applicable(cc, closure, tbl) {
				continue
			}
			out, err := i.runComputer(ctx, cc, tbl, f)
			if err != nil {
				return nil, err
			}
			tbl = tbl.Join(out)
			progressed = true
			logger.Debug("Computer merged.", "coords", cc.Coords, "rows", tbl.NumRows(), "columns", tbl.Columns())
		}
		if !progressed {
			var missing []string
			for _, c := range closure {
				if !tbl.HasColumn(c) {
					missing = append(missing, c)
				}
			}
			return nil, &StallError{Missing: missing}
		}
	}

	collapsed, err := tbl.Collapse(names)
	if err != nil {
		return nil, err
	}
	logger.Debug("Resolution collapsed.", "requested", names, "rows", collapsed.NumRows())
	return collapsed, nil
}

// applicable reports whether a computer should run now: it produces at
// least one still-needed column, all of its dependencies are present, and
// its produced columns are not already fully present.
func (i *Instance) applicable(cc registry.CoordComputer, closure []string, tbl *table.Table) bool {
	needed := false
	for _, c := range cc.Coords {
		for _, want := range closure {
			if c == want {
				needed = true
				break
			}
		}
		if needed {
			break
		}
	}
	if !needed {
		return false
	}
	if !tbl.HasColumns(cc.Dependencies) {
		return false
	}
	return !tbl.HasColumns(cc.Coords)
}

// runComputer invokes one computer on the distinct dependency combinations
// currently present and filters its output before it is joined in.
func (i *Instance) runComputer(ctx context.Context, cc registry.CoordComputer, tbl *table.Table, f filter.Filter) (*table.Table, error) {
	params, err := tbl.Select(cc.Dependencies...)
	if err != nil {
		return nil, &ComputeError{Coords: cc.Coords, Err: err}
	}
	out, err := cc.Compute(ctx, i, params.Distinct())
	if err != nil {
		return nil, &ComputeError{Coords: cc.Coords, Err: err}
	}
	if !out.HasColumns(cc.Coords) {
		return nil, &ComputeError{Coords: cc.Coords, Err: fmt.Errorf("compute result is missing declared coordinate columns (got: %s)", strings.Join(out.Columns(), ", "))}
	}
	filtered, err := f.Apply(out)
	if err != nil {
		return nil, &ComputeError{Coords: cc.Coords, Err: err}
	}
	return filtered, nil
}

// closure returns the transitive dependency closure of the requested names,
// in deterministic order. A visited set keeps cyclic registries from
// recursing forever; the join loop's stall detection reports them.
func (i *Instance) closure(names []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	var visit func(name string) error
	visit = func(name string) error {
		if _, ok := seen[name]; ok {
			return nil
		}
		seen[name] = struct{}{}
		cc, ok := i.coords[name]
		if !ok {
			return &UnknownCoordinateError{Name: name}
		}
		out = append(out, name)
		for _, dep := range cc.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func memoKey(names []string, f filter.Filter) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + f.Key()
}

func extractSingle(t *table.Table, col string) (cty.Value, error) {
	if t.NumRows() != 1 {
		return cty.NilVal, &ExtractError{Count: t.NumRows(), Table: t}
	}
	return t.Value(0, col), nil
}
