package resolve

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/registry"
	"github.com/vk/datagrid/internal/table"
)

// LocationColumn is the name of the column GetLocations adds to the
// resolved coordinate table.
const LocationColumn = "location"

// GetLocations resolves the coordinate dependencies of a data spec and adds
// a location column computed per row. Rows whose location function returns
// an absent identity are dropped.
func (i *Instance) GetLocations(ctx context.Context, data string, f filter.Filter) (*table.Table, error) {
	spec, ok := i.db.Data(data)
	if !ok {
		return nil, &UnknownDataError{Name: data}
	}
	coords, err := i.GetCoords(ctx, spec.Dependencies, f)
	if err != nil {
		return nil, err
	}

	locs := make([]cty.Value, 0, coords.NumRows())
	present := make([]bool, coords.NumRows())
	for r := 0; r < coords.NumRows(); r++ {
		row := coords.Row(r)
		loc, err := spec.Location(row)
		if err != nil {
			return nil, fmt.Errorf("resolving location of %s for %s: %w", data, registry.FormatCoords(row), err)
		}
		if loc == cty.NilVal || loc.IsNull() {
			continue
		}
		present[r] = true
		locs = append(locs, loc)
	}

	kept, err := coords.Where(func(r int) (bool, error) { return present[r], nil })
	if err != nil {
		return nil, err
	}
	if err := kept.AppendColumn(LocationColumn, locs); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Locations resolved.", "data", data, "rows", kept.NumRows(), "dropped", coords.NumRows()-kept.NumRows())
	return kept, nil
}

// GetSingleLocation resolves locations and extracts the single identity,
// failing unless exactly one row matches.
func (i *Instance) GetSingleLocation(ctx context.Context, data string, f filter.Filter) (cty.Value, error) {
	locs, err := i.GetLocations(ctx, data, f)
	if err != nil {
		return cty.NilVal, err
	}
	return extractSingle(locs, LocationColumn)
}
