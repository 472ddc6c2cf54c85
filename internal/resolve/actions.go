package resolve

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/table"
)

// LocationAction is the pseudo-action that short-circuits to the resolved
// locations without invoking anything.
const LocationAction = "location"

// RunAction resolves the target's locations and invokes the named action
// once per resolved row, in row order. Results come back as a new column
// named after the action. Behavior on a failing row depends on the
// instance's continue-on-error mode: abort immediately with the row's
// context attached, or collect every failure and raise them together after
// the batch.
func (i *Instance) RunAction(ctx context.Context, action, target string, f filter.Filter) (*table.Table, error) {
	locs, err := i.GetLocations(ctx, target, f)
	if err != nil {
		return nil, err
	}
	if err := i.checkDuplicates(target, locs); err != nil {
		return nil, err
	}
	if action == LocationAction {
		return locs, nil
	}

	spec, _ := i.db.Data(target)
	fn, ok := spec.Actions[action]
	if !ok {
		return nil, &UnknownActionError{Target: target, Action: action}
	}

	ctx = ctxlog.With(ctx, "action", action, "target", target)
	logger := ctxlog.FromContext(ctx)

	total := locs.NumRows()
	logger.Info("Running action.", "total", total)

	results := make([]cty.Value, 0, total)
	var failures []error
	for r := 0; r < total; r++ {
		row := locs.Row(r)
		loc := row[LocationColumn]
		delete(row, LocationColumn)

		// Best-effort progress reporting; not part of the contract.
		logger.Debug("Dispatching action item.", "item", r+1, "total", total, "location", table.ValueKey(loc), "errors", len(failures))

		res, err := fn(ctx, i, loc, row)
		if err != nil {
			actionErr := &ActionError{Action: action, Target: target, Location: loc, Coords: row, Err: err}
			if !i.continueOnError {
				return nil, actionErr
			}
			logger.Error("Action item failed.", "location", table.ValueKey(loc), "error", err)
			failures = append(failures, actionErr)
			continue
		}
		if res == cty.NilVal {
			res = cty.NullVal(cty.DynamicPseudoType)
		}
		results = append(results, res)
	}

	if len(failures) > 0 {
		return nil, &BatchError{Action: action, Target: target, Errs: failures}
	}
	if err := locs.AppendColumn(action, results); err != nil {
		return nil, err
	}
	logger.Info("Action finished.", "total", total)
	return locs, nil
}

// RunActionSingle runs an action expecting exactly one resolved row and
// returns that row's result value.
func (i *Instance) RunActionSingle(ctx context.Context, action, target string, f filter.Filter) (cty.Value, error) {
	t, err := i.RunAction(ctx, action, target, f)
	if err != nil {
		return cty.NilVal, err
	}
	return extractSingle(t, action)
}

// Compute is shorthand for RunAction with the conventional "compute" action.
func (i *Instance) Compute(ctx context.Context, target string, f filter.Filter) (*table.Table, error) {
	return i.RunAction(ctx, "compute", target, f)
}

// ComputeSingle is shorthand for RunActionSingle with the "compute" action.
func (i *Instance) ComputeSingle(ctx context.Context, target string, f filter.Filter) (cty.Value, error) {
	return i.RunActionSingle(ctx, "compute", target, f)
}

// checkDuplicates fails when two coordinate rows share an identity: running
// an action twice against one artifact is always a declaration bug.
func (i *Instance) checkDuplicates(target string, locs *table.Table) error {
	counts := make(map[string]int, locs.NumRows())
	firstVal := make(map[string]cty.Value, locs.NumRows())
	for r := 0; r < locs.NumRows(); r++ {
		v := locs.Value(r, LocationColumn)
		k := table.ValueKey(v)
		counts[k]++
		if counts[k] == 1 {
			firstVal[k] = v
		}
	}
	var dupKeys []string
	for k, n := range counts {
		if n > 1 {
			dupKeys = append(dupKeys, k)
		}
	}
	if len(dupKeys) == 0 {
		return nil
	}

	var dupLocs []cty.Value
	offending, err := locs.Where(func(r int) (bool, error) {
		return counts[table.ValueKey(locs.Value(r, LocationColumn))] > 1, nil
	})
	if err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for r := 0; r < offending.NumRows(); r++ {
		k := table.ValueKey(offending.Value(r, LocationColumn))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dupLocs = append(dupLocs, firstVal[k])
	}
	return &DuplicateLocationError{Target: target, Locations: dupLocs, Rows: offending}
}
