package resolve_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/registry"
	"github.com/vk/datagrid/internal/resolve"
)

// spectrumDatabase declares subject = {s1,s2,s3} and a spectrum data item
// located at spectra/<subject>.bin with a compute action returning the
// location uppercased length (a stand-in for real work).
func spectrumDatabase(t *testing.T) *registry.Database {
	t.Helper()
	db := registry.New("lab")
	require.NoError(t, db.AddCoordComputer(registry.Static("subject",
		cty.StringVal("s1"), cty.StringVal("s2"), cty.StringVal("s3"))))
	require.NoError(t, db.AddData(registry.Data{
		Name:         "spectrum",
		Dependencies: []string{"subject"},
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			return cty.StringVal("spectra/" + coords["subject"].AsString() + ".bin"), nil
		},
		Actions: map[string]registry.ActionFunc{
			"compute": func(ctx context.Context, rt registry.Runtime, location cty.Value, coords map[string]cty.Value) (cty.Value, error) {
				return cty.StringVal("computed:" + location.AsString()), nil
			},
		},
	}))
	return db
}

func TestGetLocationsAddsColumnPerRow(t *testing.T) {
	inst, err := resolve.New(spectrumDatabase(t))
	require.NoError(t, err)

	locs, err := inst.GetLocations(context.Background(), "spectrum", nil)
	require.NoError(t, err)

	require.Equal(t, 3, locs.NumRows())
	require.True(t, locs.HasColumn(resolve.LocationColumn))
	want := map[string]struct{}{
		"string:spectra/s1.bin;": {},
		"string:spectra/s2.bin;": {},
		"string:spectra/s3.bin;": {},
	}
	assert.Equal(t, want, rowSet(t, locs, resolve.LocationColumn))
}

func TestGetLocationsDropsAbsentRows(t *testing.T) {
	db := registry.New("lab")
	require.NoError(t, db.AddCoordComputer(registry.Static("subject",
		cty.StringVal("s1"), cty.StringVal("s2"))))
	require.NoError(t, db.AddData(registry.Data{
		Name:         "partial",
		Dependencies: []string{"subject"},
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			if coords["subject"].AsString() == "s2" {
				return cty.NilVal, nil
			}
			return cty.StringVal("only-s1"), nil
		},
		Actions: map[string]registry.ActionFunc{},
	}))
	inst, err := resolve.New(db)
	require.NoError(t, err)

	locs, err := inst.GetLocations(context.Background(), "partial", nil)
	require.NoError(t, err)

	require.Equal(t, 1, locs.NumRows())
	assert.Equal(t, "s1", locs.Value(0, "subject").AsString())
}

func TestGetLocationsUnknownData(t *testing.T) {
	inst, err := resolve.New(spectrumDatabase(t))
	require.NoError(t, err)

	_, err = inst.GetLocations(context.Background(), "nope", nil)
	var unknown *resolve.UnknownDataError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
}

func TestGetSingleLocation(t *testing.T) {
	inst, err := resolve.New(spectrumDatabase(t))
	require.NoError(t, err)

	loc, err := inst.GetSingleLocation(context.Background(), "spectrum",
		filter.Filter{"subject": filter.Equal(cty.StringVal("s2"))})
	require.NoError(t, err)
	assert.Equal(t, "spectra/s2.bin", loc.AsString())
}

func TestRunActionAppendsResultsColumn(t *testing.T) {
	inst, err := resolve.New(spectrumDatabase(t))
	require.NoError(t, err)

	out, err := inst.Compute(context.Background(), "spectrum", nil)
	require.NoError(t, err)

	require.True(t, out.HasColumn("compute"))
	require.Equal(t, 3, out.NumRows())
	for r := 0; r < out.NumRows(); r++ {
		loc := out.Value(r, resolve.LocationColumn).AsString()
		assert.Equal(t, "computed:"+loc, out.Value(r, "compute").AsString())
	}
}

func TestRunActionLocationShortCircuits(t *testing.T) {
	db := registry.New("lab")
	require.NoError(t, db.AddCoordComputer(registry.Static("subject", cty.StringVal("s1"))))
	require.NoError(t, db.AddData(registry.Data{
		Name:         "spectrum",
		Dependencies: []string{"subject"},
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			return cty.StringVal("p"), nil
		},
		// No "location" action registered; the pseudo-action must not
		// need one.
		Actions: map[string]registry.ActionFunc{},
	}))
	inst, err := resolve.New(db)
	require.NoError(t, err)

	out, err := inst.RunAction(context.Background(), resolve.LocationAction, "spectrum", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumRows())
	assert.True(t, out.HasColumn(resolve.LocationColumn))
}

func TestRunActionUnknownAction(t *testing.T) {
	inst, err := resolve.New(spectrumDatabase(t))
	require.NoError(t, err)

	_, err = inst.RunAction(context.Background(), "archive", "spectrum", nil)
	var unknown *resolve.UnknownActionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "archive", unknown.Action)
}

func TestRunActionRejectsDuplicateLocations(t *testing.T) {
	db := registry.New("lab")
	require.NoError(t, db.AddCoordComputer(registry.Static("subject",
		cty.StringVal("s1"), cty.StringVal("s2"))))
	require.NoError(t, db.AddData(registry.Data{
		Name:         "collapsed",
		Dependencies: []string{"subject"},
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			return cty.StringVal("same-file"), nil
		},
		Actions: map[string]registry.ActionFunc{},
	}))
	inst, err := resolve.New(db)
	require.NoError(t, err)

	_, err = inst.RunAction(context.Background(), resolve.LocationAction, "collapsed", nil)
	var dup *resolve.DuplicateLocationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "collapsed", dup.Target)
	require.Len(t, dup.Locations, 1)
	assert.Equal(t, "same-file", dup.Locations[0].AsString())
	assert.Equal(t, 2, dup.Rows.NumRows())
}

func failingDatabase(t *testing.T, calls *atomic.Int64) *registry.Database {
	t.Helper()
	db := registry.New("lab")
	require.NoError(t, db.AddCoordComputer(registry.Static("subject",
		cty.StringVal("s1"), cty.StringVal("s2"), cty.StringVal("s3"))))
	require.NoError(t, db.AddData(registry.Data{
		Name:         "flaky",
		Dependencies: []string{"subject"},
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			return cty.StringVal(coords["subject"].AsString() + ".bin"), nil
		},
		Actions: map[string]registry.ActionFunc{
			"compute": func(ctx context.Context, rt registry.Runtime, location cty.Value, coords map[string]cty.Value) (cty.Value, error) {
				calls.Add(1)
				if coords["subject"].AsString() != "s2" {
					return cty.NilVal, fmt.Errorf("broken input for %s", coords["subject"].AsString())
				}
				return cty.True, nil
			},
		},
	}))
	return db
}

func TestRunActionFailsFastByDefault(t *testing.T) {
	var calls atomic.Int64
	inst, err := resolve.New(failingDatabase(t, &calls))
	require.NoError(t, err)

	_, err = inst.Compute(context.Background(), "flaky", nil)
	var actionErr *resolve.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "compute", actionErr.Action)
	assert.Equal(t, "flaky", actionErr.Target)
	assert.Contains(t, actionErr.Error(), "s1.bin")
	// The first row fails, so nothing after it runs.
	assert.Equal(t, int64(1), calls.Load())
}

func TestRunActionContinueOnErrorAggregates(t *testing.T) {
	var calls atomic.Int64
	inst, err := resolve.New(failingDatabase(t, &calls), resolve.WithContinueOnError())
	require.NoError(t, err)

	_, err = inst.Compute(context.Background(), "flaky", nil)
	var batch *resolve.BatchError
	require.ErrorAs(t, err, &batch)
	// Every row ran; exactly the two failing ones are reported.
	assert.Equal(t, int64(3), calls.Load())
	assert.Len(t, batch.Errs, 2)

	var actionErr *resolve.ActionError
	assert.ErrorAs(t, batch.Errs[0], &actionErr)
}

func TestRunActionSingle(t *testing.T) {
	inst, err := resolve.New(spectrumDatabase(t))
	require.NoError(t, err)
	ctx := context.Background()

	v, err := inst.ComputeSingle(ctx, "spectrum",
		filter.Filter{"subject": filter.Equal(cty.StringVal("s3"))})
	require.NoError(t, err)
	assert.Equal(t, "computed:spectra/s3.bin", v.AsString())

	_, err = inst.ComputeSingle(ctx, "spectrum", nil)
	var extract *resolve.ExtractError
	require.ErrorAs(t, err, &extract)
	assert.Equal(t, 3, extract.Count)
}

func TestActionsCanResolveThroughRuntime(t *testing.T) {
	db := registry.New("lab")
	require.NoError(t, db.AddCoordComputer(registry.Static("subject", cty.StringVal("s1"))))
	require.NoError(t, db.AddCoordComputer(registry.Static("threshold", cty.NumberIntVal(42))))
	require.NoError(t, db.AddData(registry.Data{
		Name:         "report",
		Dependencies: []string{"subject"},
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			return cty.StringVal(coords["subject"].AsString() + ".txt"), nil
		},
		Actions: map[string]registry.ActionFunc{
			"compute": func(ctx context.Context, rt registry.Runtime, location cty.Value, coords map[string]cty.Value) (cty.Value, error) {
				// Actions get the full runtime back, so they can pull
				// further coordinates mid-flight.
				return rt.GetSingleCoord(ctx, "threshold", nil)
			},
		},
	}))
	inst, err := resolve.New(db)
	require.NoError(t, err)

	v, err := inst.ComputeSingle(context.Background(), "report", nil)
	require.NoError(t, err)
	assert.True(t, v.Equals(cty.NumberIntVal(42)).True())
}
