package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/registry"
	"github.com/vk/datagrid/internal/table"
)

// ErrNoCoordinates is returned when a resolution call requests zero
// coordinate names; that is a caller configuration error, not an empty
// result.
var ErrNoCoordinates = errors.New("no coordinate names requested")

// CoordConflictError reports a coordinate produced by more than one
// computer, detected at instance construction.
type CoordConflictError struct {
	Coord string
}

func (e *CoordConflictError) Error() string {
	return fmt.Sprintf("coordinate %q has two computers", e.Coord)
}

// UnknownCoordinateError reports a coordinate name with no producing
// computer anywhere in its dependency closure.
type UnknownCoordinateError struct {
	Name string
}

func (e *UnknownCoordinateError) Error() string {
	return fmt.Sprintf("no computer produces coordinate %q", e.Name)
}

// StallError reports a join loop that stopped making progress: a full scan
// found no applicable computer while columns are still missing. This means
// the registry is cyclic or under-specified for the request.
type StallError struct {
	Missing []string
}

func (e *StallError) Error() string {
	return fmt.Sprintf("resolution stalled: no computer can produce remaining columns %s (cyclic or under-specified registry)", strings.Join(e.Missing, ", "))
}

// ComputeError wraps a failure inside a coordinate computer, annotated with
// the coordinate group being computed.
type ComputeError struct {
	Coords []string
	Err    error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("while computing %s: %v", strings.Join(e.Coords, ","), e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// UnknownDataError reports a reference to an undeclared data name.
type UnknownDataError struct {
	Name string
}

func (e *UnknownDataError) Error() string {
	return fmt.Sprintf("data %q is not declared", e.Name)
}

// UnknownActionError reports an action name the target data does not define.
type UnknownActionError struct {
	Target string
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("data %q has no action %q", e.Target, e.Action)
}

// DuplicateLocationError reports distinct coordinate rows resolving to the
// same artifact identity. Rows holds every offending row.
type DuplicateLocationError struct {
	Target    string
	Locations []cty.Value
	Rows      *table.Table
}

func (e *DuplicateLocationError) Error() string {
	locs := make([]string, len(e.Locations))
	for i, l := range e.Locations {
		locs[i] = table.ValueKey(l)
	}
	return fmt.Sprintf("duplicate locations for %q (%s); offending rows:\n%s", e.Target, strings.Join(locs, ", "), e.Rows)
}

// ExtractError reports a single-result accessor that found a row count
// other than one.
type ExtractError struct {
	Count int
	Table *table.Table
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("expected a single row, got %d:\n%s", e.Count, e.Table)
}

// ActionError wraps one failed action invocation with enough context to
// identify the coordinate row that caused it.
type ActionError struct {
	Action   string
	Target   string
	Location cty.Value
	Coords   map[string]cty.Value
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("during %s for %s(%s, %s): %v",
		e.Action, e.Target, table.ValueKey(e.Location), registry.FormatCoords(e.Coords), e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// BatchError aggregates every failure collected during a
// continue-on-error action batch.
type BatchError struct {
	Action string
	Target string
	Errs   []error
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = "  - " + err.Error()
	}
	return fmt.Sprintf("during %s for %s: %d of the batch failed:\n%s",
		e.Action, e.Target, len(e.Errs), strings.Join(msgs, "\n"))
}

// Unwrap exposes the component failures to errors.Is/As.
func (e *BatchError) Unwrap() []error { return e.Errs }
