// Package manifest loads declarative HCL manifests into a registry
// database. Manifests declare coordinate dimensions (static value lists or
// expressions over other coordinates) and data specs whose locations are
// expression templates and whose actions bind to Go handlers registered by
// name.
package manifest

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/fsutil"
	"github.com/vk/datagrid/internal/registry"
	"github.com/vk/datagrid/internal/table"
)

// Loader parses manifest files and binds their action references against
// registered Go handlers.
type Loader struct {
	actions map[string]registry.ActionFunc
}

// NewLoader creates an empty manifest loader.
func NewLoader() *Loader {
	return &Loader{actions: make(map[string]registry.ActionFunc)}
}

// RegisterAction registers a Go handler under a name that manifests can
// reference from their actions blocks.
func (l *Loader) RegisterAction(name string, fn registry.ActionFunc) {
	if _, exists := l.actions[name]; exists {
		panic(fmt.Sprintf("action handler with name '%s' already registered", name))
	}
	l.actions[name] = fn
}

// Load parses every .hcl file under the given paths and declares the
// resulting computers and data specs into db.
func (l *Loader) Load(ctx context.Context, db *registry.Database, paths ...string) error {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	logger.Debug("Discovered manifest files.", "count", len(files))

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse manifest %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return fmt.Errorf("failed to decode manifest %s: %w", file, diags)
		}

		for _, block := range root.Coordinates {
			cc, err := l.translateCoordinate(block)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if err := db.Declare(cc); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
		}
		for _, block := range root.Data {
			d, err := l.translateData(block)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if err := db.Declare(d); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
		}
	}
	logger.Debug("Manifest loading complete.", "files", len(files))
	return nil
}

func (l *Loader) translateCoordinate(block *coordinateBlock) (registry.CoordComputer, error) {
	hasValues := block.Values != nil
	hasExpr := block.Expr != nil

	switch {
	case hasValues && hasExpr:
		return registry.CoordComputer{}, fmt.Errorf("coordinate %q: values and expr are mutually exclusive", block.Name)
	case hasValues:
		if len(block.Dependencies) > 0 {
			return registry.CoordComputer{}, fmt.Errorf("coordinate %q: a static value list cannot have dependencies", block.Name)
		}
		val, diags := block.Values.Value(nil)
		if diags.HasErrors() {
			return registry.CoordComputer{}, fmt.Errorf("coordinate %q: values must be a literal list: %w", block.Name, diags)
		}
		vals, err := elements(val)
		if err != nil {
			return registry.CoordComputer{}, fmt.Errorf("coordinate %q: %w", block.Name, err)
		}
		return registry.Static(block.Name, vals...), nil
	case hasExpr:
		return l.derivedCoordinate(block), nil
	default:
		return registry.CoordComputer{}, fmt.Errorf("coordinate %q: needs either values or expr", block.Name)
	}
}

// derivedCoordinate turns an expression into a row-wise computer: the
// expression runs once per dependency combination with the dependency
// values in scope, and a list result fans out into one row per element.
func (l *Loader) derivedCoordinate(block *coordinateBlock) registry.CoordComputer {
	name := block.Name
	expr := block.Expr
	return registry.RowWise([]string{name}, block.Dependencies,
		func(ctx context.Context, rt registry.Runtime, coords map[string]cty.Value) (*table.Table, error) {
			val, diags := expr.Value(&hcl.EvalContext{Variables: coords})
			if diags.HasErrors() {
				return nil, fmt.Errorf("evaluating expr: %w", diags)
			}
			if val.Type().IsTupleType() || val.Type().IsListType() || val.Type().IsSetType() {
				vals, err := elements(val)
				if err != nil {
					return nil, err
				}
				return table.FromValues(name, vals...), nil
			}
			return table.FromValues(name, val), nil
		})
}

func (l *Loader) translateData(block *dataBlock) (registry.Data, error) {
	locExpr := block.Location

	actions := make(map[string]registry.ActionFunc)
	if block.Actions != nil {
		attrs, diags := block.Actions.Body.JustAttributes()
		if diags.HasErrors() {
			return registry.Data{}, fmt.Errorf("data %q: invalid actions block: %w", block.Name, diags)
		}
		for actionName, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() || val.Type() != cty.String {
				return registry.Data{}, fmt.Errorf("data %q: action %q must name a registered handler", block.Name, actionName)
			}
			handler := val.AsString()
			fn, ok := l.actions[handler]
			if !ok {
				return registry.Data{}, fmt.Errorf("data %q: action %q references unregistered handler %q (registered: %v)",
					block.Name, actionName, handler, l.registeredNames())
			}
			actions[actionName] = fn
		}
	}

	return registry.Data{
		Name:         block.Name,
		Dependencies: append([]string(nil), block.Dependencies...),
		Location: func(coords map[string]cty.Value) (cty.Value, error) {
			val, diags := locExpr.Value(&hcl.EvalContext{Variables: coords})
			if diags.HasErrors() {
				return cty.NilVal, fmt.Errorf("evaluating location of %q: %w", block.Name, diags)
			}
			if val.IsNull() {
				return cty.NilVal, nil
			}
			return val, nil
		},
		Actions: actions,
	}, nil
}

func (l *Loader) registeredNames() []string {
	names := make([]string, 0, len(l.actions))
	for n := range l.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func elements(val cty.Value) ([]cty.Value, error) {
	if val.IsNull() {
		return nil, fmt.Errorf("value list is null")
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("expected a list of values, got %s", val.Type().FriendlyName())
	}
	var out []cty.Value
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		out = append(out, v)
	}
	return out, nil
}
