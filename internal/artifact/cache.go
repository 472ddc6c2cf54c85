package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/registry"
)

// Option configures the Cache wrapper.
type Option func(*options)

type options struct {
	save  SaveFunc
	force bool
}

// WithSaver replaces the default saver for the wrapped action's results.
func WithSaver(save SaveFunc) Option {
	return func(o *options) { o.save = save }
}

// WithForceRecompute disables the existence short-circuit, recomputing and
// republishing even when the artifact already exists.
func WithForceRecompute() Option {
	return func(o *options) { o.force = true }
}

// Cache wraps an action so that its contract becomes "ensure the artifact
// exists at the target identity; return the identity". If the target
// already exists the wrapped function is not invoked. If it returns a
// value, the value is persisted atomically at the target; if it returns
// nothing, the function is assumed to have written the artifact itself.
func Cache(fn registry.ActionFunc, opts ...Option) registry.ActionFunc {
	o := options{save: Save}
	for _, opt := range opts {
		opt(&o)
	}
	return func(ctx context.Context, rt registry.Runtime, location cty.Value, coords map[string]cty.Value) (cty.Value, error) {
		path, err := pathOf(location)
		if err != nil {
			return cty.NilVal, err
		}
		logger := ctxlog.FromContext(ctx)
		if !o.force {
			if _, err := os.Stat(path); err == nil {
				logger.Debug("Artifact exists, skipping computation.", "path", path)
				return location, nil
			} else if !os.IsNotExist(err) {
				return cty.NilVal, fmt.Errorf("checking artifact %s: %w", path, err)
			}
		}
		res, err := fn(ctx, rt, location, coords)
		if err != nil {
			return cty.NilVal, err
		}
		if res == cty.NilVal || res.IsNull() {
			return location, nil
		}
		if err := SaveAtomic(path, res, o.save); err != nil {
			return cty.NilVal, err
		}
		logger.Debug("Artifact published.", "path", path)
		return location, nil
	}
}

// SaveAtomic persists a value at path by saving to a temporary sibling file
// and renaming it onto the target. A crash mid-save leaves at most an
// orphaned temp file, never a partial artifact at the target path.
func SaveAtomic(path string, v cty.Value, save SaveFunc) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %s: %w", dir, err)
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	tmp := filepath.Join(dir, stem+".tmp"+ext)
	if err := save(tmp, v); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publishing artifact %s: %w", path, err)
	}
	return nil
}

// Precompute chains actions across targets: it ensures the compute action
// of another target has run for the same coordinate assignment before the
// wrapped action executes.
func Precompute(target string, fn registry.ActionFunc) registry.ActionFunc {
	return func(ctx context.Context, rt registry.Runtime, location cty.Value, coords map[string]cty.Value) (cty.Value, error) {
		if _, err := rt.ComputeSingle(ctx, target, filter.FromValues(coords)); err != nil {
			return cty.NilVal, fmt.Errorf("precomputing %s: %w", target, err)
		}
		return fn(ctx, rt, location, coords)
	}
}

func pathOf(location cty.Value) (string, error) {
	if location == cty.NilVal || location.IsNull() || location.Type() != cty.String {
		return "", fmt.Errorf("cached actions require a filesystem path identity, got %s", locationType(location))
	}
	return location.AsString(), nil
}

func locationType(location cty.Value) string {
	if location == cty.NilVal || location.IsNull() {
		return "absent identity"
	}
	return location.Type().FriendlyName()
}
