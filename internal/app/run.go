package app

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/filter"
	"github.com/vk/datagrid/internal/resolve"
)

// Run executes the main application logic: describe the database, or run
// the configured action against its target and print the result table.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	var opts []resolve.Option
	if a.config.ContinueOnError {
		opts = append(opts, resolve.WithContinueOnError())
	}
	inst, err := resolve.New(a.db, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize database instance: %w", err)
	}

	if a.config.Action == "" {
		fmt.Fprint(a.outW, inst.Describe())
		return nil
	}

	f := whereFilter(a.config.Where)
	a.logger.Info("Dispatching action.", "action", a.config.Action, "target", a.config.Target, "filter", f.Key())
	result, err := inst.RunAction(ctx, a.config.Action, a.config.Target, f)
	if err != nil {
		return fmt.Errorf("action failed: %w", err)
	}
	fmt.Fprint(a.outW, result)

	a.logger.Debug("App.Run method finished.")
	return nil
}

// whereFilter turns -where key=value pairs into an exact-match filter.
// Values that parse as numbers or booleans are compared as such.
func whereFilter(where map[string]string) filter.Filter {
	f := make(filter.Filter, len(where))
	for col, raw := range where {
		f[col] = filter.Equal(parseScalar(raw))
	}
	return f
}

func parseScalar(s string) cty.Value {
	switch s {
	case "true":
		return cty.True
	case "false":
		return cty.False
	}
	if n, err := cty.ParseNumberVal(s); err == nil {
		return n
	}
	return cty.StringVal(s)
}
