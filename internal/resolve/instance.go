package resolve

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vk/datagrid/internal/registry"
)

// Instance is a resolved runtime view of one sealed database. It memoizes
// resolution results for its own lifetime and implements registry.Runtime.
type Instance struct {
	db *registry.Database
	// coords indexes each coordinate name to the computer that produces it.
	coords map[string]registry.CoordComputer
	memo   *gocache.Cache

	continueOnError bool
}

// Option configures an Instance at construction.
type Option func(*Instance)

// WithContinueOnError makes action batches collect failures and raise them
// together at the end, instead of aborting on the first one.
func WithContinueOnError() Option {
	return func(i *Instance) { i.continueOnError = true }
}

// New builds an Instance from a database, sealing it. It fails if any
// coordinate name is produced by more than one computer.
func New(db *registry.Database, opts ...Option) (*Instance, error) {
	inst := &Instance{
		db:     db,
		coords: make(map[string]registry.CoordComputer),
		memo:   gocache.New(gocache.NoExpiration, 0),
	}
	for _, cc := range db.Computers() {
		for _, c := range cc.Coords {
			if _, exists := inst.coords[c]; exists {
				return nil, &CoordConflictError{Coord: c}
			}
			inst.coords[c] = cc
		}
	}
	for _, opt := range opts {
		opt(inst)
	}
	db.Seal()
	return inst, nil
}

// ContinueOnError reports whether action batches run in
// collect-and-aggregate mode.
func (i *Instance) ContinueOnError() bool { return i.continueOnError }

// Describe renders a human-readable summary of the declared coordinates and
// data specs.
func (i *Instance) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database %s\n", i.db.Name())

	b.WriteString("  Coordinates:\n")
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "    coords\tdependencies\n")
	for _, cc := range i.db.Computers() {
		fmt.Fprintf(w, "    %s\t%s\n", joinOrNone(cc.Coords), joinOrNone(cc.Dependencies))
	}
	_ = w.Flush()

	b.WriteString("  Data:\n")
	w = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "    name\tdependencies\tactions\n")
	for _, name := range i.db.DataNames() {
		d, _ := i.db.Data(name)
		actions := make([]string, 0, len(d.Actions))
		for a := range d.Actions {
			actions = append(actions, a)
		}
		sort.Strings(actions)
		fmt.Fprintf(w, "    %s\t%s\t%s\n", name, joinOrNone(d.Dependencies), joinOrNone(actions))
	}
	_ = w.Flush()
	return b.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
