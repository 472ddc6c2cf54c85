package table

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Table is a mutable relational table. Columns are named and ordered; cells
// are cty values. A null cell means the value is missing for that row.
type Table struct {
	cols []string
	rows [][]cty.Value
}

// UnknownColumnError reports a reference to a column the table does not have.
type UnknownColumnError struct {
	Column string
	Have   []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q (have: %s)", e.Column, strings.Join(e.Have, ", "))
}

// New returns an empty table with the given columns and no rows.
func New(cols ...string) *Table {
	return &Table{cols: append([]string(nil), cols...)}
}

// Unit returns the identity of a cross join: a table with no columns and a
// single empty row. Joining anything onto it yields that thing unchanged.
func Unit() *Table {
	return &Table{rows: [][]cty.Value{{}}}
}

// FromValues returns a single-column table holding the given values in order.
func FromValues(col string, values ...cty.Value) *Table {
	t := New(col)
	for _, v := range values {
		t.rows = append(t.rows, []cty.Value{v})
	}
	return t
}

// Columns returns a copy of the table's column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

// HasColumns reports whether every named column is present.
func (t *Table) HasColumns(names []string) bool {
	for _, n := range names {
		if !t.HasColumn(n) {
			return false
		}
	}
	return true
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.cols {
		if c == name {
			return i
		}
	}
	return -1
}

// AddRow appends a row. The number of values must match the column count.
func (t *Table) AddRow(values ...cty.Value) error {
	if len(values) != len(t.cols) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.cols))
	}
	t.rows = append(t.rows, append([]cty.Value(nil), values...))
	return nil
}

// Value returns the cell at row i in the named column.
func (t *Table) Value(i int, col string) cty.Value {
	idx := t.columnIndex(col)
	if idx < 0 {
		return cty.NilVal
	}
	return t.rows[i][idx]
}

// Row returns row i as a column-name to value map. The map is a copy; the
// caller may mutate it freely.
func (t *Table) Row(i int) map[string]cty.Value {
	row := make(map[string]cty.Value, len(t.cols))
	for j, c := range t.cols {
		row[c] = t.rows[i][j]
	}
	return row
}

// Copy returns a deep copy of the table. Cell values are immutable and are
// shared between the copies.
func (t *Table) Copy() *Table {
	out := &Table{cols: append([]string(nil), t.cols...), rows: make([][]cty.Value, len(t.rows))}
	for i, r := range t.rows {
		out.rows[i] = append([]cty.Value(nil), r...)
	}
	return out
}

// Select returns a new table holding only the named columns, in the given
// order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := t.columnIndex(c)
		if j < 0 {
			return nil, &UnknownColumnError{Column: c, Have: t.Columns()}
		}
		idx[i] = j
	}
	out := New(cols...)
	for _, r := range t.rows {
		vals := make([]cty.Value, len(idx))
		for i, j := range idx {
			vals[i] = r[j]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

// Distinct returns a new table with duplicate rows removed, keeping the
// first occurrence of each.
func (t *Table) Distinct() *Table {
	out := New(t.cols...)
	seen := make(map[string]struct{}, len(t.rows))
	for _, r := range t.rows {
		k := rowKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.rows = append(out.rows, append([]cty.Value(nil), r...))
	}
	return out
}

// Where returns a new table with only the rows for which keep returns true.
func (t *Table) Where(keep func(i int) (bool, error)) (*Table, error) {
	out := New(t.cols...)
	for i, r := range t.rows {
		ok, err := keep(i)
		if err != nil {
			return nil, err
		}
		if ok {
			out.rows = append(out.rows, append([]cty.Value(nil), r...))
		}
	}
	return out, nil
}

// AppendColumn adds a new column with one value per existing row.
func (t *Table) AppendColumn(name string, values []cty.Value) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	t.cols = append(t.cols, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], values[i])
	}
	return nil
}

// Join computes the natural join of two tables: rows pair up when they agree
// on every shared column. With no shared columns this is the cross product,
// which makes Unit the join identity. Output columns are the left table's
// columns followed by the right table's non-shared columns; output rows keep
// left-then-right first-seen order.
func (t *Table) Join(other *Table) *Table {
	var shared []string
	for _, c := range t.cols {
		if other.HasColumn(c) {
			shared = append(shared, c)
		}
	}

	var extraIdx []int
	var extraCols []string
	for i, c := range other.cols {
		isShared := false
		for _, s := range shared {
			if c == s {
				isShared = true
				break
			}
		}
		if !isShared {
			extraIdx = append(extraIdx, i)
			extraCols = append(extraCols, c)
		}
	}

	out := New(append(t.Columns(), extraCols...)...)

	// Hash the right side on the shared columns. An empty shared key hashes
	// everything into one bucket, which degenerates into the cross product.
	sharedIdx := make([]int, len(shared))
	for i, s := range shared {
		sharedIdx[i] = other.columnIndex(s)
	}
	buckets := make(map[string][]int)
	for i, r := range other.rows {
		vals := make([]cty.Value, len(sharedIdx))
		for j, idx := range sharedIdx {
			vals[j] = r[idx]
		}
		k := rowKey(vals)
		buckets[k] = append(buckets[k], i)
	}

	leftIdx := make([]int, len(shared))
	for i, s := range shared {
		leftIdx[i] = t.columnIndex(s)
	}
	for _, lr := range t.rows {
		vals := make([]cty.Value, len(leftIdx))
		for j, idx := range leftIdx {
			vals[j] = lr[idx]
		}
		for _, ri := range buckets[rowKey(vals)] {
			row := append([]cty.Value(nil), lr...)
			for _, idx := range extraIdx {
				row = append(row, other.rows[ri][idx])
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// Collapse groups rows by the given columns and reduces each group to one
// representative row. A column survives only if its value is constant and
// non-null within every group; columns that disagree anywhere are dropped
// entirely rather than reported as errors. Group columns are always kept.
// Groups appear in first-seen order.
func (t *Table) Collapse(group []string) (*Table, error) {
	groupIdx := make([]int, len(group))
	for i, c := range group {
		j := t.columnIndex(c)
		if j < 0 {
			return nil, &UnknownColumnError{Column: c, Have: t.Columns()}
		}
		groupIdx[i] = j
	}
	isGroupCol := make([]bool, len(t.cols))
	for _, j := range groupIdx {
		isGroupCol[j] = true
	}

	type bucket struct {
		first []cty.Value
	}
	var order []string
	buckets := make(map[string]*bucket)
	keep := make([]bool, len(t.cols))
	for i := range keep {
		keep[i] = true
	}

	for _, r := range t.rows {
		vals := make([]cty.Value, len(groupIdx))
		for j, idx := range groupIdx {
			vals[j] = r[idx]
		}
		k := rowKey(vals)
		b, ok := buckets[k]
		if !ok {
			buckets[k] = &bucket{first: r}
			order = append(order, k)
			for j, v := range r {
				if !isGroupCol[j] && v != cty.NilVal && v.IsNull() {
					keep[j] = false
				}
			}
			continue
		}
		for j, v := range r {
			if isGroupCol[j] || !keep[j] {
				continue
			}
			if !sameValue(v, b.first[j]) || (v != cty.NilVal && v.IsNull()) {
				keep[j] = false
			}
		}
	}

	var outCols []string
	var outIdx []int
	for j, c := range t.cols {
		if keep[j] || isGroupCol[j] {
			outCols = append(outCols, c)
			outIdx = append(outIdx, j)
		}
	}
	out := New(outCols...)
	for _, k := range order {
		r := buckets[k].first
		vals := make([]cty.Value, len(outIdx))
		for i, j := range outIdx {
			vals[i] = r[j]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

func sameValue(a, b cty.Value) bool {
	return ValueKey(a) == ValueKey(b)
}

// ValueKey returns a canonical string for a cell value, suitable for hash
// join keys, duplicate detection, and cache keys. Distinct types never
// collide because the key is prefixed with the type name.
func ValueKey(v cty.Value) string {
	if v == cty.NilVal {
		return "nil"
	}
	if v.IsNull() {
		return "null:" + v.Type().FriendlyName()
	}
	if !v.IsKnown() {
		return "unknown:" + v.Type().FriendlyName()
	}
	switch v.Type() {
	case cty.Number:
		return "number:" + v.AsBigFloat().Text('g', -1)
	case cty.String:
		return "string:" + v.AsString()
	case cty.Bool:
		if v.True() {
			return "bool:true"
		}
		return "bool:false"
	}
	return v.Type().FriendlyName() + ":" + v.GoString()
}

func rowKey(vals []cty.Value) string {
	var b strings.Builder
	for _, v := range vals {
		b.WriteString(ValueKey(v))
		b.WriteByte('\x1f')
	}
	return b.String()
}
