package table

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// EncapsulatedType is the cty capsule type used to carry a *Table through a
// cell or an action result without flattening it.
var EncapsulatedType = cty.Capsule("table", reflect.TypeOf(Table{}))

// Wrap boxes a table into a cty value of EncapsulatedType.
func Wrap(t *Table) cty.Value {
	return cty.CapsuleVal(EncapsulatedType, t)
}

// Unwrap extracts a table from a capsule value. It returns false for any
// other value, including nulls.
func Unwrap(v cty.Value) (*Table, bool) {
	if v == cty.NilVal || v.IsNull() || !v.Type().Equals(EncapsulatedType) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Table), true
}

// ToCtyValue converts the table to a plain cty object so it can pass through
// serializers that reject capsule types. Cells must be scalars or nulls.
func (t *Table) ToCtyValue() (cty.Value, error) {
	cols := make([]cty.Value, len(t.cols))
	for i, c := range t.cols {
		cols[i] = cty.StringVal(c)
	}
	rows := make([]cty.Value, len(t.rows))
	for i, r := range t.rows {
		cells := make([]cty.Value, len(r))
		for j, v := range r {
			if v != cty.NilVal && !v.IsNull() && v.Type().IsCapsuleType() {
				return cty.NilVal, fmt.Errorf("row %d, column %q: nested opaque value cannot be serialized", i, t.cols[j])
			}
			cells[j] = v
		}
		if len(cells) == 0 {
			rows[i] = cty.EmptyTupleVal
		} else {
			rows[i] = cty.TupleVal(cells)
		}
	}
	attrs := map[string]cty.Value{
		"columns": cty.ListValEmpty(cty.String),
		"rows":    cty.EmptyTupleVal,
	}
	if len(cols) > 0 {
		attrs["columns"] = cty.ListVal(cols)
	}
	if len(rows) > 0 {
		attrs["rows"] = cty.TupleVal(rows)
	}
	return cty.ObjectVal(attrs), nil
}

// FromCtyValue rebuilds a table from the object representation produced by
// ToCtyValue.
func FromCtyValue(v cty.Value) (*Table, error) {
	if v.IsNull() || !v.Type().IsObjectType() || !v.Type().HasAttribute("columns") || !v.Type().HasAttribute("rows") {
		return nil, fmt.Errorf("value is not a serialized table")
	}
	var cols []string
	for it := v.GetAttr("columns").ElementIterator(); it.Next(); {
		_, c := it.Element()
		cols = append(cols, c.AsString())
	}
	t := New(cols...)
	for it := v.GetAttr("rows").ElementIterator(); it.Next(); {
		_, row := it.Element()
		var cells []cty.Value
		for rit := row.ElementIterator(); rit.Next(); {
			_, cell := rit.Element()
			cells = append(cells, cell)
		}
		if err := t.AddRow(cells...); err != nil {
			return nil, err
		}
	}
	return t, nil
}
