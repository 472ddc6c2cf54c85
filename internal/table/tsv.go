package table

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// WriteTSV writes the table as tab-separated text with a header row. Only
// scalar cells (number, string, bool) and nulls can be represented; a cell
// holding anything else aborts the write, because flattening it to text
// would silently lose information. Use a dedicated saver for such tables.
func (t *Table) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(t.cols, "\t") + "\n"); err != nil {
		return err
	}
	for i, r := range t.rows {
		for j, v := range r {
			if j > 0 {
				if err := bw.WriteByte('\t'); err != nil {
					return err
				}
			}
			s, err := formatScalar(v)
			if err != nil {
				return fmt.Errorf("row %d, column %q: %w", i, t.cols[j], err)
			}
			if _, err := bw.WriteString(s); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatScalar(v cty.Value) (string, error) {
	if v == cty.NilVal || v.IsNull() {
		return "", nil
	}
	switch v.Type() {
	case cty.Number:
		return v.AsBigFloat().Text('g', -1), nil
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		if v.True() {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("cannot represent %s value as delimited text", v.Type().FriendlyName())
}

// ReadTSV parses tab-separated text written by WriteTSV. Cells are decoded
// as numbers or booleans where they parse as such, and as strings otherwise.
// Empty cells decode as null.
func ReadTSV(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("missing header row")
	}
	cols := strings.Split(sc.Text(), "\t")
	t := New(cols...)
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("line %d: %d fields, expected %d", line, len(fields), len(cols))
		}
		vals := make([]cty.Value, len(fields))
		for i, f := range fields {
			vals[i] = parseScalar(f)
		}
		t.rows = append(t.rows, vals)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseScalar(s string) cty.Value {
	if s == "" {
		return cty.NullVal(cty.String)
	}
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
