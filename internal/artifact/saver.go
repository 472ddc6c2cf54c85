package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"

	"github.com/vk/datagrid/internal/table"
)

// SaveFunc chooses the physical encoding of a value at a path.
type SaveFunc func(path string, v cty.Value) error

// Save is the default saver. Tables headed for a .tsv path are written as
// delimited text, which refuses non-scalar cells rather than flattening
// them silently. Everything else is encoded as dynamically-typed msgpack.
func Save(path string, v cty.Value) error {
	if tbl, ok := table.Unwrap(v); ok {
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			return saveTSV(path, tbl)
		}
		obj, err := tbl.ToCtyValue()
		if err != nil {
			return fmt.Errorf("saving table to %s: %w", path, err)
		}
		v = obj
	}
	data, err := ctymsgpack.Marshal(v, cty.DynamicPseudoType)
	if err != nil {
		return fmt.Errorf("encoding value for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func saveTSV(path string, tbl *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tbl.WriteTSV(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// LoadTSV reads back a table written by the default saver's TSV branch.
func LoadTSV(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tbl, err := table.ReadTSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return tbl, nil
}

// LoadValue reads back a msgpack-encoded value written by the default saver.
func LoadValue(path string) (cty.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cty.NilVal, err
	}
	v, err := ctymsgpack.Unmarshal(data, cty.DynamicPseudoType)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding %s: %w", path, err)
	}
	return v, nil
}
