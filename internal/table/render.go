package table

import (
	"strings"
	"text/tabwriter"
)

// String renders the table as aligned text. It is intended for error
// messages and the describe surface, not for persistence.
func (t *Table) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	write := func(s string) { _, _ = w.Write([]byte(s)) }

	write(strings.Join(t.cols, "\t") + "\n")
	for _, r := range t.rows {
		parts := make([]string, len(r))
		for i, v := range r {
			s, err := formatScalar(v)
			if err != nil {
				s = "<" + v.Type().FriendlyName() + ">"
			}
			parts[i] = s
		}
		write(strings.Join(parts, "\t") + "\n")
	}
	_ = w.Flush()
	return b.String()
}
