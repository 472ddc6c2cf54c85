package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func num(n int64) cty.Value    { return cty.NumberIntVal(n) }
func str(s string) cty.Value   { return cty.StringVal(s) }
func null() cty.Value          { return cty.NullVal(cty.String) }
func mustRow(t *testing.T, tbl *Table, vals ...cty.Value) {
	t.Helper()
	require.NoError(t, tbl.AddRow(vals...))
}

func TestUnitIsJoinIdentity(t *testing.T) {
	right := FromValues("a", num(1), num(2))
	joined := Unit().Join(right)

	require.Equal(t, []string{"a"}, joined.Columns())
	require.Equal(t, 2, joined.NumRows())
	assert.True(t, joined.Value(0, "a").Equals(num(1)).True())
	assert.True(t, joined.Value(1, "a").Equals(num(2)).True())
}

func TestJoinCrossProduct(t *testing.T) {
	left := FromValues("a", num(1), num(2))
	right := FromValues("b", str("x"), str("y"))

	joined := left.Join(right)

	require.Equal(t, []string{"a", "b"}, joined.Columns())
	assert.Equal(t, 4, joined.NumRows())
}

func TestJoinOnSharedColumns(t *testing.T) {
	left := New("a", "b")
	mustRow(t, left, num(1), str("x"))
	mustRow(t, left, num(2), str("y"))

	right := New("a", "c")
	mustRow(t, right, num(1), str("c1"))
	mustRow(t, right, num(1), str("c2"))
	mustRow(t, right, num(3), str("c3"))

	joined := left.Join(right)

	require.Equal(t, []string{"a", "b", "c"}, joined.Columns())
	require.Equal(t, 2, joined.NumRows())
	// Only a=1 matches, fanned out over the two right-side rows.
	assert.Equal(t, "c1", joined.Value(0, "c").AsString())
	assert.Equal(t, "c2", joined.Value(1, "c").AsString())
}

func TestJoinAllSharedColumnsAreKeys(t *testing.T) {
	left := New("a", "b")
	mustRow(t, left, num(1), str("x"))

	right := New("a", "b")
	mustRow(t, right, num(1), str("x"))
	mustRow(t, right, num(1), str("other"))

	joined := left.Join(right)

	// The b column is a key too, so only the exact match survives.
	require.Equal(t, 1, joined.NumRows())
	assert.Equal(t, []string{"a", "b"}, joined.Columns())
}

func TestDistinct(t *testing.T) {
	tbl := FromValues("a", num(1), num(2), num(1), num(1))
	assert.Equal(t, 2, tbl.Distinct().NumRows())
}

func TestSelectUnknownColumn(t *testing.T) {
	tbl := FromValues("a", num(1))
	_, err := tbl.Select("missing")

	var unknownErr *UnknownColumnError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "missing", unknownErr.Column)
}

func TestCollapseKeepsConstantDropsVarying(t *testing.T) {
	tbl := New("a", "b", "extra")
	mustRow(t, tbl, num(1), str("const"), str("v1"))
	mustRow(t, tbl, num(1), str("const"), str("v2"))
	mustRow(t, tbl, num(2), str("const"), str("v3"))

	out, err := tbl.Collapse([]string{"a"})
	require.NoError(t, err)

	// "extra" varies within the a=1 group and is dropped everywhere;
	// "b" is constant in every group and survives.
	assert.Equal(t, []string{"a", "b"}, out.Columns())
	require.Equal(t, 2, out.NumRows())
	assert.Equal(t, "const", out.Value(0, "b").AsString())
}

func TestCollapseDropsNullColumns(t *testing.T) {
	tbl := New("a", "maybe")
	mustRow(t, tbl, num(1), null())
	mustRow(t, tbl, num(2), null())

	out, err := tbl.Collapse([]string{"a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, out.Columns())
	assert.Equal(t, 2, out.NumRows())
}

func TestCollapseOneRowPerGroup(t *testing.T) {
	tbl := New("a", "b")
	mustRow(t, tbl, num(1), num(10))
	mustRow(t, tbl, num(1), num(10))
	mustRow(t, tbl, num(2), num(20))

	out, err := tbl.Collapse([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumRows())
}

func TestAppendColumn(t *testing.T) {
	tbl := FromValues("a", num(1), num(2))

	require.NoError(t, tbl.AppendColumn("b", []cty.Value{str("x"), str("y")}))
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())

	err := tbl.AppendColumn("b", []cty.Value{str("x"), str("y")})
	assert.ErrorContains(t, err, "already exists")

	err = tbl.AppendColumn("c", []cty.Value{str("x")})
	assert.ErrorContains(t, err, "1 values")
}

func TestCopyIsIndependent(t *testing.T) {
	tbl := FromValues("a", num(1))
	cp := tbl.Copy()
	require.NoError(t, cp.AppendColumn("b", []cty.Value{str("x")}))

	assert.Equal(t, []string{"a"}, tbl.Columns())
	assert.Equal(t, []string{"a", "b"}, cp.Columns())
}

func TestValueKeyDistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, ValueKey(num(1)), ValueKey(str("1")))
	assert.NotEqual(t, ValueKey(cty.True), ValueKey(str("true")))
	assert.NotEqual(t, ValueKey(null()), ValueKey(str("")))
	assert.Equal(t, ValueKey(num(1)), ValueKey(cty.NumberFloatVal(1)))
}

func TestTSVRoundTrip(t *testing.T) {
	tbl := New("subject", "session", "ok")
	mustRow(t, tbl, str("s1"), num(1), cty.True)
	mustRow(t, tbl, str("s2"), num(2), cty.False)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteTSV(&buf))

	back, err := ReadTSV(&buf)
	require.NoError(t, err)
	require.Equal(t, []string{"subject", "session", "ok"}, back.Columns())
	require.Equal(t, 2, back.NumRows())
	assert.Equal(t, "s1", back.Value(0, "subject").AsString())
	assert.True(t, back.Value(1, "session").Equals(num(2)).True())
	assert.False(t, back.Value(1, "ok").True())
}

func TestWriteTSVRefusesOpaqueCells(t *testing.T) {
	nested := FromValues("x", num(1))
	tbl := New("a", "payload")
	mustRow(t, tbl, num(1), Wrap(nested))

	err := tbl.WriteTSV(&bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot represent")
}

func TestCapsuleRoundTrip(t *testing.T) {
	tbl := FromValues("a", num(1))
	v := Wrap(tbl)

	got, ok := Unwrap(v)
	require.True(t, ok)
	assert.Same(t, tbl, got)

	_, ok = Unwrap(str("not a table"))
	assert.False(t, ok)
}

func TestToCtyValueRoundTrip(t *testing.T) {
	tbl := New("a", "b")
	mustRow(t, tbl, num(1), str("x"))
	mustRow(t, tbl, num(2), null())

	obj, err := tbl.ToCtyValue()
	require.NoError(t, err)

	back, err := FromCtyValue(obj)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, back.Columns())
	require.Equal(t, 2, back.NumRows())
	assert.True(t, back.Value(0, "a").Equals(num(1)).True())
	assert.True(t, back.Value(1, "b").IsNull())
}

func TestStringRendersAlignedText(t *testing.T) {
	tbl := New("a", "b")
	mustRow(t, tbl, num(1), str("x"))

	s := tbl.String()
	assert.True(t, strings.HasPrefix(s, "a"))
	assert.Contains(t, s, "x")
}
