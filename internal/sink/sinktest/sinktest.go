// Package sinktest holds the read-back checks shared by every sink format.
package sinktest

import (
	"path/filepath"
	"testing"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Reader decodes a committed container.
type Reader func(path string) (*sink.Dataset, error)

const (
	rows = 2
	cols = 3
)

// Values returns n deterministic values of type t, some negative.
func Values(tb testing.TB, t cube.ScalarType, n int) []byte {
	tb.Helper()
	w := t.MustWidth()
	buf := make([]byte, n*w)
	for i := 0; i < n; i++ {
		var err error
		if t.IsInteger() {
			err = cube.PutInt(buf[i*w:], t, int64(i-n/2))
		} else {
			err = cube.PutFloat(buf[i*w:], t, float64(i)*0.5-1)
		}
		require.NoError(tb, err)
	}
	return buf
}

// SameType treats time and double as one storage type.
func SameType(a, b cube.ScalarType) bool {
	norm := func(t cube.ScalarType) cube.ScalarType {
		if t == cube.TypeTime {
			return cube.TypeDouble
		}
		return t
	}
	return norm(a) == norm(b)
}

// WriteSample writes a rows x cols measure of type t into a new container
// and returns the expected measure content. The last cell is left unwritten
// and holds the fill value -1.
func WriteSample(tb testing.TB, s sink.Sink, path string, t cube.ScalarType, unlimited bool) []byte {
	tb.Helper()

	c, err := s.Create(path, sink.Options{})
	require.NoError(tb, err)
	defer c.Close()

	x, err := c.DefineDimension("x", cube.TypeDouble, rows, unlimited)
	require.NoError(tb, err)
	y, err := c.DefineDimension("y", cube.TypeInt, cols, false)
	require.NoError(tb, err)
	m, err := c.DefineMeasure("m", t, []sink.VarID{x, y})
	require.NoError(tb, err)

	xs, err := cube.EncodeLongs(cube.TypeDouble, []int64{10, 20})
	require.NoError(tb, err)
	require.NoError(tb, c.WriteDimensionValues(x, 0, xs))
	ys, err := cube.EncodeLongs(cube.TypeInt, []int64{1, 2, 3})
	require.NoError(tb, err)
	require.NoError(tb, c.WriteDimensionValues(y, 0, ys))

	require.NoError(tb, c.SetFillValue(m, cube.TextValue("-1")))

	w := t.MustWidth()
	want := Values(tb, t, rows*cols)
	require.NoError(tb, c.WriteMeasureSlice(m, []int{0, 0}, []int{1, cols}, want[:cols*w]))
	require.NoError(tb, c.WriteMeasureSlice(m, []int{1, 0}, []int{1, cols - 1}, want[cols*w:(2*cols-1)*w]))
	require.NoError(tb, cube.PutInt(want[(rows*cols-1)*w:], t, -1))

	require.NoError(tb, c.AttachAttribute(sink.Global, "title", cube.TextValue("sample export")))
	require.NoError(tb, c.AttachAttribute(m, "units", cube.TextValue("K")))
	require.NoError(tb, c.AttachAttribute(m, "scale_factor", cube.Value{Type: cube.TypeDouble, Float: 0.5}))
	require.NoError(tb, c.AttachAttribute(y, "valid_count", cube.Value{Type: cube.TypeInt, Int: 3}))
	require.NoError(tb, c.Commit())
	return want
}

// CheckSample asserts that ds holds what WriteSample wrote.
func CheckSample(tb testing.TB, ds *sink.Dataset, t cube.ScalarType, want []byte) {
	tb.Helper()

	m := ds.Var("m")
	require.NotNil(tb, m, "measure variable")
	assert.True(tb, SameType(t, m.Type), "measure type %s read back as %s", t, m.Type)
	assert.Equal(tb, []int{rows, cols}, ds.Shape(m))
	assert.Equal(tb, want, m.Data)

	require.NotNil(tb, m.Fill, "fill value")
	fill, err := m.Fill.Convert(cube.TypeDouble)
	require.NoError(tb, err)
	assert.Equal(tb, float64(-1), fill.Float)

	units, ok := sink.LookupAttr(m.Attrs, "units")
	require.True(tb, ok, "units attribute")
	assert.Equal(tb, "K", units.Text)
	scale, ok := sink.LookupAttr(m.Attrs, "scale_factor")
	require.True(tb, ok, "scale_factor attribute")
	assert.Equal(tb, 0.5, scale.AsFloat())

	title, ok := sink.LookupAttr(ds.Attrs, "title")
	require.True(tb, ok, "global title")
	assert.Equal(tb, "sample export", title.Text)

	x := ds.Var("x")
	require.NotNil(tb, x)
	assert.True(tb, x.Coordinate)
	xs, _ := cube.EncodeLongs(cube.TypeDouble, []int64{10, 20})
	assert.Equal(tb, xs, x.Data)

	y := ds.Var("y")
	require.NotNil(tb, y)
	assert.Equal(tb, cube.TypeInt, y.Type)
	count, ok := sink.LookupAttr(y.Attrs, "valid_count")
	require.True(tb, ok, "dimension attribute")
	assert.Equal(tb, int64(3), count.Int)
}

// RoundTripAll writes and reads back a sample for every numeric type.
func RoundTripAll(t *testing.T, s sink.Sink, read Reader) {
	for _, typ := range cube.NumericTypes {
		t.Run(typ.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sample"+s.Extension())
			want := WriteSample(t, s, path, typ, false)
			ds, err := read(path)
			require.NoError(t, err)
			CheckSample(t, ds, typ, want)
		})
	}
}

// ReopenAddsAttributes checks the deferred metadata path: a committed
// container is reopened, annotated and committed again without data loss.
func ReopenAddsAttributes(t *testing.T, s sink.Sink, read Reader) {
	path := filepath.Join(t.TempDir(), "reopen"+s.Extension())
	want := WriteSample(t, s, path, cube.TypeDouble, true)

	c, err := s.Reopen(path)
	require.NoError(t, err)
	m, ok := c.Lookup("m")
	require.True(t, ok)
	require.NoError(t, c.AttachAttribute(m, "long_name", cube.TextValue("sample measure")))
	require.NoError(t, c.AttachAttribute(sink.Global, "history", cube.TextValue("metadata added after export")))
	require.NoError(t, c.Commit())
	require.NoError(t, c.Close())

	ds, err := read(path)
	require.NoError(t, err)
	CheckSample(t, ds, cube.TypeDouble, want)
	name, ok := sink.LookupAttr(ds.Var("m").Attrs, "long_name")
	require.True(t, ok)
	assert.Equal(t, "sample measure", name.Text)
	_, ok = sink.LookupAttr(ds.Attrs, "history")
	assert.True(t, ok)
}

// RejectsUnsupported checks that text and invalid variables are refused.
func RejectsUnsupported(t *testing.T, s sink.Sink) {
	c, err := s.Create(filepath.Join(t.TempDir(), "bad"+s.Extension()), sink.Options{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.DefineDimension("label", cube.TypeText, 3, false)
	require.ErrorIs(t, err, xerr.ErrUnsupportedType)

	x, err := c.DefineDimension("x", cube.TypeDouble, 2, false)
	require.NoError(t, err)
	_, err = c.DefineMeasure("m", cube.TypeInvalid, []sink.VarID{x})
	require.ErrorIs(t, err, xerr.ErrUnsupportedType)
	assert.False(t, s.Supports(cube.TypeText))
}
