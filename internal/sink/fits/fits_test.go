package fits

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/aevon-lab/cubexport/internal/sink/sinktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFITS_RoundTripEveryType(t *testing.T) {
	sinktest.RoundTripAll(t, New(), Read)
}

func TestFITS_ReopenAddsAttributes(t *testing.T) {
	sinktest.ReopenAddsAttributes(t, New(), Read)
}

func TestFITS_RejectsUnsupported(t *testing.T) {
	sinktest.RejectsUnsupported(t, New())
}

func TestFITS_PrimaryHeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.fits")
	sinktest.WriteSample(t, New(), path, cube.TypeByte, false)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Zero(t, len(raw)%blockLen, "file is made of whole blocks")

	cards := map[string]card{}
	for i := 0; i < blockLen; i += cardLen {
		c, _ := parseCard(string(raw[i : i+cardLen]))
		if c.key == "END" {
			break
		}
		cards[c.key] = c
	}
	assert.Equal(t, "T", cards["SIMPLE"].value)
	assert.Equal(t, "8", cards["BITPIX"].value)
	assert.Equal(t, "2", cards["NAXIS"].value)
	assert.Equal(t, "3", cards["NAXIS1"].value, "innermost axis first")
	assert.Equal(t, "2", cards["NAXIS2"].value)
	assert.Equal(t, "-128", cards["BZERO"].value)
	assert.Equal(t, "127", cards["BLANK"].value, "fill stored with the byte offset")
	assert.Equal(t, "y", strings.TrimSpace(cards["CTYPE1"].value))
	assert.Equal(t, "m", strings.TrimSpace(cards["EXTNAME"].value))
	assert.Equal(t, "HIERARCH GLOBAL title", cards["HIERARCH GLOBAL title"].key)
}

func TestFITS_LongStringsUseContinue(t *testing.T) {
	long := strings.Repeat("it's a long history line ", 12)
	path := filepath.Join(t.TempDir(), "long.fits")

	c, err := New().Create(path, sink.Options{})
	require.NoError(t, err)
	x, err := c.DefineDimension("x", cube.TypeInt, 1, false)
	require.NoError(t, err)
	require.NoError(t, c.AttachAttribute(x, "history", cube.TextValue(long)))
	require.NoError(t, c.AttachAttribute(sink.Global, "revision", cube.Value{Type: cube.TypeDouble, Float: 0}))
	require.NoError(t, c.Commit())
	require.NoError(t, c.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "CONTINUE  '")

	ds, err := Read(path)
	require.NoError(t, err)
	got, ok := sink.LookupAttr(ds.Var("x").Attrs, "history")
	require.True(t, ok)
	assert.Equal(t, long, got.Text)
	_, ok = sink.LookupAttr(ds.Attrs, "revision")
	assert.True(t, ok)
}

func TestSplitEscaped_KeepsDoubledQuotes(t *testing.T) {
	chunks := splitEscaped("ab''cd", 3, 3)
	assert.Equal(t, []string{"ab", "''c", "d"}, chunks)
	assert.Equal(t, "ab''cd", strings.Join(chunks, ""))
}

func TestParseValue(t *testing.T) {
	v, quoted, comment := parseValue(" 'O''Brien' / text")
	assert.Equal(t, "O'Brien", v)
	assert.True(t, quoted)
	assert.Equal(t, "text", comment)

	v, quoted, comment = parseValue("                 -64")
	assert.Equal(t, "-64", v)
	assert.False(t, quoted)
	assert.Empty(t, comment)
}

func TestFITS_DecodeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fits")
	require.NoError(t, os.WriteFile(path, []byte("not fits"), 0o644))
	_, err := Read(path)
	require.Error(t, err)
}
