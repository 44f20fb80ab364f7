package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/partition"
	"github.com/aevon-lab/cubexport/internal/core/storage"
	storagemocks "github.com/aevon-lab/cubexport/internal/mocks/storage"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/aevon-lab/cubexport/internal/sink/esdm"
	"github.com/aevon-lab/cubexport/internal/sink/fits"
	"github.com/aevon-lab/cubexport/internal/sink/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const cubeID = 42

// gridCube is a 2x2 explicit grid (lat outer, lon inner) with an implicit
// time axis of 5, split into one fragment per cell over two shards.
func gridCube(t testing.TB) (*fakeCatalog, *fakeStore) {
	cat := &fakeCatalog{
		cube: cube.Datacube{
			ContainerID:   1,
			DatacubeID:    cubeID,
			MeasureName:   "temp",
			MeasureType:   cube.TypeDouble,
			FragmentIDSet: "1-4",
			IndexTable:    "dimension",
			LabelTable:    "dimension_label",
		},
		dims: []cube.Dimension{
			{ID: 3, Name: "time", Type: cube.TypeDouble, Size: 5, Units: "days since 2000-01-01", Calendar: "standard"},
			{ID: 2, Name: "lon", Type: cube.TypeDouble, Size: 2, Explicit: true, Level: 2, FKIndexID: 12, FKLabelID: 22},
			{ID: 1, Name: "lat", Type: cube.TypeDouble, Size: 2, Explicit: true, Level: 1},
		},
		shards: []cube.ShardDescriptor{
			{ID: 10, DBMSID: 1, DSN: "postgres://a/", DBName: "shard_a"},
			{ID: 20, DBMSID: 1, DSN: "postgres://a/", DBName: "shard_b"},
		},
	}
	store := &fakeStore{
		indexes: map[int64][]int64{12: {2, 1}},
		labels:  map[int64][]byte{22: doubles(t, 100.5, 200.5)},
		rows:    map[string][]storage.Row{},
	}
	for k := int64(1); k <= 4; k++ {
		shard := int64(10)
		if k > 2 {
			shard = 20
		}
		name := fmt.Sprintf("fact_%d", k)
		cat.frags = append(cat.frags, cube.FragmentDescriptor{Ordinal: k, Name: name, KeyStart: k, KeyEnd: k, ShardID: shard})
		base := float64(k * 10)
		store.rows[name] = []storage.Row{{Index: k, Measure: doubles(t, base, base+1, base+2, base+3, base+4)}}
	}
	return cat, store
}

func gridRequest(dir string, format sink.Format) Request {
	return Request{
		CubeID: cubeID,
		Options: Options{
			Format:       format,
			OutputPath:   dir,
			Metadata:     MetadataNo,
			MemoryBuffer: 1 << 20,
			Manifest:     true,
		},
	}
}

func TestCoordinator_EndToEndThreeRanks(t *testing.T) {
	cat, store := gridCube(t)
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)

	out := runGroup(t, c, 3, gridRequest(dir, sink.FormatNetCDF))
	for rank, o := range out {
		require.NoError(t, o.err, "rank %d", rank)
		assert.Equal(t, rank, o.res.Rank)
		assert.Equal(t, out[0].res.RunID, o.res.RunID, "one run id per export")
	}

	assert.Equal(t, partition.AssignedRange{Start: 0, Count: 2}, out[0].res.Assigned)
	assert.Equal(t, partition.AssignedRange{Start: 2, Count: 1}, out[1].res.Assigned)
	assert.Equal(t, partition.AssignedRange{Start: 3, Count: 1}, out[2].res.Assigned)
	assert.Equal(t, []string{filepath.Join(dir, "temp_1.nc"), filepath.Join(dir, "temp_2.nc")}, out[0].res.Files)
	assert.Equal(t, []string{filepath.Join(dir, "temp_3.nc")}, out[1].res.Files)
	assert.Equal(t, []string{filepath.Join(dir, "temp_4.nc")}, out[2].res.Files)

	lats := []float64{1, 1, 2, 2}
	lons := []float64{200.5, 100.5, 200.5, 100.5}
	for k := 1; k <= 4; k++ {
		ds, err := netcdf.Read(filepath.Join(dir, fmt.Sprintf("temp_%d.nc", k)))
		require.NoError(t, err)

		m := ds.Var("temp")
		require.NotNil(t, m)
		assert.Equal(t, []int{1, 1, 5}, ds.Shape(m))
		base := float64(k * 10)
		assert.Equal(t, []float64{base, base + 1, base + 2, base + 3, base + 4}, readDoubles(t, m.Data))

		assert.Equal(t, []float64{lats[k-1]}, readDoubles(t, ds.Var("lat").Data))
		assert.Equal(t, []float64{lons[k-1]}, readDoubles(t, ds.Var("lon").Data))
		assert.Equal(t, []float64{1, 2, 3, 4, 5}, readDoubles(t, ds.Var("time").Data))
		units, ok := sink.LookupAttr(ds.Var("time").Attrs, "units")
		require.True(t, ok)
		assert.Equal(t, "days since 2000-01-01", units.Text)
	}

	connects, open := store.stats()
	assert.Equal(t, 3, connects, "one connection per rank and shard")
	assert.Zero(t, open, "every shard connection is released")

	assert.Equal(t, filepath.Join(dir, "temp_{frag}.nc")+" (4 files, fragments 1-4)", out[0].res.Locator)
	assert.Empty(t, out[1].res.Locator)
	manifest, err := ReadManifest(out[0].res.Manifest)
	require.NoError(t, err)
	require.Len(t, manifest.Files, 4)
	assert.Equal(t, []int{0, 0, 1, 2}, []int{manifest.Files[0].Rank, manifest.Files[1].Rank, manifest.Files[2].Rank, manifest.Files[3].Rank})
	assert.Equal(t, out[0].res.RunID, manifest.RunID)
}

// A fragment whose keys wrap the innermost dimension covers the full
// innermost extent, cells outside its key range stay zero.
func TestCoordinator_FragmentWrapsInnermost(t *testing.T) {
	cat := &fakeCatalog{
		cube: cube.Datacube{DatacubeID: cubeID, MeasureName: "m", MeasureType: cube.TypeDouble, FragmentIDSet: "1"},
		dims: []cube.Dimension{
			{ID: 1, Name: "a", Type: cube.TypeInt, Size: 3, Explicit: true, Level: 1},
			{ID: 2, Name: "b", Type: cube.TypeInt, Size: 4, Explicit: true, Level: 2},
		},
		frags:  []cube.FragmentDescriptor{{Ordinal: 1, Name: "f1", KeyStart: 3, KeyEnd: 6, ShardID: 1}},
		shards: []cube.ShardDescriptor{{ID: 1}},
	}
	store := &fakeStore{rows: map[string][]storage.Row{}}
	for k := int64(3); k <= 6; k++ {
		store.rows["f1"] = append(store.rows["f1"], storage.Row{Index: k, Measure: doubles(t, float64(k))})
	}
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)

	out := runGroup(t, c, 1, gridRequest(dir, sink.FormatNetCDF))
	require.NoError(t, out[0].err)
	assert.Equal(t, []string{filepath.Join(dir, "m.nc")}, out[0].res.Files)

	ds, err := netcdf.Read(filepath.Join(dir, "m.nc"))
	require.NoError(t, err)
	m := ds.Var("m")
	require.NotNil(t, m)
	assert.Equal(t, []int{2, 4}, ds.Shape(m))
	assert.Equal(t, []float64{0, 0, 3, 4, 5, 6, 0, 0}, readDoubles(t, m.Data))
}

func TestCoordinator_IdleRanksSucceed(t *testing.T) {
	cat, store := gridCube(t)
	c := newTestCoordinator(t, cat, store)

	out := runGroup(t, c, 6, gridRequest(t.TempDir(), sink.FormatESDM))
	for rank, o := range out {
		require.NoError(t, o.err, "rank %d", rank)
	}
	assert.True(t, out[4].res.Assigned.Empty())
	assert.True(t, out[5].res.Assigned.Empty())
	assert.Empty(t, out[5].res.Files)
}

func TestCoordinator_AlreadyPublishedThenForce(t *testing.T) {
	cat, store := gridCube(t)
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)
	req := gridRequest(dir, sink.FormatFITS)

	for _, o := range runGroup(t, c, 2, req) {
		require.NoError(t, o.err)
	}
	first, _ := store.stats()
	before, err := os.Stat(filepath.Join(dir, "temp_1.fits"))
	require.NoError(t, err)

	for rank, o := range runGroup(t, c, 2, req) {
		require.ErrorIs(t, o.err, xerr.ErrAlreadyPublished, "rank %d", rank)
		assert.Zero(t, xerr.ExitCode(o.err))
	}
	again, _ := store.stats()
	assert.Equal(t, first, again, "a cached export opens no shard connection")
	after, err := os.Stat(filepath.Join(dir, "temp_1.fits"))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	req.Options.Force = true
	for _, o := range runGroup(t, c, 2, req) {
		require.NoError(t, o.err)
	}
	forced, _ := store.stats()
	assert.Greater(t, forced, again)
	ds, err := fits.Read(filepath.Join(dir, "temp_4.fits"))
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 41, 42, 43, 44}, readDoubles(t, ds.Var("temp").Data))
}

func TestCoordinator_RootFailureReachesEveryRank(t *testing.T) {
	catalog := storagemocks.NewCatalogClient(t)
	catalog.EXPECT().
		Datacube(mock.Anything, int64(cubeID)).
		Return(nil, xerr.NotFound("catalog.datacube", "datacube 42 not found", nil)).
		Once()

	store := &fakeStore{}
	c := newTestCoordinator(t, catalog, store)

	out := runGroup(t, c, 3, gridRequest(t.TempDir(), sink.FormatNetCDF))
	for rank, o := range out {
		require.ErrorIs(t, o.err, xerr.ErrNotFound, "rank %d", rank)
		assert.Contains(t, o.err.Error(), "datacube 42 not found")
	}
	connects, _ := store.stats()
	assert.Zero(t, connects)
}

func TestCoordinator_FragmentationTooFine(t *testing.T) {
	cat := &fakeCatalog{
		cube: cube.Datacube{DatacubeID: cubeID, MeasureName: "m", MeasureType: cube.TypeFloat, FragmentIDSet: "1-4"},
		dims: []cube.Dimension{
			{ID: 1, Name: "a", Type: cube.TypeInt, Size: 3, Explicit: true, Level: 1},
			{ID: 2, Name: "b", Type: cube.TypeInt, Size: 2, Explicit: true, Level: 2},
			{ID: 3, Name: "c", Type: cube.TypeInt, Size: 2, Explicit: true, Level: 3},
		},
		frags: []cube.FragmentDescriptor{
			{Ordinal: 1, Name: "f1", KeyStart: 1, KeyEnd: 3, ShardID: 1},
			{Ordinal: 2, Name: "f2", KeyStart: 4, KeyEnd: 6, ShardID: 1},
			{Ordinal: 3, Name: "f3", KeyStart: 7, KeyEnd: 10, ShardID: 1},
			{Ordinal: 4, Name: "f4", KeyStart: 11, KeyEnd: 12, ShardID: 1},
		},
		shards: []cube.ShardDescriptor{{ID: 1}},
	}
	store := &fakeStore{}
	c := newTestCoordinator(t, cat, store)

	for rank, o := range runGroup(t, c, 2, gridRequest(t.TempDir(), sink.FormatNetCDF)) {
		require.ErrorIs(t, o.err, xerr.ErrFragmentationTooFine, "rank %d", rank)
	}
	connects, _ := store.stats()
	assert.Zero(t, connects)
}

func TestCoordinator_TextTypesAreUnsupported(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeCatalog)
	}{
		{"text measure", func(c *fakeCatalog) { c.cube.MeasureType = cube.TypeText }},
		{"text dimension", func(c *fakeCatalog) { c.dims[0].Type = cube.TypeText }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, store := gridCube(t)
			tt.mutate(cat)
			c := newTestCoordinator(t, cat, store)

			for rank, o := range runGroup(t, c, 2, gridRequest(t.TempDir(), sink.FormatNetCDF)) {
				require.ErrorIs(t, o.err, xerr.ErrUnsupportedType, "rank %d", rank)
				assert.Equal(t, 5, xerr.ExitCode(o.err))
			}
			connects, _ := store.stats()
			assert.Zero(t, connects)
		})
	}
}

func TestCoordinator_ShardFailureStaysOnItsRank(t *testing.T) {
	cat, store := gridCube(t)
	store.connectErr = map[int64]error{20: xerr.IO("shard.connect", "connection refused", nil)}
	c := newTestCoordinator(t, cat, store)

	out := runGroup(t, c, 2, gridRequest(t.TempDir(), sink.FormatNetCDF))
	require.NoError(t, out[0].err)
	assert.Len(t, out[0].res.Files, 2)
	require.ErrorIs(t, out[1].err, xerr.ErrIO)
	assert.Empty(t, out[1].res.Files)
}

func TestCoordinator_BadRowLeavesPartialFile(t *testing.T) {
	cat, store := gridCube(t)
	store.rows["fact_2"] = []storage.Row{{Index: 2, Measure: doubles(t, 1, 2)}}
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)

	out := runGroup(t, c, 1, gridRequest(dir, sink.FormatNetCDF))
	require.ErrorIs(t, out[0].err, xerr.ErrIO)
	assert.Equal(t, []string{filepath.Join(dir, "temp_1.nc")}, out[0].res.Files)

	_, err := os.Stat(filepath.Join(dir, "temp_2.nc"))
	assert.NoError(t, err, "failed container stays on disk")
	_, open := store.stats()
	assert.Zero(t, open)
}

// singleCube is one fragment over a 2x2 explicit grid without implicit axes.
func singleCube(t testing.TB, rows []storage.Row) (*fakeCatalog, *fakeStore) {
	scope := func(s string) *string { return &s }
	cat := &fakeCatalog{
		cube: cube.Datacube{DatacubeID: cubeID, MeasureName: "precip", MeasureType: cube.TypeDouble, FragmentIDSet: "7"},
		dims: []cube.Dimension{
			{ID: 1, Name: "y", Type: cube.TypeInt, Size: 2, Explicit: true, Level: 1, Unlimited: true},
			{ID: 2, Name: "x", Type: cube.TypeInt, Size: 2, Explicit: true, Level: 2},
			{ID: 3, Name: "band", Type: cube.TypeInt, Size: 0},
		},
		frags:  []cube.FragmentDescriptor{{Ordinal: 7, Name: "fact_7", KeyStart: 1, KeyEnd: 4, ShardID: 1}},
		shards: []cube.ShardDescriptor{{ID: 1}},
		attrs: []cube.Attribute{
			{ID: 1, Key: "title", Type: cube.TypeText, Value: "rain"},
			{ID: 2, Scope: scope("precip"), Key: "units", Type: cube.TypeText, Value: "mm"},
			{ID: 3, Scope: scope("x"), Key: "axis", Type: cube.TypeText, Value: "X"},
			{ID: 4, Scope: scope("ghost"), Key: "lost", Type: cube.TypeText, Value: "?"},
			{ID: 5, Scope: scope("precip"), Key: "missing_value", Type: cube.TypeDouble, Value: "-999"},
		},
		missingID: 5,
	}
	return cat, &fakeStore{rows: map[string][]storage.Row{"fact_7": rows}}
}

func TestCoordinator_MetadataAndRowGaps(t *testing.T) {
	cat, store := singleCube(t, []storage.Row{
		{Index: 1, Measure: doubles(t, 1)},
		{Index: 2, Measure: doubles(t, 2)},
		{Index: 4, Measure: doubles(t, 4)},
	})
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)
	req := gridRequest(dir, sink.FormatESDM)
	req.Options.Metadata = MetadataYes

	out := runGroup(t, c, 2, req)
	require.NoError(t, out[0].err)
	require.NoError(t, out[1].err)
	path := filepath.Join(dir, "precip.esdm")
	assert.Equal(t, []string{path}, out[0].res.Files, "a single fragment is exported by rank 0")
	assert.Equal(t, path, out[0].res.Locator)
	assert.Empty(t, out[0].res.Manifest, "no listing for a single file")
	assert.EqualValues(t, 3, out[0].res.Rows)

	ds, err := esdm.Read(path)
	require.NoError(t, err)
	m := ds.Var("precip")
	require.NotNil(t, m)
	assert.Equal(t, []int{2, 2}, ds.Shape(m))
	assert.Equal(t, []float64{1, 2, -999, 4}, readDoubles(t, m.Data), "row gap keeps the fill value")
	assert.Nil(t, ds.Var("band"), "reduced dimensions are not exported")
	assert.Equal(t, 0, ds.Unlimited())

	title, ok := sink.LookupAttr(ds.Attrs, "title")
	require.True(t, ok)
	assert.Equal(t, "rain", title.Text)
	units, ok := sink.LookupAttr(m.Attrs, "units")
	require.True(t, ok)
	assert.Equal(t, "mm", units.Text)
	axis, ok := sink.LookupAttr(ds.Var("x").Attrs, "axis")
	require.True(t, ok)
	assert.Equal(t, "X", axis.Text)
	require.NotNil(t, m.Fill)
	assert.Equal(t, -999.0, m.Fill.Float)
}

func TestCoordinator_DeferredMetadata(t *testing.T) {
	cat, store := gridCube(t)
	cat.attrs = []cube.Attribute{{ID: 1, Key: "history", Type: cube.TypeText, Value: "exported later"}}
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)
	req := gridRequest(dir, sink.FormatNetCDF)
	req.Options.Metadata = MetadataDeferred

	for rank, o := range runGroup(t, c, 3, req) {
		require.NoError(t, o.err, "rank %d", rank)
	}
	for k := 1; k <= 4; k++ {
		ds, err := netcdf.Read(filepath.Join(dir, fmt.Sprintf("temp_%d.nc", k)))
		require.NoError(t, err)
		h, ok := sink.LookupAttr(ds.Attrs, "history")
		require.True(t, ok, "fragment %d", k)
		assert.Equal(t, "exported later", h.Text)
	}
}

func TestCoordinator_DeferredMetadataSkipsFailedOutputs(t *testing.T) {
	cat, store := gridCube(t)
	store.rows["fact_4"] = []storage.Row{{Index: 9, Measure: doubles(t, 0, 0, 0, 0, 0)}}
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)
	req := gridRequest(dir, sink.FormatNetCDF)
	req.Options.Metadata = MetadataDeferred

	out := runGroup(t, c, 3, req)
	require.NoError(t, out[0].err, "rank 0 annotates what it can")
	require.NoError(t, out[1].err)
	require.ErrorIs(t, out[2].err, xerr.ErrIO)
}

func TestCoordinator_TemplateNames(t *testing.T) {
	cat, store := gridCube(t)
	dir := t.TempDir()
	c := newTestCoordinator(t, cat, store)
	req := gridRequest(dir, sink.FormatNetCDF)
	req.Options.Template = true
	req.Options.OutputName = "grid-{frag}"

	out := runGroup(t, c, 1, req)
	require.NoError(t, out[0].err)
	assert.Contains(t, out[0].res.Files, filepath.Join(dir, "grid-3.nc"))
	assert.Equal(t, filepath.Join(dir, "grid.manifest.yaml"), out[0].res.Manifest)

	req.Options.OutputName = "grid"
	out = runGroup(t, c, 2, req)
	for _, o := range out {
		require.ErrorIs(t, o.err, xerr.ErrConfiguration)
	}
}

func TestCoordinator_DestinationPermission(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	cat, store := gridCube(t)
	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0o500))
	t.Cleanup(func() { os.Chmod(parent, 0o755) })
	c := newTestCoordinator(t, cat, store)

	out := runGroup(t, c, 2, gridRequest(filepath.Join(parent, "out"), sink.FormatNetCDF))
	for _, o := range out {
		require.ErrorIs(t, o.err, xerr.ErrPermission)
	}
}

func TestCheckDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, checkDestination(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the write check leaves nothing behind")

	blocked := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))
	err = checkDestination(filepath.Join(blocked, "out"))
	require.ErrorIs(t, err, xerr.ErrIO)
	assert.Equal(t, 7, xerr.ExitCode(err))
}

// countingSink counts measure writes of the containers it creates.
type countingSink struct {
	sink.Sink
	writes *int
}

func (s countingSink) Create(path string, opts sink.Options) (sink.Container, error) {
	ct, err := s.Sink.Create(path, opts)
	if err != nil {
		return nil, err
	}
	return countingContainer{Container: ct, writes: s.writes}, nil
}

type countingContainer struct {
	sink.Container
	writes *int
}

func (c countingContainer) WriteMeasureSlice(v sink.VarID, offsets, counts []int, buf []byte) error {
	*c.writes++
	return c.Container.WriteMeasureSlice(v, offsets, counts, buf)
}

func TestStreamRows_BatchesInnermostRuns(t *testing.T) {
	rows := []storage.Row{
		{Index: 1, Measure: doubles(t, 1)},
		{Index: 2, Measure: doubles(t, 2)},
		{Index: 3, Measure: doubles(t, 3)},
		{Index: 4, Measure: doubles(t, 4)},
	}
	tests := []struct {
		name   string
		buffer int64
		writes int
	}{
		{"one write per innermost run", 1 << 20, 2},
		{"buffer of one row", 8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, store := singleCube(t, rows)
			writes := 0
			c := newTestCoordinator(t, cat, store)
			c.sinks = sink.NewRegistry()
			c.sinks.Register(countingSink{Sink: netcdf.New(), writes: &writes})

			req := gridRequest(t.TempDir(), sink.FormatNetCDF)
			req.Options.MemoryBuffer = tt.buffer
			out := runGroup(t, c, 1, req)
			require.NoError(t, out[0].err)
			assert.Equal(t, tt.writes, writes)

			ds, err := netcdf.Read(out[0].res.Files[0])
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 2, 3, 4}, readDoubles(t, ds.Var("precip").Data))
		})
	}
}

func TestLoadDimensionValues_ResolvesLabels(t *testing.T) {
	store := &fakeStore{
		indexes: map[int64][]int64{5: {3, 1, 2}, 6: {9}},
		labels:  map[int64][]byte{7: doubles(t, 10, 20, 30)},
	}
	conn, err := store.Connect(context.Background(), cube.ShardDescriptor{})
	require.NoError(t, err)
	defer conn.Close()

	c := &cube.Datacube{Dimensions: []cube.Dimension{
		{ID: 1, Name: "label", Type: cube.TypeDouble, Size: 3, FKIndexID: 5, FKLabelID: 7},
		{ID: 2, Name: "plain", Type: cube.TypeShort, Size: 2},
		{ID: 3, Name: "gone", Type: cube.TypeShort, Size: 0, FKIndexID: 99},
	}}
	vals, err := loadDimensionValues(context.Background(), conn, c)
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 10, 20}, readDoubles(t, vals[1]))
	plain, err := cube.EncodeLongs(cube.TypeShort, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, plain, vals[2])
	assert.NotContains(t, vals, int64(3))

	c.Dimensions = []cube.Dimension{{ID: 4, Name: "bad", Type: cube.TypeDouble, Size: 1, FKIndexID: 6, FKLabelID: 7}}
	_, err = loadDimensionValues(context.Background(), conn, c)
	require.ErrorIs(t, err, xerr.ErrIO)

	c.Dimensions = []cube.Dimension{{ID: 5, Name: "short", Type: cube.TypeDouble, Size: 4, FKIndexID: 5}}
	_, err = loadDimensionValues(context.Background(), conn, c)
	require.ErrorIs(t, err, xerr.ErrIO)
}
