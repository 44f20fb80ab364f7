package export

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/aevon-lab/cubexport/internal/cluster"
	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/storage"
	"github.com/aevon-lab/cubexport/internal/metrics"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/aevon-lab/cubexport/internal/sink/esdm"
	"github.com/aevon-lab/cubexport/internal/sink/fits"
	"github.com/aevon-lab/cubexport/internal/sink/netcdf"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves one cube from memory.
type fakeCatalog struct {
	cube      cube.Datacube
	dims      []cube.Dimension
	frags     []cube.FragmentDescriptor
	shards    []cube.ShardDescriptor
	attrs     []cube.Attribute
	missingID int64
}

var _ storage.CatalogClient = (*fakeCatalog)(nil)

func (f *fakeCatalog) Datacube(_ context.Context, id int64) (*cube.Datacube, error) {
	if id != f.cube.DatacubeID {
		return nil, xerr.NotFound("catalog.datacube", fmt.Sprintf("datacube %d not found", id), nil)
	}
	c := f.cube
	return &c, nil
}

func (f *fakeCatalog) Dimensions(context.Context, int64) ([]cube.Dimension, error) {
	return append([]cube.Dimension(nil), f.dims...), nil
}

func (f *fakeCatalog) FragmentRouting(_ context.Context, _ int64, ordinals []int64) ([]cube.FragmentDescriptor, []cube.ShardDescriptor, error) {
	var (
		frags  []cube.FragmentDescriptor
		shards []cube.ShardDescriptor
		seen   = map[int64]bool{}
	)
	for _, o := range ordinals {
		for _, fr := range f.frags {
			if fr.Ordinal == o {
				frags = append(frags, fr)
				seen[fr.ShardID] = true
			}
		}
	}
	for _, s := range f.shards {
		if seen[s.ID] {
			shards = append(shards, s)
		}
	}
	return frags, shards, nil
}

func (f *fakeCatalog) Attributes(context.Context, int64) ([]cube.Attribute, error) {
	return f.attrs, nil
}

func (f *fakeCatalog) MissingValueID(context.Context, int64) (int64, bool, error) {
	return f.missingID, f.missingID != 0, nil
}

func (f *fakeCatalog) Close() error { return nil }

// fakeStore hands out connections to in-memory shards and counts them.
type fakeStore struct {
	indexes    map[int64][]int64
	labels     map[int64][]byte
	rows       map[string][]storage.Row
	connectErr map[int64]error

	mu       sync.Mutex
	connects int
	open     int
}

var _ storage.FragmentStore = (*fakeStore)(nil)

func (s *fakeStore) Connect(_ context.Context, shard cube.ShardDescriptor) (storage.ShardConn, error) {
	if err := s.connectErr[shard.ID]; err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	s.open++
	return &fakeConn{store: s}, nil
}

func (s *fakeStore) stats() (connects, open int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects, s.open
}

type fakeConn struct {
	store  *fakeStore
	closed bool
}

func (c *fakeConn) ReadDimensionValues(_ context.Context, _ string, fkID int64) ([]byte, error) {
	idx, ok := c.store.indexes[fkID]
	if !ok {
		return nil, xerr.NotFound("shard.read_dimension", fmt.Sprintf("index %d", fkID), nil)
	}
	return cube.EncodeLongs(cube.TypeLong, idx)
}

func (c *fakeConn) ReadLabelValues(_ context.Context, _ string, fkLabelID int64, t cube.ScalarType, count int64) ([]byte, error) {
	labels := c.store.labels[fkLabelID]
	if n := int(count) * t.MustWidth(); n < len(labels) {
		labels = labels[:n]
	}
	return labels, nil
}

func (c *fakeConn) OpenCursor(_ context.Context, frag cube.FragmentDescriptor, _ cube.ScalarType, _ bool) (storage.RowCursor, error) {
	return &fakeCursor{rows: c.store.rows[frag.Name]}, nil
}

func (c *fakeConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.open--
	return nil
}

type fakeCursor struct {
	rows []storage.Row
	pos  int
}

func (c *fakeCursor) Next() (storage.Row, error) {
	if c.pos >= len(c.rows) {
		return storage.Row{}, io.EOF
	}
	c.pos++
	return c.rows[c.pos-1], nil
}

func (c *fakeCursor) Close() error { return nil }

func doubles(t testing.TB, vals ...float64) []byte {
	t.Helper()
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		require.NoError(t, cube.PutFloat(buf[i*8:], cube.TypeDouble, v))
	}
	return buf
}

func readDoubles(t testing.TB, buf []byte) []float64 {
	t.Helper()
	out := make([]float64, len(buf)/8)
	for i := range out {
		v, err := cube.GetFloat(buf[i*8:], cube.TypeDouble)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func testRegistry() *sink.Registry {
	r := sink.NewRegistry()
	r.Register(netcdf.New())
	r.Register(fits.New())
	r.Register(esdm.New())
	return r
}

func newTestCoordinator(t testing.TB, catalog storage.CatalogClient, store storage.FragmentStore) *Coordinator {
	t.Helper()
	codec, err := NewCodec(context.Background())
	require.NoError(t, err)
	return NewCoordinator(catalog, store, testRegistry(), codec, metrics.New())
}

type rankOutcome struct {
	res *Result
	err error
}

// runGroup runs req on n in-process ranks and returns the outcome per rank.
func runGroup(t testing.TB, c *Coordinator, n int, req Request) []rankOutcome {
	t.Helper()
	comms, err := cluster.NewLocalGroup(n)
	require.NoError(t, err)

	out := make([]rankOutcome, n)
	var wg sync.WaitGroup
	for i, comm := range comms {
		wg.Add(1)
		go func(i int, comm cluster.Communicator) {
			defer wg.Done()
			defer comm.Close()
			res, err := c.Run(context.Background(), comm, req)
			out[i] = rankOutcome{res: res, err: err}
		}(i, comm)
	}
	wg.Wait()
	return out
}
