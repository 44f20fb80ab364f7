package storage

import (
	"context"

	"github.com/aevon-lab/cubexport/internal/core/cube"
)

// CatalogClient reads cube metadata. All queries are read-only.
type CatalogClient interface {
	Datacube(ctx context.Context, id int64) (*cube.Datacube, error)

	// Dimensions returns the cube's dimensions, explicit first, outermost to innermost.
	Dimensions(ctx context.Context, cubeID int64) ([]cube.Dimension, error)

	// FragmentRouting returns the fragments with the given ordinals, in ordinal
	// order, and the shards hosting them.
	FragmentRouting(ctx context.Context, cubeID int64, ordinals []int64) ([]cube.FragmentDescriptor, []cube.ShardDescriptor, error)

	Attributes(ctx context.Context, cubeID int64) ([]cube.Attribute, error)

	// MissingValueID returns the id of the attribute holding the measure's
	// fill value. ok is false when none is configured.
	MissingValueID(ctx context.Context, cubeID int64) (id int64, ok bool, err error)

	Close() error
}

// FragmentStore opens connections to the shards hosting fragment rows.
type FragmentStore interface {
	Connect(ctx context.Context, shard cube.ShardDescriptor) (ShardConn, error)
}

// ShardConn is one exclusively owned connection to a shard.
type ShardConn interface {
	// ReadDimensionValues returns the little-endian long index array of a dimension.
	ReadDimensionValues(ctx context.Context, indexTable string, fkID int64) ([]byte, error)

	// ReadLabelValues returns up to count label values of type t.
	ReadLabelValues(ctx context.Context, labelTable string, fkLabelID int64, t cube.ScalarType, count int64) ([]byte, error)

	// OpenCursor streams the rows of frag ordered by row index.
	OpenCursor(ctx context.Context, frag cube.FragmentDescriptor, measureType cube.ScalarType, compressed bool) (RowCursor, error)

	Close() error
}

// Row is one fragment row: its 1-based key and the measure payload covering
// every implicit cell.
type Row struct {
	Index   int64
	Measure []byte
}

// RowCursor is a pull-based row iterator. Next returns io.EOF after the last row.
type RowCursor interface {
	Next() (Row, error)
	Close() error
}
