package export

import (
	"context"
	"fmt"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/storage"
)

// dimensionValues holds the full value table of each non-reduced dimension,
// in the dimension's own type, keyed by dimension id.
type dimensionValues map[int64][]byte

// loadDimensionValues reads every dimension's index array once per rank.
// Indexes are 1-based positions into the label table when the dimension has
// labels; a dimension without an index table is numbered 1..size.
func loadDimensionValues(ctx context.Context, conn storage.ShardConn, c *cube.Datacube) (dimensionValues, error) {
	const op = "export.dimension_values"
	out := make(dimensionValues, len(c.Dimensions))
	for _, d := range c.Dimensions {
		if d.Reduced() {
			continue
		}
		idx, err := dimensionIndexes(ctx, conn, c.IndexTable, d)
		if err != nil {
			return nil, err
		}

		if d.FKLabelID == 0 {
			vals, err := cube.EncodeLongs(d.Type, idx)
			if err != nil {
				return nil, xerr.IO(op, fmt.Sprintf("dimension %q", d.Name), err)
			}
			out[d.ID] = vals
			continue
		}

		var count int64
		for _, i := range idx {
			count = max(count, i)
		}
		labels, err := conn.ReadLabelValues(ctx, c.LabelTable, d.FKLabelID, d.Type, count)
		if err != nil {
			return nil, err
		}
		w := d.Type.MustWidth()
		vals := make([]byte, 0, len(idx)*w)
		for _, i := range idx {
			if i < 1 || int(i)*w > len(labels) {
				return nil, xerr.IO(op, fmt.Sprintf("dimension %q: index %d outside its %d labels", d.Name, i, len(labels)/w), nil)
			}
			vals = append(vals, labels[(int(i)-1)*w:int(i)*w]...)
		}
		out[d.ID] = vals
	}
	return out, nil
}

func dimensionIndexes(ctx context.Context, conn storage.ShardConn, table string, d cube.Dimension) ([]int64, error) {
	if d.FKIndexID == 0 {
		idx := make([]int64, d.Size)
		for i := range idx {
			idx[i] = int64(i) + 1
		}
		return idx, nil
	}
	blob, err := conn.ReadDimensionValues(ctx, table, d.FKIndexID)
	if err != nil {
		return nil, err
	}
	idx, err := cube.DecodeLongs(blob)
	if err != nil {
		return nil, xerr.IO("export.dimension_values", fmt.Sprintf("dimension %q", d.Name), err)
	}
	if int64(len(idx)) < d.Size {
		return nil, xerr.IO("export.dimension_values",
			fmt.Sprintf("dimension %q has %d indexes, size is %d", d.Name, len(idx), d.Size), nil)
	}
	return idx[:d.Size], nil
}

// slice returns the values of the window [offset, offset+extent) of d.
func (v dimensionValues) slice(d cube.Dimension, byteOffset, extent int64) ([]byte, error) {
	vals, ok := v[d.ID]
	if !ok {
		return nil, xerr.NotFound("export.dimension_values", fmt.Sprintf("no values loaded for dimension %q", d.Name), nil)
	}
	end := byteOffset + extent*int64(d.Type.MustWidth())
	if byteOffset < 0 || end > int64(len(vals)) {
		return nil, xerr.IO("export.dimension_values",
			fmt.Sprintf("dimension %q: window [%d,%d) outside its %d value bytes", d.Name, byteOffset, end, len(vals)), nil)
	}
	return vals[byteOffset:end], nil
}
