package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aevon-lab/cubexport/internal/core/coords"
	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/storage"
	"github.com/aevon-lab/cubexport/internal/sink"
)

// fragmentJob is everything needed to export one fragment.
type fragmentJob struct {
	ec     *Context
	sink   sink.Sink
	conn   storage.ShardConn
	mapper *coords.Mapper
	values dimensionValues
	meta   *metadata
	frag   cube.FragmentDescriptor
	path   string
}

type fragmentStats struct {
	rows  int
	bytes int
}

// exportFragment maps, creates, fills and commits the container of one
// fragment. The container is released on every path; a failed container is
// left on disk as it was.
func exportFragment(ctx context.Context, job fragmentJob) (fragmentStats, error) {
	w, err := job.mapper.MapFragment(job.frag)
	if err != nil {
		return fragmentStats{}, err
	}

	ct, err := job.sink.Create(job.path, sink.Options{
		Compress: job.ec.Options.Compress,
		Shuffle:  job.ec.Options.Shuffle,
	})
	if err != nil {
		return fragmentStats{}, err
	}
	defer ct.Close()

	t := targets{measureName: job.ec.Cube.MeasureName, dims: make(map[string]sink.VarID)}
	axes := w.Axes()
	dimIDs := make([]sink.VarID, 0, len(axes))
	for _, a := range axes {
		d := a.Dimension
		id, err := ct.DefineDimension(d.Name, d.Type, int(a.Extent), d.Unlimited)
		if err != nil {
			return fragmentStats{}, err
		}
		vals, err := job.values.slice(d, a.ValueOffset, a.Extent)
		if err != nil {
			return fragmentStats{}, err
		}
		if err := ct.WriteDimensionValues(id, 0, vals); err != nil {
			return fragmentStats{}, err
		}
		if d.Units != "" {
			if err := ct.AttachAttribute(id, "units", cube.TextValue(d.Units)); err != nil {
				return fragmentStats{}, err
			}
		}
		if d.Calendar != "" {
			if err := ct.AttachAttribute(id, "calendar", cube.TextValue(d.Calendar)); err != nil {
				return fragmentStats{}, err
			}
		}
		t.dims[d.Name] = id
		dimIDs = append(dimIDs, id)
	}

	t.measure, err = ct.DefineMeasure(job.ec.Cube.MeasureName, job.ec.Cube.MeasureType, dimIDs)
	if err != nil {
		return fragmentStats{}, err
	}
	if job.meta != nil {
		if err := job.meta.apply(ct, t, job.path); err != nil {
			return fragmentStats{}, err
		}
	}

	stats, err := streamRows(ctx, job, w, ct, t.measure)
	if err != nil {
		return stats, err
	}
	if err := ct.Commit(); err != nil {
		return stats, err
	}
	return stats, nil
}

// rowBatch accumulates consecutive rows of one innermost run.
type rowBatch struct {
	start []int64
	limit int64
	rows  int64
	buf   []byte
}

// streamRows copies the fragment's rows into the measure. Rows arrive in key
// order; a key gap leaves the skipped cells at the fill value. Consecutive
// rows on the same innermost run are written with one call, up to the
// memory buffer.
func streamRows(ctx context.Context, job fragmentJob, w coords.Window, ct sink.Container, measure sink.VarID) (fragmentStats, error) {
	const op = "export.stream_rows"
	cur, err := job.conn.OpenCursor(ctx, job.frag, job.ec.Cube.MeasureType, job.ec.Cube.Compressed)
	if err != nil {
		return fragmentStats{}, err
	}
	defer cur.Close()

	rowBytes := w.RowWidth() * job.ec.Cube.MeasureType.MustWidth()
	maxRows := int64(1)
	if rowBytes > 0 {
		maxRows = max(1, job.ec.Options.MemoryBuffer/int64(rowBytes))
	}

	implicit := w.Implicit
	var (
		stats fragmentStats
		batch rowBatch
	)
	flush := func() error {
		if batch.rows == 0 {
			return nil
		}
		offsets := make([]int, 0, len(batch.start)+len(implicit))
		counts := make([]int, 0, len(batch.start)+len(implicit))
		for i, o := range batch.start {
			offsets = append(offsets, int(o))
			if i == len(batch.start)-1 {
				counts = append(counts, int(batch.rows))
			} else {
				counts = append(counts, 1)
			}
		}
		for _, a := range implicit {
			offsets = append(offsets, 0)
			counts = append(counts, int(a.Extent))
		}
		if err := ct.WriteMeasureSlice(measure, offsets, counts, batch.buf); err != nil {
			return err
		}
		stats.bytes += len(batch.buf)
		batch.rows = 0
		batch.buf = batch.buf[:0]
		return nil
	}

	odo := coords.NewOdometer(w)
	next := job.frag.KeyStart
	for {
		row, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		if row.Index < next || row.Index > job.frag.KeyEnd {
			return stats, xerr.IO(op, fmt.Sprintf("fragment %q: row %d out of order or outside keys [%d,%d]",
				job.frag.Name, row.Index, job.frag.KeyStart, job.frag.KeyEnd), nil)
		}
		if len(row.Measure) != rowBytes {
			return stats, xerr.IO(op, fmt.Sprintf("fragment %q: row %d holds %d bytes, want %d",
				job.frag.Name, row.Index, len(row.Measure), rowBytes), nil)
		}
		if gap := row.Index - next; gap > 0 {
			if err := flush(); err != nil {
				return stats, err
			}
			odo.Advance(gap)
		}

		if batch.rows == 0 {
			batch.start = odo.Offsets()
			batch.limit = min(odo.RunLength(), maxRows)
		}
		batch.buf = append(batch.buf, row.Measure...)
		batch.rows++
		stats.rows++
		next = row.Index + 1
		odo.Advance(1)

		if batch.rows == batch.limit {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
