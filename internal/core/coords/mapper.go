// Package coords maps a fragment's linear key range back to per-dimension
// coordinate ranges. It inverts the storage engine's flattening: explicit
// dimension sizes form a mixed-radix basis, outermost first, and a row's
// 1-based key is its rank in that basis plus one.
package coords

import (
	"fmt"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
)

// AxisRange is the coverage of one dimension by one fragment.
type AxisRange struct {
	Dimension cube.Dimension
	// MinIndex and MaxIndex are the 0-based coordinates of the fragment's
	// first and last row along this axis. MaxIndex < MinIndex is a wrap.
	MinIndex int64
	MaxIndex int64
	// Offset and Extent are the window written for the fragment.
	Offset int64
	Extent int64
	// Wrapped is set when MaxIndex < MinIndex.
	Wrapped bool
	// ValueOffset is the byte offset of Offset into the dimension value table.
	ValueOffset int64
}

// Window is the rectangular region of the cube a fragment is exported to.
type Window struct {
	Fragment cube.FragmentDescriptor
	Explicit []AxisRange
	Implicit []AxisRange
}

// Axes returns explicit then implicit ranges, the measure's dimension order.
func (w Window) Axes() []AxisRange {
	out := make([]AxisRange, 0, len(w.Explicit)+len(w.Implicit))
	out = append(out, w.Explicit...)
	return append(out, w.Implicit...)
}

// Shape is the extent of every axis in measure order.
func (w Window) Shape() []int {
	axes := w.Axes()
	shape := make([]int, len(axes))
	for i, a := range axes {
		shape[i] = int(a.Extent)
	}
	return shape
}

// RowWidth is the number of measure values carried by one row, the product
// of the implicit sizes.
func (w Window) RowWidth() int {
	n := 1
	for _, a := range w.Implicit {
		n *= int(a.Extent)
	}
	return n
}

// Cells is the number of explicit cells in the window.
func (w Window) Cells() int64 {
	n := int64(1)
	for _, a := range w.Explicit {
		n *= a.Extent
	}
	return n
}

// WrapsNonInnermost reports a wrap on any explicit dimension but the innermost.
func (w Window) WrapsNonInnermost() bool {
	for i := 0; i+1 < len(w.Explicit); i++ {
		if w.Explicit[i].Wrapped {
			return true
		}
	}
	return false
}

// Mapper computes fragment windows for one cube.
type Mapper struct {
	explicit []cube.Dimension
	implicit []cube.Dimension
	// dividers[i] is the product of the sizes of all explicit dims inner to i.
	dividers []int64
	total    int64
}

// NewMapper prepares the basis from dims, which must already be ordered
// explicit-first, outermost to innermost. Reduced dimensions are left out.
func NewMapper(dims []cube.Dimension) (*Mapper, error) {
	m := &Mapper{total: 1}
	for _, d := range dims {
		if d.Reduced() {
			continue
		}
		if _, err := d.Type.Width(); err != nil {
			return nil, err
		}
		if d.Explicit {
			m.explicit = append(m.explicit, d)
		} else {
			m.implicit = append(m.implicit, d)
		}
	}
	m.dividers = make([]int64, len(m.explicit))
	div := int64(1)
	for i := len(m.explicit) - 1; i >= 0; i-- {
		m.dividers[i] = div
		div *= m.explicit[i].Size
	}
	m.total = div
	return m, nil
}

// Total is the size of the explicit ordinal space.
func (m *Mapper) Total() int64 { return m.total }

// Explicit returns the non-reduced explicit dimensions.
func (m *Mapper) Explicit() []cube.Dimension { return m.explicit }

// Implicit returns the non-reduced implicit dimensions.
func (m *Mapper) Implicit() []cube.Dimension { return m.implicit }

// Unrank decomposes a 0-based ordinal into explicit coordinates.
func (m *Mapper) Unrank(ordinal int64) []int64 {
	out := make([]int64, len(m.explicit))
	rest := ordinal
	for i := range m.explicit {
		out[i] = rest / m.dividers[i]
		rest %= m.dividers[i]
	}
	return out
}

// Rank is the inverse of Unrank.
func (m *Mapper) Rank(coords []int64) int64 {
	var ord int64
	for i, c := range coords {
		ord += c * m.dividers[i]
	}
	return ord
}

// MapFragment computes the window of frag.
func (m *Mapper) MapFragment(frag cube.FragmentDescriptor) (Window, error) {
	if frag.KeyStart < 1 || frag.KeyEnd < frag.KeyStart || frag.KeyEnd > m.total {
		return Window{}, xerr.Configuration("coords.map_fragment",
			fmt.Sprintf("fragment %q key range [%d,%d] outside ordinal space [1,%d]",
				frag.Name, frag.KeyStart, frag.KeyEnd, m.total), nil)
	}
	first := m.Unrank(frag.KeyStart - 1)
	last := m.Unrank(frag.KeyEnd - 1)

	w := Window{Fragment: frag, Explicit: make([]AxisRange, len(m.explicit))}
	outerSpans := false
	for i, d := range m.explicit {
		r := AxisRange{
			Dimension: d,
			MinIndex:  first[i],
			MaxIndex:  last[i],
			Wrapped:   last[i] < first[i],
		}
		// Once an outer axis spans more than one value, every inner axis is
		// crossed at least once and covers its full extent.
		if r.Wrapped || outerSpans {
			r.Offset, r.Extent = 0, d.Size
		} else {
			r.Offset, r.Extent = first[i], last[i]-first[i]+1
		}
		if first[i] != last[i] {
			outerSpans = true
		}
		r.ValueOffset = r.Offset * int64(d.Type.MustWidth())
		w.Explicit[i] = r
	}
	for _, d := range m.implicit {
		w.Implicit = append(w.Implicit, AxisRange{
			Dimension: d,
			MinIndex:  0,
			MaxIndex:  d.Size - 1,
			Offset:    0,
			Extent:    d.Size,
		})
	}
	return w, nil
}

// CheckFragmentation rejects a cube in which more than one fragment wraps on
// a non-innermost dimension.
func CheckFragmentation(m *Mapper, frags []cube.FragmentDescriptor) error {
	wrapping := 0
	for _, f := range frags {
		w, err := m.MapFragment(f)
		if err != nil {
			return err
		}
		if w.WrapsNonInnermost() {
			wrapping++
		}
	}
	if wrapping > 1 {
		return xerr.FragmentationTooFine(wrapping)
	}
	return nil
}
