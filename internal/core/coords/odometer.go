package coords

// Odometer walks the explicit cells of a window innermost-fastest, starting
// at the coordinate of the fragment's first row.
type Odometer struct {
	extents []int64
	pos     []int64
	done    bool
}

// NewOdometer positions an odometer on the first row of w's fragment.
func NewOdometer(w Window) *Odometer {
	o := &Odometer{
		extents: make([]int64, len(w.Explicit)),
		pos:     make([]int64, len(w.Explicit)),
	}
	for i, a := range w.Explicit {
		o.extents[i] = a.Extent
		o.pos[i] = a.MinIndex - a.Offset
	}
	return o
}

// Done reports whether the odometer ran past the last cell.
func (o *Odometer) Done() bool { return o.done }

// Offsets returns the current window coordinates, one per explicit axis.
func (o *Odometer) Offsets() []int64 {
	out := make([]int64, len(o.pos))
	copy(out, o.pos)
	return out
}

// Linear is the row-major index of the current cell inside the window.
func (o *Odometer) Linear() int64 {
	var idx int64
	for i, p := range o.pos {
		idx = idx*o.extents[i] + p
	}
	return idx
}

// RunLength is the number of cells left on the innermost axis, including the
// current one. A window without explicit axes has a single cell.
func (o *Odometer) RunLength() int64 {
	if len(o.pos) == 0 {
		return 1
	}
	last := len(o.pos) - 1
	return o.extents[last] - o.pos[last]
}

// Advance moves n cells forward. It returns false once the window is exhausted.
func (o *Odometer) Advance(n int64) bool {
	if o.done {
		return false
	}
	if len(o.pos) == 0 {
		if n > 0 {
			o.done = true
		}
		return !o.done
	}
	carry := n
	for i := len(o.pos) - 1; i >= 0 && carry > 0; i-- {
		v := o.pos[i] + carry
		o.pos[i] = v % o.extents[i]
		carry = v / o.extents[i]
	}
	if carry > 0 {
		o.done = true
	}
	return !o.done
}
