package netcdf

import (
	"encoding/binary"
	"fmt"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
)

type reader struct {
	raw     []byte
	off     int
	version byte
	err     error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.raw) {
		r.err = fmt.Errorf("truncated header at byte %d", r.off)
		return nil
	}
	b := r.raw[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *reader) int64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *reader) nonNeg() int64 {
	if r.version == versionData64 {
		return r.int64()
	}
	return int64(r.int32())
}

func (r *reader) skipPad() {
	if rem := r.off % 4; rem != 0 {
		r.take(4 - rem)
	}
}

func (r *reader) name() string {
	n := r.nonNeg()
	b := r.take(int(n))
	r.skipPad()
	return string(b)
}

// list reads a list tag and element count. ABSENT yields 0.
func (r *reader) list(tag int32) int64 {
	got := r.int32()
	n := r.nonNeg()
	if r.err == nil && got != tag && !(got == 0 && n == 0) {
		r.err = fmt.Errorf("expected list tag %#x, found %#x", tag, got)
	}
	return n
}

func (r *reader) attrs() []sink.Attr {
	n := r.list(tagAttribute)
	var out []sink.Attr
	for i := int64(0); i < n && r.err == nil; i++ {
		key := r.name()
		t, err := scalarType(r.int32())
		if err != nil {
			r.err = err
			return nil
		}
		nelems := r.nonNeg()
		w := t.MustWidth()
		raw := r.take(int(nelems) * w)
		r.skipPad()
		if r.err != nil {
			return nil
		}
		var val cube.Value
		if t == cube.TypeText {
			val = cube.TextValue(string(raw))
		} else {
			if nelems < 1 {
				r.err = fmt.Errorf("attribute %q has no values", key)
				return nil
			}
			val, err = cube.ValueFromBytes(t, sink.SwapOrder(raw[:w], w))
			if err != nil {
				r.err = err
				return nil
			}
		}
		out = append(out, sink.Attr{Key: key, Value: val})
	}
	return out
}

func decode(raw []byte) (*sink.Dataset, error) {
	if len(raw) < 4 || string(raw[:3]) != "CDF" {
		return nil, fmt.Errorf("not a netcdf classic file")
	}
	r := &reader{raw: raw, off: 4, version: raw[3]}
	if r.version != 1 && r.version != versionOffset64 && r.version != versionData64 {
		return nil, fmt.Errorf("unsupported netcdf version %d", r.version)
	}
	numrecs := r.nonNeg()

	ds := &sink.Dataset{}
	nd := r.list(tagDimension)
	for i := int64(0); i < nd && r.err == nil; i++ {
		name := r.name()
		length := r.nonNeg()
		d := sink.Dim{Name: name, Len: int(length)}
		if length == 0 {
			d.Unlimited = true
			d.Len = int(numrecs)
		}
		ds.Dims = append(ds.Dims, d)
	}
	ds.Attrs = r.attrs()

	type pending struct {
		v      *sink.Variable
		begin  int64
		record bool
		size   int64
	}
	var vars []pending
	nv := r.list(tagVariable)
	for i := int64(0); i < nv && r.err == nil; i++ {
		v := &sink.Variable{Name: r.name()}
		ndims := r.nonNeg()
		for j := int64(0); j < ndims && r.err == nil; j++ {
			var id int64
			if r.version == versionData64 {
				id = r.int64()
			} else {
				id = int64(r.int32())
			}
			if id < 0 || id >= int64(len(ds.Dims)) {
				return nil, fmt.Errorf("variable %q references unknown dimension %d", v.Name, id)
			}
			v.Dims = append(v.Dims, int(id))
		}
		for _, a := range r.attrs() {
			if a.Key == FillValueAttr {
				fill := a.Value
				v.Fill = &fill
				continue
			}
			v.Attrs = append(v.Attrs, a)
		}
		if r.err != nil {
			return nil, r.err
		}
		t, err := scalarType(r.int32())
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		v.Type = t
		r.nonNeg() // vsize is recomputed from the shape
		var begin int64
		if r.version == 1 {
			begin = int64(r.int32())
		} else {
			begin = r.int64()
		}

		p := pending{v: v, begin: begin}
		p.record = len(v.Dims) > 0 && ds.Dims[v.Dims[0]].Unlimited
		elems := int64(1)
		for j, d := range v.Dims {
			if j == 0 && p.record {
				continue
			}
			elems *= int64(ds.Dims[d].Len)
		}
		p.size = elems * int64(t.MustWidth())
		v.Coordinate = len(v.Dims) == 1 && ds.Dims[v.Dims[0]].Name == v.Name
		vars = append(vars, p)
	}
	if r.err != nil {
		return nil, r.err
	}

	records := 0
	for _, p := range vars {
		if p.record {
			records++
		}
	}
	recSize := int64(0)
	for _, p := range vars {
		if p.record {
			if records == 1 {
				recSize += p.size
			} else {
				recSize += pad4(p.size)
			}
		}
	}

	for _, p := range vars {
		w := p.v.Type.MustWidth()
		if !p.record {
			if p.begin < 0 || p.begin+p.size > int64(len(raw)) {
				return nil, fmt.Errorf("variable %q data is truncated", p.v.Name)
			}
			p.v.Data = sink.SwapOrder(raw[p.begin:p.begin+p.size], w)
		} else {
			data := make([]byte, 0, p.size*numrecs)
			for rec := int64(0); rec < numrecs; rec++ {
				start := p.begin + rec*recSize
				if start < 0 || start+p.size > int64(len(raw)) {
					return nil, fmt.Errorf("record %d of variable %q is truncated", rec, p.v.Name)
				}
				data = append(data, sink.SwapOrder(raw[start:start+p.size], w)...)
			}
			p.v.Data = data
		}
		ds.Vars = append(ds.Vars, p.v)
	}
	return ds, nil
}
