package netcdf

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
)

type writer struct {
	buf     bytes.Buffer
	version byte
}

func (w *writer) int32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *writer) int64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

// nonNeg writes a count, 32 bits wide except in CDF-5.
func (w *writer) nonNeg(v int64) {
	if w.version == versionData64 {
		w.int64(v)
		return
	}
	w.int32(int32(v))
}

func (w *writer) pad() {
	for w.buf.Len()%4 != 0 {
		w.buf.WriteByte(0)
	}
}

func (w *writer) name(s string) {
	w.nonNeg(int64(len(s)))
	w.buf.WriteString(s)
	w.pad()
}

func (w *writer) absent() {
	w.int32(0)
	w.nonNeg(0)
}

func (w *writer) attrs(list []sink.Attr) error {
	if len(list) == 0 {
		w.absent()
		return nil
	}
	w.int32(tagAttribute)
	w.nonNeg(int64(len(list)))
	for _, a := range list {
		nc, err := ncType(a.Value.Type)
		if err != nil {
			return err
		}
		raw, err := a.Value.Bytes()
		if err != nil {
			return err
		}
		w.name(a.Key)
		w.int32(nc)
		nelems := int64(1)
		if a.Value.Type == cube.TypeText {
			nelems = int64(len(raw))
		}
		w.nonNeg(nelems)
		w.buf.Write(sink.SwapOrder(raw, a.Value.Type.MustWidth()))
		w.pad()
	}
	return nil
}

type varLayout struct {
	v      *sink.Variable
	nc     int32
	record bool
	// size is the unpadded byte count of the variable, or of one record.
	size  int64
	vsize int64
	begin int64
}

func pad4(n int64) int64 { return (n + 3) &^ 3 }

func needsData64(ds *sink.Dataset) bool {
	isLong := func(attrs []sink.Attr) bool {
		for _, a := range attrs {
			if a.Value.Type == cube.TypeLong {
				return true
			}
		}
		return false
	}
	if isLong(ds.Attrs) {
		return true
	}
	for _, v := range ds.Vars {
		if v.Type == cube.TypeLong || isLong(v.Attrs) {
			return true
		}
	}
	return false
}

func varAttrs(v *sink.Variable) []sink.Attr {
	if v.Fill == nil {
		return v.Attrs
	}
	out := []sink.Attr{{Key: FillValueAttr, Value: *v.Fill}}
	for _, a := range v.Attrs {
		if a.Key != FillValueAttr {
			out = append(out, a)
		}
	}
	return out
}

func encode(ds *sink.Dataset) ([]byte, error) {
	version := byte(versionOffset64)
	if needsData64(ds) {
		version = versionData64
	}
	rec := ds.Unlimited()

	layouts := make([]*varLayout, len(ds.Vars))
	records := 0
	for i, v := range ds.Vars {
		nc, err := ncType(v.Type)
		if err != nil {
			return nil, err
		}
		l := &varLayout{v: v, nc: nc, record: rec >= 0 && len(v.Dims) > 0 && v.Dims[0] == rec}
		elems := int64(1)
		for j, d := range v.Dims {
			if j == 0 && l.record {
				continue
			}
			elems *= int64(ds.Dims[d].Len)
		}
		l.size = elems * int64(v.Type.MustWidth())
		l.vsize = pad4(l.size)
		if l.record {
			records++
		}
		layouts[i] = l
	}

	// The header size does not depend on the begin offsets, so a first
	// pass measures it.
	sized, err := header(ds, layouts, version)
	if err != nil {
		return nil, err
	}
	off := int64(len(sized))
	for _, l := range layouts {
		if !l.record {
			l.begin = off
			off += l.vsize
		}
	}
	recSize := int64(0)
	for _, l := range layouts {
		if l.record {
			l.begin = off + recSize
			if records == 1 {
				recSize += l.size
			} else {
				recSize += l.vsize
			}
		}
	}

	out, err := header(ds, layouts, version)
	if err != nil {
		return nil, err
	}
	data := bytes.NewBuffer(out)
	for _, l := range layouts {
		if l.record {
			continue
		}
		data.Write(sink.SwapOrder(l.v.Data, l.v.Type.MustWidth()))
		for i := l.size; i < l.vsize; i++ {
			data.WriteByte(0)
		}
	}
	if rec >= 0 {
		numrecs := int64(ds.Dims[rec].Len)
		for r := int64(0); r < numrecs; r++ {
			for _, l := range layouts {
				if !l.record {
					continue
				}
				chunk := l.v.Data[r*l.size : (r+1)*l.size]
				data.Write(sink.SwapOrder(chunk, l.v.Type.MustWidth()))
				if records > 1 {
					for i := l.size; i < l.vsize; i++ {
						data.WriteByte(0)
					}
				}
			}
		}
	}
	return data.Bytes(), nil
}

func header(ds *sink.Dataset, layouts []*varLayout, version byte) ([]byte, error) {
	w := &writer{version: version}
	w.buf.WriteString("CDF")
	w.buf.WriteByte(version)

	numrecs := int64(0)
	if rec := ds.Unlimited(); rec >= 0 {
		numrecs = int64(ds.Dims[rec].Len)
	}
	w.nonNeg(numrecs)

	if len(ds.Dims) == 0 {
		w.absent()
	} else {
		w.int32(tagDimension)
		w.nonNeg(int64(len(ds.Dims)))
		for _, d := range ds.Dims {
			w.name(d.Name)
			if d.Unlimited {
				w.nonNeg(0)
			} else {
				w.nonNeg(int64(d.Len))
			}
		}
	}

	if err := w.attrs(ds.Attrs); err != nil {
		return nil, err
	}

	if len(layouts) == 0 {
		w.absent()
		return w.buf.Bytes(), nil
	}
	w.int32(tagVariable)
	w.nonNeg(int64(len(layouts)))
	for _, l := range layouts {
		w.name(l.v.Name)
		w.nonNeg(int64(len(l.v.Dims)))
		for _, d := range l.v.Dims {
			w.nonNeg(int64(d))
		}
		if err := w.attrs(varAttrs(l.v)); err != nil {
			return nil, err
		}
		w.int32(l.nc)
		vsize := l.vsize
		if version != versionData64 && vsize > math.MaxUint32-3 {
			vsize = math.MaxUint32
		}
		if version == versionData64 {
			w.int64(vsize)
		} else {
			w.int32(int32(uint32(vsize)))
		}
		w.int64(l.begin)
	}
	return w.buf.Bytes(), nil
}
