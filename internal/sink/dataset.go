package sink

import (
	"fmt"

	"github.com/aevon-lab/cubexport/internal/core/cube"
)

// Dim is a named axis of a Dataset.
type Dim struct {
	Name      string
	Len       int
	Unlimited bool
}

// Attr is a typed key/value pair. Keys are unique within their target.
type Attr struct {
	Key   string
	Value cube.Value
}

// Variable is a typed n-dimensional array. Data is row-major, little-endian.
type Variable struct {
	Name string
	Type cube.ScalarType
	// Dims indexes Dataset.Dims, outermost first.
	Dims []int
	// Coordinate marks the 1-D variable holding a dimension's values.
	Coordinate bool
	Data       []byte
	Attrs      []Attr
	Fill       *cube.Value
}

// Dataset is the format-neutral content of a container.
type Dataset struct {
	Dims  []Dim
	Vars  []*Variable
	Attrs []Attr
}

func (ds *Dataset) DimIndex(name string) (int, bool) {
	for i, d := range ds.Dims {
		if d.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (ds *Dataset) VarIndex(name string) (int, bool) {
	for i, v := range ds.Vars {
		if v.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Var returns the variable called name or nil.
func (ds *Dataset) Var(name string) *Variable {
	if i, ok := ds.VarIndex(name); ok {
		return ds.Vars[i]
	}
	return nil
}

func (ds *Dataset) AddDim(name string, length int, unlimited bool) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("dimension name is empty")
	}
	if length < 0 {
		return -1, fmt.Errorf("dimension %q has negative length %d", name, length)
	}
	if _, ok := ds.DimIndex(name); ok {
		return -1, fmt.Errorf("dimension %q already defined", name)
	}
	if unlimited {
		for _, d := range ds.Dims {
			if d.Unlimited {
				return -1, fmt.Errorf("dimension %q: %q is already unlimited", name, d.Name)
			}
		}
	}
	ds.Dims = append(ds.Dims, Dim{Name: name, Len: length, Unlimited: unlimited})
	return len(ds.Dims) - 1, nil
}

// AddVar defines a variable and allocates its zeroed data.
func (ds *Dataset) AddVar(name string, t cube.ScalarType, dims []int, coordinate bool) (int, error) {
	if _, ok := ds.VarIndex(name); ok {
		return -1, fmt.Errorf("variable %q already defined", name)
	}
	w, err := t.Width()
	if err != nil {
		return -1, err
	}
	for _, d := range dims {
		if d < 0 || d >= len(ds.Dims) {
			return -1, fmt.Errorf("variable %q references unknown dimension %d", name, d)
		}
	}
	v := &Variable{Name: name, Type: t, Dims: append([]int(nil), dims...), Coordinate: coordinate}
	v.Data = make([]byte, ds.Len(v)*w)
	ds.Vars = append(ds.Vars, v)
	return len(ds.Vars) - 1, nil
}

// Shape returns the dimension lengths of v.
func (ds *Dataset) Shape(v *Variable) []int {
	shape := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		shape[i] = ds.Dims[d].Len
	}
	return shape
}

// Len is the number of elements of v.
func (ds *Dataset) Len(v *Variable) int {
	n := 1
	for _, d := range v.Dims {
		n *= ds.Dims[d].Len
	}
	return n
}

// Unlimited returns the index of the unlimited dimension, or -1.
func (ds *Dataset) Unlimited() int {
	for i, d := range ds.Dims {
		if d.Unlimited {
			return i
		}
	}
	return -1
}

// WriteSlice copies a row-major hyperslab into v.
func (ds *Dataset) WriteSlice(v *Variable, offsets, counts []int, buf []byte) error {
	shape := ds.Shape(v)
	if len(offsets) != len(shape) || len(counts) != len(shape) {
		return fmt.Errorf("variable %q has %d dimensions, got %d offsets and %d counts",
			v.Name, len(shape), len(offsets), len(counts))
	}
	w := v.Type.MustWidth()
	n := 1
	for i := range shape {
		if offsets[i] < 0 || counts[i] < 0 || offsets[i]+counts[i] > shape[i] {
			return fmt.Errorf("variable %q: slice [%d,+%d) outside dimension %q of length %d",
				v.Name, offsets[i], counts[i], ds.Dims[v.Dims[i]].Name, shape[i])
		}
		n *= counts[i]
	}
	if len(buf) != n*w {
		return fmt.Errorf("variable %q: slice of %d values needs %d bytes, got %d", v.Name, n, n*w, len(buf))
	}
	if n == 0 {
		return nil
	}
	if len(shape) == 0 {
		copy(v.Data, buf)
		return nil
	}

	// strides[i] is the element distance between neighbours along axis i.
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	last := len(shape) - 1
	run := counts[last] * w
	pos := make([]int, last)
	for src := 0; src < len(buf); src += run {
		dst := offsets[last]
		for i, p := range pos {
			dst += (offsets[i] + p) * strides[i]
		}
		copy(v.Data[dst*w:], buf[src:src+run])

		for i := last - 1; i >= 0; i-- {
			pos[i]++
			if pos[i] < counts[i] {
				break
			}
			pos[i] = 0
		}
	}
	return nil
}

// ReadSlice is the inverse of WriteSlice.
func (ds *Dataset) ReadSlice(v *Variable, offsets, counts []int) ([]byte, error) {
	shape := ds.Shape(v)
	if len(offsets) != len(shape) || len(counts) != len(shape) {
		return nil, fmt.Errorf("variable %q has %d dimensions", v.Name, len(shape))
	}
	w := v.Type.MustWidth()
	n := 1
	for i := range shape {
		if offsets[i] < 0 || counts[i] < 0 || offsets[i]+counts[i] > shape[i] {
			return nil, fmt.Errorf("variable %q: slice outside dimension %d", v.Name, i)
		}
		n *= counts[i]
	}
	out := make([]byte, 0, n*w)
	if n == 0 {
		return out, nil
	}
	if len(shape) == 0 {
		return append(out, v.Data...), nil
	}
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	last := len(shape) - 1
	run := counts[last] * w
	pos := make([]int, last)
	for len(out) < n*w {
		src := offsets[last]
		for i, p := range pos {
			src += (offsets[i] + p) * strides[i]
		}
		out = append(out, v.Data[src*w:src*w+run]...)
		for i := last - 1; i >= 0; i-- {
			pos[i]++
			if pos[i] < counts[i] {
				break
			}
			pos[i] = 0
		}
	}
	return out, nil
}

// SetAttr replaces the attribute called key or appends it.
func SetAttr(attrs []Attr, key string, val cube.Value) []Attr {
	for i := range attrs {
		if attrs[i].Key == key {
			attrs[i].Value = val
			return attrs
		}
	}
	return append(attrs, Attr{Key: key, Value: val})
}

// LookupAttr returns the attribute called key.
func LookupAttr(attrs []Attr, key string) (cube.Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return cube.Value{}, false
}

// Prefill sets every element of v to val, which must already have v's type.
func (v *Variable) Prefill(val cube.Value) error {
	pattern, err := val.Bytes()
	if err != nil {
		return err
	}
	for i := 0; i+len(pattern) <= len(v.Data); i += len(pattern) {
		copy(v.Data[i:], pattern)
	}
	return nil
}
