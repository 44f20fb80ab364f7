package sink

import (
	"fmt"
	"log/slog"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
)

// Codec is the on-disk half of a format.
type Codec interface {
	Format() Format
	Extension() string
	Supports(t cube.ScalarType) bool
	// Prepare creates or truncates the target so a failed export leaves
	// a visible partial output.
	Prepare(path string, opts Options) error
	Encode(path string, ds *Dataset, opts Options) error
	Decode(path string) (*Dataset, Options, error)
}

// New builds a Sink over codec.
func New(codec Codec) Sink {
	return &fileSink{codec: codec}
}

type fileSink struct {
	codec Codec
}

func (s *fileSink) Format() Format                  { return s.codec.Format() }
func (s *fileSink) Extension() string               { return s.codec.Extension() }
func (s *fileSink) Supports(t cube.ScalarType) bool { return s.codec.Supports(t) }

func (s *fileSink) Create(path string, opts Options) (Container, error) {
	if err := s.codec.Prepare(path, opts); err != nil {
		return nil, xerr.IO("sink.create", fmt.Sprintf("failed to create %s container %q", s.codec.Format(), path), err)
	}
	return &container{codec: s.codec, path: path, opts: opts, ds: &Dataset{}, written: map[int]bool{}}, nil
}

func (s *fileSink) Reopen(path string) (Container, error) {
	ds, opts, err := s.codec.Decode(path)
	if err != nil {
		return nil, xerr.IO("sink.reopen", fmt.Sprintf("failed to reopen %s container %q", s.codec.Format(), path), err)
	}
	written := make(map[int]bool, len(ds.Vars))
	for i := range ds.Vars {
		written[i] = true
	}
	return &container{codec: s.codec, path: path, opts: opts, ds: ds, written: written}, nil
}

type container struct {
	codec   Codec
	path    string
	opts    Options
	ds      *Dataset
	written map[int]bool
	closed  bool
}

func (c *container) variable(op string, id VarID) (int, *Variable, error) {
	if c.closed {
		return -1, nil, xerr.IO(op, fmt.Sprintf("container %q is closed", c.path), nil)
	}
	i := int(id)
	if i < 0 || i >= len(c.ds.Vars) {
		return -1, nil, xerr.IO(op, fmt.Sprintf("unknown variable id %d in %q", id, c.path), nil)
	}
	return i, c.ds.Vars[i], nil
}

func (c *container) checkType(op string, t cube.ScalarType) error {
	if !c.codec.Supports(t) {
		return xerr.UnsupportedType(op, fmt.Sprintf("%s (format %s)", t, c.codec.Format()))
	}
	return nil
}

func (c *container) DefineDimension(name string, t cube.ScalarType, extent int, unlimited bool) (VarID, error) {
	const op = "sink.define_dimension"
	if c.closed {
		return 0, xerr.IO(op, "container is closed", nil)
	}
	if err := c.checkType(op, t); err != nil {
		return 0, err
	}
	di, err := c.ds.AddDim(name, extent, unlimited)
	if err != nil {
		return 0, xerr.IO(op, c.path, err)
	}
	vi, err := c.ds.AddVar(name, t, []int{di}, true)
	if err != nil {
		return 0, xerr.IO(op, c.path, err)
	}
	return VarID(vi), nil
}

func (c *container) DefineMeasure(name string, t cube.ScalarType, dims []VarID) (VarID, error) {
	const op = "sink.define_measure"
	if c.closed {
		return 0, xerr.IO(op, "container is closed", nil)
	}
	if err := c.checkType(op, t); err != nil {
		return 0, err
	}
	dimIdx := make([]int, len(dims))
	for i, id := range dims {
		_, v, err := c.variable(op, id)
		if err != nil {
			return 0, err
		}
		if !v.Coordinate {
			return 0, xerr.IO(op, fmt.Sprintf("variable %q is not a dimension", v.Name), nil)
		}
		dimIdx[i] = v.Dims[0]
	}
	if u := c.ds.Unlimited(); u >= 0 {
		for i, d := range dimIdx {
			if d == u && i != 0 {
				return 0, xerr.IO(op, fmt.Sprintf("unlimited dimension %q must be outermost", c.ds.Dims[u].Name), nil)
			}
		}
	}
	vi, err := c.ds.AddVar(name, t, dimIdx, false)
	if err != nil {
		return 0, xerr.IO(op, c.path, err)
	}
	return VarID(vi), nil
}

func (c *container) Lookup(name string) (VarID, bool) {
	if c.closed {
		return 0, false
	}
	i, ok := c.ds.VarIndex(name)
	return VarID(i), ok
}

func (c *container) WriteDimensionValues(dim VarID, offset int, buf []byte) error {
	const op = "sink.write_dimension"
	i, v, err := c.variable(op, dim)
	if err != nil {
		return err
	}
	if !v.Coordinate {
		return xerr.IO(op, fmt.Sprintf("variable %q is not a dimension", v.Name), nil)
	}
	w := v.Type.MustWidth()
	if len(buf)%w != 0 {
		return xerr.IO(op, fmt.Sprintf("dimension %q: %d bytes is not a whole number of %s values", v.Name, len(buf), v.Type), nil)
	}
	if err := c.ds.WriteSlice(v, []int{offset}, []int{len(buf) / w}, buf); err != nil {
		return xerr.IO(op, c.path, err)
	}
	c.written[i] = true
	return nil
}

func (c *container) WriteMeasureSlice(id VarID, offsets, counts []int, buf []byte) error {
	const op = "sink.write_measure"
	i, v, err := c.variable(op, id)
	if err != nil {
		return err
	}
	if err := c.ds.WriteSlice(v, offsets, counts, buf); err != nil {
		return xerr.IO(op, c.path, err)
	}
	c.written[i] = true
	return nil
}

func (c *container) AttachAttribute(target VarID, key string, val cube.Value) error {
	const op = "sink.attach_attribute"
	if key == "" {
		return xerr.IO(op, "attribute key is empty", nil)
	}
	if val.Type != cube.TypeText && !val.Type.IsNumeric() {
		return xerr.UnsupportedType(op, val.Type.String())
	}
	if target == Global {
		if c.closed {
			return xerr.IO(op, "container is closed", nil)
		}
		c.ds.Attrs = SetAttr(c.ds.Attrs, key, val)
		return nil
	}
	_, v, err := c.variable(op, target)
	if err != nil {
		return err
	}
	v.Attrs = SetAttr(v.Attrs, key, val)
	return nil
}

func (c *container) SetFillValue(id VarID, val cube.Value) error {
	const op = "sink.set_fill_value"
	i, v, err := c.variable(op, id)
	if err != nil {
		return err
	}
	fill, err := val.Convert(v.Type)
	if err != nil {
		return xerr.IO(op, fmt.Sprintf("fill value %q does not fit variable %q", val.String(), v.Name), err)
	}
	v.Fill = &fill
	if !c.written[i] {
		if err := v.Prefill(fill); err != nil {
			return xerr.IO(op, c.path, err)
		}
	}
	return nil
}

func (c *container) Commit() error {
	if c.closed {
		return xerr.IO("sink.commit", fmt.Sprintf("container %q is closed", c.path), nil)
	}
	if err := c.codec.Encode(c.path, c.ds, c.opts); err != nil {
		return xerr.IO("sink.commit", fmt.Sprintf("failed to write %s container %q", c.codec.Format(), c.path), err)
	}
	slog.Debug("[Sink] Committed container",
		"format", c.codec.Format(),
		"path", c.path,
		"variables", len(c.ds.Vars))
	return nil
}

func (c *container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.ds = nil
	return nil
}
