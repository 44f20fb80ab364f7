// Package esdm writes ESDM-style directory containers: one JSON descriptor
// naming dimensions, variables and attributes, plus one data object per
// variable, optionally shuffled and zstd-compressed.
package esdm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/klauspost/compress/zstd"
)

const (
	descriptorKey = "container.json"
	formatName    = "esdm"
	formatVersion = 1

	compressorZstd = "zstd"
	filterShuffle  = "shuffle"
)

type descriptor struct {
	Format     string     `json:"format"`
	Version    int        `json:"version"`
	Dimensions []dimMeta  `json:"dimensions"`
	Variables  []varMeta  `json:"variables"`
	Attributes []attrMeta `json:"attributes,omitempty"`
}

type dimMeta struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Unlimited bool   `json:"unlimited,omitempty"`
}

type varMeta struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Dtype      string          `json:"dtype"`
	Dimensions []string        `json:"dimensions"`
	Shape      []int           `json:"shape"`
	Coordinate bool            `json:"coordinate,omitempty"`
	FillValue  *attrMeta       `json:"fill_value,omitempty"`
	Compressor *compressorMeta `json:"compressor"`
	Filters    []filterMeta    `json:"filters,omitempty"`
	Object     string          `json:"object"`
	Attributes []attrMeta      `json:"attributes,omitempty"`
}

type attrMeta struct {
	Key   string `json:"key,omitempty"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type compressorMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

type filterMeta struct {
	ID          string `json:"id"`
	ElementSize int    `json:"elementsize"`
}

// New returns the ESDM sink.
func New() sink.Sink { return sink.New(codec{}) }

// Read decodes the container at path.
func Read(path string) (*sink.Dataset, error) {
	ds, _, err := codec{}.Decode(path)
	return ds, err
}

type codec struct{}

func (codec) Format() sink.Format { return sink.FormatESDM }
func (codec) Extension() string   { return ".esdm" }

func (codec) Supports(t cube.ScalarType) bool {
	_, err := dtype(t)
	return err == nil
}

func (codec) Prepare(path string, _ sink.Options) error {
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

func (codec) Encode(path string, ds *sink.Dataset, opts sink.Options) error {
	store := NewLocalStore(path)
	desc := descriptor{Format: formatName, Version: formatVersion}
	for _, d := range ds.Dims {
		desc.Dimensions = append(desc.Dimensions, dimMeta{Name: d.Name, Size: d.Len, Unlimited: d.Unlimited})
	}
	desc.Attributes = attrsMeta(ds.Attrs)

	var enc *zstd.Encoder
	if opts.Compress {
		var err error
		if enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		defer enc.Close()
	}

	for i, v := range ds.Vars {
		dt, err := dtype(v.Type)
		if err != nil {
			return err
		}
		w := v.Type.MustWidth()
		m := varMeta{
			Name:       v.Name,
			Type:       v.Type.String(),
			Dtype:      dt,
			Shape:      ds.Shape(v),
			Coordinate: v.Coordinate,
			Object:     fmt.Sprintf("var_%d.dat", i),
			Attributes: attrsMeta(v.Attrs),
		}
		for _, d := range v.Dims {
			m.Dimensions = append(m.Dimensions, ds.Dims[d].Name)
		}
		if v.Fill != nil {
			m.FillValue = &attrMeta{Type: v.Fill.Type.String(), Value: v.Fill.String()}
		}

		data := v.Data
		if opts.Shuffle && w > 1 {
			data = shuffle(data, w)
			m.Filters = append(m.Filters, filterMeta{ID: filterShuffle, ElementSize: w})
		}
		if enc != nil {
			data = enc.EncodeAll(data, nil)
			m.Compressor = &compressorMeta{ID: compressorZstd, Level: int(zstd.SpeedDefault)}
		}
		if err := store.Put(m.Object, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("write object of %q: %w", v.Name, err)
		}
		desc.Variables = append(desc.Variables, m)
	}

	// The descriptor goes last: a container without one was never committed.
	raw, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return store.Put(descriptorKey, bytes.NewReader(raw))
}

func (codec) Decode(path string) (*sink.Dataset, sink.Options, error) {
	store := NewLocalStore(path)
	raw, err := readAll(store, descriptorKey)
	if err != nil {
		return nil, sink.Options{}, err
	}
	var desc descriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, sink.Options{}, fmt.Errorf("parse %s: %w", descriptorKey, err)
	}
	if desc.Format != formatName || desc.Version != formatVersion {
		return nil, sink.Options{}, fmt.Errorf("unsupported container %s v%d", desc.Format, desc.Version)
	}

	ds := &sink.Dataset{}
	for _, d := range desc.Dimensions {
		if _, err := ds.AddDim(d.Name, d.Size, d.Unlimited); err != nil {
			return nil, sink.Options{}, err
		}
	}
	if ds.Attrs, err = attrsFromMeta(desc.Attributes); err != nil {
		return nil, sink.Options{}, err
	}

	var (
		opts sink.Options
		dec  *zstd.Decoder
	)
	defer func() {
		if dec != nil {
			dec.Close()
		}
	}()
	for _, m := range desc.Variables {
		t, err := cube.ParseScalarType(m.Type)
		if err != nil {
			return nil, sink.Options{}, err
		}
		v := &sink.Variable{Name: m.Name, Type: t, Coordinate: m.Coordinate}
		for _, name := range m.Dimensions {
			idx, ok := ds.DimIndex(name)
			if !ok {
				return nil, sink.Options{}, fmt.Errorf("variable %q references unknown dimension %q", m.Name, name)
			}
			v.Dims = append(v.Dims, idx)
		}
		if v.Attrs, err = attrsFromMeta(m.Attributes); err != nil {
			return nil, sink.Options{}, err
		}
		if m.FillValue != nil {
			fill, err := valueFromMeta(*m.FillValue)
			if err != nil {
				return nil, sink.Options{}, fmt.Errorf("fill value of %q: %w", m.Name, err)
			}
			v.Fill = &fill
		}

		data, err := readAll(store, m.Object)
		if err != nil {
			return nil, sink.Options{}, err
		}
		if m.Compressor != nil {
			if m.Compressor.ID != compressorZstd {
				return nil, sink.Options{}, fmt.Errorf("variable %q: unsupported compressor %q", m.Name, m.Compressor.ID)
			}
			if dec == nil {
				if dec, err = zstd.NewReader(nil); err != nil {
					return nil, sink.Options{}, err
				}
			}
			if data, err = dec.DecodeAll(data, nil); err != nil {
				return nil, sink.Options{}, fmt.Errorf("decompress %q: %w", m.Name, err)
			}
			opts.Compress = true
		}
		for i := len(m.Filters) - 1; i >= 0; i-- {
			f := m.Filters[i]
			if f.ID != filterShuffle {
				return nil, sink.Options{}, fmt.Errorf("variable %q: unsupported filter %q", m.Name, f.ID)
			}
			data = unshuffle(data, f.ElementSize)
			opts.Shuffle = true
		}
		if want := ds.Len(v) * t.MustWidth(); len(data) != want {
			return nil, sink.Options{}, fmt.Errorf("variable %q holds %d bytes, want %d", m.Name, len(data), want)
		}
		v.Data = data
		ds.Vars = append(ds.Vars, v)
	}
	return ds, opts, nil
}

func readAll(s Store, key string) ([]byte, error) {
	rc, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func dtype(t cube.ScalarType) (string, error) {
	switch t {
	case cube.TypeByte:
		return "|i1", nil
	case cube.TypeShort:
		return "<i2", nil
	case cube.TypeInt:
		return "<i4", nil
	case cube.TypeLong:
		return "<i8", nil
	case cube.TypeFloat:
		return "<f4", nil
	case cube.TypeDouble, cube.TypeTime:
		return "<f8", nil
	default:
		return "", fmt.Errorf("type %s has no ESDM dtype", t)
	}
}

func attrsMeta(attrs []sink.Attr) []attrMeta {
	out := make([]attrMeta, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, attrMeta{Key: a.Key, Type: a.Value.Type.String(), Value: a.Value.String()})
	}
	return out
}

func valueFromMeta(m attrMeta) (cube.Value, error) {
	t, err := cube.ParseScalarType(m.Type)
	if err != nil {
		return cube.Value{}, err
	}
	return cube.ParseValue(t, m.Value)
}

func attrsFromMeta(metas []attrMeta) ([]sink.Attr, error) {
	var out []sink.Attr
	for _, m := range metas {
		v, err := valueFromMeta(m)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", m.Key, err)
		}
		out = append(out, sink.Attr{Key: m.Key, Value: v})
	}
	return out, nil
}

// shuffle groups the i-th byte of every element together.
func shuffle(buf []byte, width int) []byte {
	n := len(buf) / width
	out := make([]byte, len(buf))
	for i := 0; i < n; i++ {
		for b := 0; b < width; b++ {
			out[b*n+i] = buf[i*width+b]
		}
	}
	return out
}

func unshuffle(buf []byte, width int) []byte {
	if width <= 1 {
		return buf
	}
	n := len(buf) / width
	out := make([]byte, len(buf))
	for i := 0; i < n; i++ {
		for b := 0; b < width; b++ {
			out[i*width+b] = buf[b*n+i]
		}
	}
	return out
}
