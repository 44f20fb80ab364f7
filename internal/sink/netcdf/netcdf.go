// Package netcdf writes NetCDF classic containers.
//
// Files use the 64-bit offset variant (CDF-2) unless a variable needs a
// 64-bit integer type, which only the 64-bit data variant (CDF-5) can hold.
// The unlimited dimension, when present, becomes the record dimension.
package netcdf

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
)

const (
	versionOffset64 = 2
	versionData64   = 5
)

// nc_type tags.
const (
	ncByte   = 1
	ncChar   = 2
	ncShort  = 3
	ncInt    = 4
	ncFloat  = 5
	ncDouble = 6
	ncInt64  = 10
)

// list tags.
const (
	tagDimension = 0x0A
	tagVariable  = 0x0B
	tagAttribute = 0x0C
)

// FillValueAttr is the conventional fill value attribute name.
const FillValueAttr = "_FillValue"

// New returns the NetCDF sink.
func New() sink.Sink { return sink.New(codec{}) }

// Read decodes the file at path.
func Read(path string) (*sink.Dataset, error) {
	ds, _, err := codec{}.Decode(path)
	return ds, err
}

type codec struct{}

func (codec) Format() sink.Format { return sink.FormatNetCDF }
func (codec) Extension() string   { return ".nc" }

func (codec) Supports(t cube.ScalarType) bool {
	switch t {
	case cube.TypeByte, cube.TypeShort, cube.TypeInt, cube.TypeLong,
		cube.TypeFloat, cube.TypeDouble, cube.TypeTime:
		return true
	default:
		return false
	}
}

func (codec) Prepare(path string, opts sink.Options) error {
	if opts.Compress || opts.Shuffle {
		slog.Warn("[NetCDF] Classic containers cannot store compressed variables, ignoring compression flags",
			"path", path,
			"compress", opts.Compress,
			"shuffle", opts.Shuffle)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (codec) Encode(path string, ds *sink.Dataset, _ sink.Options) error {
	buf, err := encode(ds)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (codec) Decode(path string) (*sink.Dataset, sink.Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sink.Options{}, err
	}
	ds, err := decode(raw)
	if err != nil {
		return nil, sink.Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, sink.Options{}, nil
}

func ncType(t cube.ScalarType) (int32, error) {
	switch t {
	case cube.TypeByte:
		return ncByte, nil
	case cube.TypeShort:
		return ncShort, nil
	case cube.TypeInt:
		return ncInt, nil
	case cube.TypeLong:
		return ncInt64, nil
	case cube.TypeFloat:
		return ncFloat, nil
	case cube.TypeDouble, cube.TypeTime:
		return ncDouble, nil
	case cube.TypeText:
		return ncChar, nil
	default:
		return 0, fmt.Errorf("type %s has no netcdf equivalent", t)
	}
}

func scalarType(nc int32) (cube.ScalarType, error) {
	switch nc {
	case ncByte:
		return cube.TypeByte, nil
	case ncChar:
		return cube.TypeText, nil
	case ncShort:
		return cube.TypeShort, nil
	case ncInt:
		return cube.TypeInt, nil
	case ncInt64:
		return cube.TypeLong, nil
	case ncFloat:
		return cube.TypeFloat, nil
	case ncDouble:
		return cube.TypeDouble, nil
	default:
		return cube.TypeInvalid, fmt.Errorf("unsupported nc_type %d", nc)
	}
}
