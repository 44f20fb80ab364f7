// Package fits writes FITS containers.
//
// The measure is the primary IMAGE HDU; every other variable, dimension
// coordinates included, is an IMAGE extension named by EXTNAME. Axes are
// listed fastest-varying first as FITS requires, so NAXIS1 is the innermost
// dimension. Attributes are HIERARCH cards whose comment holds the scalar
// type; global attributes live in the primary header under "GLOBAL".
package fits

import (
	"fmt"
	"os"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	"github.com/aevon-lab/cubexport/internal/sink"
)

const globalPrefix = "GLOBAL "

// New returns the FITS sink.
func New() sink.Sink { return sink.New(codec{}) }

// Read decodes the file at path.
func Read(path string) (*sink.Dataset, error) {
	ds, _, err := codec{}.Decode(path)
	return ds, err
}

type codec struct{}

func (codec) Format() sink.Format { return sink.FormatFITS }
func (codec) Extension() string   { return ".fits" }

func (codec) Supports(t cube.ScalarType) bool {
	_, err := bitpix(t)
	return err == nil
}

func (codec) Prepare(path string, _ sink.Options) error {
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

func bitpix(t cube.ScalarType) (int64, error) {
	switch t {
	case cube.TypeByte:
		return 8, nil
	case cube.TypeShort:
		return 16, nil
	case cube.TypeInt:
		return 32, nil
	case cube.TypeLong:
		return 64, nil
	case cube.TypeFloat:
		return -32, nil
	case cube.TypeDouble, cube.TypeTime:
		return -64, nil
	default:
		return 0, fmt.Errorf("type %s has no FITS image equivalent", t)
	}
}

func typeFromBitpix(b int64) (cube.ScalarType, error) {
	switch b {
	case 8:
		return cube.TypeByte, nil
	case 16:
		return cube.TypeShort, nil
	case 32:
		return cube.TypeInt, nil
	case 64:
		return cube.TypeLong, nil
	case -32:
		return cube.TypeFloat, nil
	case -64:
		return cube.TypeDouble, nil
	default:
		return cube.TypeInvalid, fmt.Errorf("unsupported BITPIX %d", b)
	}
}
