// Package sink writes exported fragments into array container files.
//
// A Sink creates containers of one format. A Container is a structured
// n-dimensional file: named dimensions, typed variables over those
// dimensions, attributes on variables or on the file, and hyperslab writes.
// Formats share the in-memory Dataset model and differ only in how a
// Dataset is encoded on Commit and decoded on Reopen.
package sink

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/cubexport/internal/core/cube"
)

// Format identifies a container format.
type Format string

const (
	FormatNetCDF Format = "netcdf"
	FormatFITS   Format = "fits"
	FormatESDM   Format = "esdm"
)

// ParseFormat accepts a format name case-insensitively. "nc" is an alias of netcdf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "netcdf", "nc":
		return FormatNetCDF, nil
	case "fits":
		return FormatFITS, nil
	case "esdm":
		return FormatESDM, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// VarID identifies a variable inside one container.
type VarID int

// Global targets file-level attributes.
const Global VarID = -1

// Options are per-container creation flags. Formats that cannot honor a
// flag log a warning and ignore it.
type Options struct {
	Compress bool
	Shuffle  bool
}

// Sink creates and reopens containers of one format.
type Sink interface {
	Format() Format
	// Extension is appended to output names, including the leading dot.
	Extension() string
	// Supports reports whether variables of type t can be stored.
	Supports(t cube.ScalarType) bool
	// Create truncates or creates the container at path.
	Create(path string, opts Options) (Container, error)
	// Reopen loads a committed container for attribute updates.
	Reopen(path string) (Container, error)
}

// Container is one open output file.
type Container interface {
	// DefineDimension declares a dimension and its coordinate variable
	// of the same name. The returned id addresses the coordinate variable.
	DefineDimension(name string, t cube.ScalarType, extent int, unlimited bool) (VarID, error)
	// DefineMeasure declares an n-dimensional variable over previously
	// defined dimensions, outermost first.
	DefineMeasure(name string, t cube.ScalarType, dims []VarID) (VarID, error)
	// Lookup returns the id of a variable by name.
	Lookup(name string) (VarID, bool)

	WriteDimensionValues(dim VarID, offset int, buf []byte) error
	// WriteMeasureSlice writes a row-major hyperslab. buf holds
	// product(counts) little-endian values of the variable type.
	WriteMeasureSlice(v VarID, offsets, counts []int, buf []byte) error

	AttachAttribute(target VarID, key string, val cube.Value) error
	SetFillValue(v VarID, val cube.Value) error

	// Commit encodes the container to disk. It may be called more than once.
	Commit() error
	// Close releases the container. Uncommitted changes are discarded.
	Close() error
}
