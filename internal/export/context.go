package export

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/sink"
)

// ContextVersion is the wire version of the broadcast export context.
const ContextVersion uint32 = 1

// Status is the outcome of rank 0's resolution.
type Status int

const (
	StatusReady Status = iota + 1
	// StatusCached means the output already exists and force was not set.
	StatusCached
	// StatusFailed carries rank 0's resolution error to every rank.
	StatusFailed
)

// MetadataMode selects when cube attributes are written.
type MetadataMode string

const (
	MetadataNo  MetadataMode = "no"
	MetadataYes MetadataMode = "yes"
	// MetadataDeferred attaches attributes after every rank committed, in a
	// separate pass run by rank 0.
	MetadataDeferred MetadataMode = "deferred"
)

func ParseMetadataMode(s string) (MetadataMode, error) {
	switch m := MetadataMode(strings.ToLower(strings.TrimSpace(s))); m {
	case MetadataNo, MetadataYes, MetadataDeferred:
		return m, nil
	case "":
		return MetadataNo, nil
	}
	return "", xerr.Configuration("export.options", fmt.Sprintf("export_metadata must be yes, no or deferred, got %q", s), nil)
}

// Options are the user-facing export settings.
type Options struct {
	Format     sink.Format
	OutputPath string
	// OutputName defaults to the measure name. With Template set it must
	// contain FragmentPlaceholder.
	OutputName string
	Template   bool
	Force      bool
	Metadata   MetadataMode
	Compress   bool
	Shuffle    bool
	// MemoryBuffer bounds the bytes of one measure write batch.
	MemoryBuffer int64
	// FillValueKey names the attribute used as fill value when the catalog
	// has no missing-value link.
	FillValueKey string
	Manifest     bool
}

// Request names the cube to export.
type Request struct {
	CubeID  int64
	Options Options
}

// Failure is rank 0's resolution error as broadcast to the other ranks.
type Failure struct {
	Kind    xerr.Kind
	Message string
}

// Context is built once on rank 0 and broadcast. It is never mutated after.
type Context struct {
	Version uint32
	Status  Status
	RunID   string
	Cube    *cube.Datacube
	Options Options
	// Published is the existing output found when Status is StatusCached.
	Published string
	Failure   *Failure
}

func failedContext(err error) *Context {
	return &Context{
		Version: ContextVersion,
		Status:  StatusFailed,
		Failure: &Failure{Kind: xerr.KindOf(err), Message: err.Error()},
	}
}

// Err is the error every rank returns for a cached or failed context.
func (c *Context) Err() error {
	switch c.Status {
	case StatusReady:
		return nil
	case StatusCached:
		return xerr.AlreadyPublished(c.Published)
	case StatusFailed:
		if c.Failure == nil {
			return xerr.New(xerr.KindUnknown, "export", "rank 0 failed")
		}
		return xerr.New(c.Failure.Kind, "export", c.Failure.Message)
	default:
		return xerr.Configuration("export.context", fmt.Sprintf("unknown context status %d", c.Status), nil)
	}
}

// FragmentIDs decodes the cube's fragment ordinals.
func (c *Context) FragmentIDs() ([]int64, error) {
	ids, err := cube.ParseFragmentIDSet(c.Cube.FragmentIDSet)
	if err != nil {
		return nil, xerr.Configuration("export.context", fmt.Sprintf("datacube %d", c.Cube.DatacubeID), err)
	}
	return ids, nil
}
