// Package cube holds the read-only snapshots an export works on: the datacube
// descriptor, its dimensions, the fragment routing table and the scalar type
// system shared by catalog, fragment store and sinks.
package cube

import (
	"fmt"
	"log/slog"
	"sort"
)

// Datacube is the descriptor of one cube. It is loaded once by rank 0 and
// broadcast to every rank.
type Datacube struct {
	ContainerID   int64
	DatacubeID    int64
	MeasureName   string
	MeasureType   ScalarType
	Compressed    bool
	FragmentIDSet string
	// IndexTable and LabelTable name the container tables holding dimension
	// indexes and dimension labels on each DB instance.
	IndexTable string
	LabelTable string
	Dimensions []Dimension
}

// Dimension describes one axis of a cube.
type Dimension struct {
	ID   int64
	Name string
	Type ScalarType
	// Size is the cardinality along this axis. 0 means fully reduced.
	Size int64
	// Explicit axes vary within a fragment's row ordering; implicit ones are
	// fully contained in every row.
	Explicit bool
	// Level is the nesting rank among explicit dimensions. Level 1 is outermost.
	Level     int
	FKIndexID int64
	FKLabelID int64
	Unlimited bool
	Units     string
	Calendar  string
}

// Reduced reports whether the dimension was dropped entirely.
func (d Dimension) Reduced() bool { return d.Size == 0 }

// FragmentDescriptor locates one fragment. KeyStart and KeyEnd are an
// inclusive 1-based range over the explicit ordinal space.
type FragmentDescriptor struct {
	Ordinal  int64
	Name     string
	KeyStart int64
	KeyEnd   int64
	ShardID  int64
}

// Rows is the number of rows the fragment covers.
func (f FragmentDescriptor) Rows() int64 { return f.KeyEnd - f.KeyStart + 1 }

// ShardDescriptor is one DB instance hosting fragments.
type ShardDescriptor struct {
	ID     int64
	DBMSID int64
	DSN    string
	DBName string
}

// Attribute is a cube metadata entry. Scope is the variable name it is bound
// to; nil means global.
type Attribute struct {
	ID    int64
	Scope *string
	Key   string
	Type  ScalarType
	Value string
}

// ScopeName returns the attribute scope or "" for global attributes.
func (a Attribute) ScopeName() string {
	if a.Scope == nil {
		return ""
	}
	return *a.Scope
}

// OrderDimensions returns dims with explicit dimensions first, outermost to
// innermost, followed by implicit dimensions in their original order.
func OrderDimensions(dims []Dimension) []Dimension {
	out := make([]Dimension, len(dims))
	copy(out, dims)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Explicit != out[j].Explicit {
			return out[i].Explicit
		}
		if out[i].Explicit {
			return out[i].Level < out[j].Level
		}
		return false
	})
	return out
}

// NormalizeUnlimited applies the unlimited-dimension eligibility rule once per
// export: only the first dimension in iteration order may be unlimited, and
// only if it is explicit with a nonzero size. Other candidates are demoted.
func NormalizeUnlimited(dims []Dimension) []Dimension {
	out := make([]Dimension, len(dims))
	copy(out, dims)
	first := true
	for i := range out {
		d := &out[i]
		if d.Reduced() {
			if d.Unlimited {
				slog.Warn("[Cube] Reduced dimension cannot be unlimited, demoting", "dimension", d.Name)
			}
			d.Unlimited = false
			continue
		}
		if d.Unlimited && !(first && d.Explicit) {
			slog.Warn("[Cube] Only the outermost explicit dimension can be unlimited, demoting",
				"dimension", d.Name)
			d.Unlimited = false
		}
		first = false
	}
	return out
}

// Validate checks the dimension ordering invariants.
func (c *Datacube) Validate() error {
	if !c.MeasureType.IsNumeric() {
		return fmt.Errorf("measure %q has non-numeric type %s", c.MeasureName, c.MeasureType)
	}
	seenImplicit := false
	unlimited := 0
	for _, d := range c.Dimensions {
		if !d.Type.IsNumeric() {
			return fmt.Errorf("dimension %q has non-numeric type %s", d.Name, d.Type)
		}
		if d.Size < 0 {
			return fmt.Errorf("dimension %q has negative size %d", d.Name, d.Size)
		}
		if d.Explicit && seenImplicit {
			return fmt.Errorf("explicit dimension %q follows an implicit dimension", d.Name)
		}
		if !d.Explicit {
			seenImplicit = true
		}
		if d.Unlimited {
			unlimited++
		}
	}
	if unlimited > 1 {
		return fmt.Errorf("%d unlimited dimensions, at most one allowed", unlimited)
	}
	return nil
}

// ExplicitSizes returns the sizes of the non-reduced explicit dimensions.
func (c *Datacube) ExplicitSizes() []int64 {
	var out []int64
	for _, d := range c.Dimensions {
		if d.Explicit && !d.Reduced() {
			out = append(out, d.Size)
		}
	}
	return out
}
