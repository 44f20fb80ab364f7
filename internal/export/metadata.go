package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/sink"
)

// metadata is the cube's attribute list, fetched once per rank.
type metadata struct {
	attrs []boundAttr
	fill  *cube.Value
}

type boundAttr struct {
	scope string
	key   string
	value cube.Value
}

func (c *Coordinator) loadMetadata(ctx context.Context, ec *Context) (*metadata, error) {
	const op = "export.metadata"
	cubeID := ec.Cube.DatacubeID
	attrs, err := c.catalog.Attributes(ctx, cubeID)
	if err != nil {
		return nil, err
	}
	missingID, hasMissing, err := c.catalog.MissingValueID(ctx, cubeID)
	if err != nil {
		return nil, err
	}

	md := &metadata{}
	for _, a := range attrs {
		val, err := cube.ParseValue(a.Type, a.Value)
		if err != nil {
			return nil, xerr.Configuration(op, fmt.Sprintf("attribute %q of datacube %d", a.Key, cubeID), err)
		}
		md.attrs = append(md.attrs, boundAttr{scope: a.ScopeName(), key: a.Key, value: val})

		switch {
		case hasMissing && a.ID == missingID:
			md.fill = &val
		case !hasMissing && md.fill == nil && ec.Options.FillValueKey != "" && a.Key == ec.Options.FillValueKey &&
			(a.Scope == nil || a.ScopeName() == ec.Cube.MeasureName):
			md.fill = &val
		}
	}
	if hasMissing && md.fill == nil {
		slog.Warn("[Export] Missing value attribute not found, measure has no fill value",
			"datacube_id", cubeID,
			"attribute_id", missingID)
	}
	return md, nil
}

// targets resolves attribute scopes to variables of one container.
type targets struct {
	measureName string
	measure     sink.VarID
	dims        map[string]sink.VarID
}

func (t targets) lookup(scope string) (sink.VarID, bool) {
	switch scope {
	case "":
		return sink.Global, true
	case t.measureName:
		return t.measure, true
	}
	id, ok := t.dims[scope]
	return id, ok
}

// apply attaches md to ct. Attributes scoped to a variable the container
// does not hold are skipped with a warning.
func (md *metadata) apply(ct sink.Container, t targets, path string) error {
	for _, a := range md.attrs {
		id, ok := t.lookup(a.scope)
		if !ok {
			slog.Warn("[Export] Attribute scope matches no variable, skipping",
				"path", path,
				"scope", a.scope,
				"key", a.key)
			continue
		}
		if err := ct.AttachAttribute(id, a.key, a.value); err != nil {
			return err
		}
	}
	if md.fill != nil {
		if err := ct.SetFillValue(t.measure, *md.fill); err != nil {
			return err
		}
	}
	return nil
}
