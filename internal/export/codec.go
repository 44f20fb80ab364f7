package export

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

//go:embed export_context.proto
var contextProto string

const contextProtoFile = "cubexport/v1/export_context.proto"

// Codec encodes the export context as protobuf through a descriptor
// compiled from the embedded schema at start-up.
type Codec struct {
	root protoreflect.MessageDescriptor
}

// NewCodec compiles the context schema.
func NewCodec(ctx context.Context) (*Codec, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&singleFileResolver{
			fileName: contextProtoFile,
			content:  contextProto,
		}),
		SourceInfoMode: protocompile.SourceInfoNone,
	}
	files, err := compiler.Compile(ctx, contextProtoFile)
	if err != nil {
		return nil, fmt.Errorf("failed to compile export context schema: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files compiled")
	}
	md := files[0].Messages().ByName("ExportContext")
	if md == nil {
		return nil, fmt.Errorf("export context schema defines no ExportContext message")
	}
	return &Codec{root: md}, nil
}

type singleFileResolver struct {
	fileName string
	content  string
}

func (r *singleFileResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	if path == r.fileName {
		return protocompile.SearchResult{
			Source: strings.NewReader(r.content),
		}, nil
	}
	return protocompile.SearchResult{}, fmt.Errorf("file not found: %s", path)
}

// msg wraps a dynamic message with by-name field access. The field names
// are fixed by the embedded schema, so a missing one is a programming error.
type msg struct {
	protoreflect.Message
}

func (m msg) field(name string) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("%s has no field %q", m.Descriptor().FullName(), name))
	}
	return fd
}

func (m msg) setString(name, v string)    { m.Set(m.field(name), protoreflect.ValueOfString(v)) }
func (m msg) setInt(name string, v int64) { m.Set(m.field(name), protoreflect.ValueOfInt64(v)) }
func (m msg) setBool(name string, v bool) { m.Set(m.field(name), protoreflect.ValueOfBool(v)) }
func (m msg) child(name string) msg       { return msg{m.Mutable(m.field(name)).Message()} }

func (m msg) getString(name string) string { return m.Get(m.field(name)).String() }
func (m msg) getInt(name string) int64     { return m.Get(m.field(name)).Int() }
func (m msg) getBool(name string) bool     { return m.Get(m.field(name)).Bool() }
func (m msg) has(name string) bool         { return m.Has(m.field(name)) }
func (m msg) get(name string) msg          { return msg{m.Get(m.field(name)).Message()} }

// Marshal encodes c.
func (c *Codec) Marshal(ec *Context) ([]byte, error) {
	m := msg{dynamicpb.NewMessage(c.root)}
	m.Set(m.field("version"), protoreflect.ValueOfUint32(ec.Version))
	m.Set(m.field("status"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(ec.Status)))
	m.setString("run_id", ec.RunID)
	m.setString("published", ec.Published)

	if ec.Failure != nil {
		f := m.child("failure")
		f.setString("kind", ec.Failure.Kind.String())
		f.setString("message", ec.Failure.Message)
	}
	if ec.Cube != nil {
		encodeCube(m.child("cube"), ec.Cube)
	}
	if ec.Status == StatusReady {
		encodeOptions(m.child("options"), ec.Options)
	}

	blob, err := proto.Marshal(m.Interface())
	if err != nil {
		return nil, fmt.Errorf("failed to encode export context: %w", err)
	}
	return blob, nil
}

func encodeCube(m msg, c *cube.Datacube) {
	m.setInt("container_id", c.ContainerID)
	m.setInt("datacube_id", c.DatacubeID)
	m.setString("measure_name", c.MeasureName)
	m.setString("measure_type", c.MeasureType.String())
	m.setBool("compressed", c.Compressed)
	m.setString("fragment_id_set", c.FragmentIDSet)
	m.setString("index_table", c.IndexTable)
	m.setString("label_table", c.LabelTable)

	dims := m.Mutable(m.field("dimensions")).List()
	for _, d := range c.Dimensions {
		e := dims.NewElement()
		dm := msg{e.Message()}
		dm.setInt("id", d.ID)
		dm.setString("name", d.Name)
		dm.setString("type", d.Type.String())
		dm.setInt("size", d.Size)
		dm.setBool("explicit", d.Explicit)
		dm.Set(dm.field("level"), protoreflect.ValueOfInt32(int32(d.Level)))
		dm.setInt("fk_index_id", d.FKIndexID)
		dm.setInt("fk_label_id", d.FKLabelID)
		dm.setBool("unlimited", d.Unlimited)
		dm.setString("units", d.Units)
		dm.setString("calendar", d.Calendar)
		dims.Append(e)
	}
}

func encodeOptions(m msg, o Options) {
	m.setString("format", string(o.Format))
	m.setString("output_path", o.OutputPath)
	m.setString("output_name", o.OutputName)
	m.setBool("template", o.Template)
	m.setBool("force", o.Force)
	m.setString("metadata", string(o.Metadata))
	m.setBool("compress", o.Compress)
	m.setBool("shuffle", o.Shuffle)
	m.setInt("memory_buffer", o.MemoryBuffer)
	m.setString("fill_value_key", o.FillValueKey)
	m.setBool("manifest", o.Manifest)
}

// Unmarshal decodes a context produced by Marshal. A blob of another
// version is a configuration error: every rank must run the same build.
func (c *Codec) Unmarshal(blob []byte) (*Context, error) {
	const op = "export.decode_context"
	dm := dynamicpb.NewMessage(c.root)
	if err := proto.Unmarshal(blob, dm); err != nil {
		return nil, xerr.Configuration(op, "malformed export context", err)
	}
	m := msg{dm}

	ec := &Context{
		Version:   uint32(m.Get(m.field("version")).Uint()),
		Status:    Status(m.Get(m.field("status")).Enum()),
		RunID:     m.getString("run_id"),
		Published: m.getString("published"),
	}
	if ec.Version != ContextVersion {
		return nil, xerr.Configuration(op,
			fmt.Sprintf("export context version %d, this build speaks %d", ec.Version, ContextVersion), nil)
	}
	if m.has("failure") {
		f := m.get("failure")
		ec.Failure = &Failure{Kind: xerr.ParseKind(f.getString("kind")), Message: f.getString("message")}
	}
	if m.has("cube") {
		dc, err := decodeCube(m.get("cube"))
		if err != nil {
			return nil, xerr.Configuration(op, "malformed datacube", err)
		}
		ec.Cube = dc
	}
	if ec.Status == StatusReady {
		if ec.Cube == nil {
			return nil, xerr.Configuration(op, "ready context without datacube", nil)
		}
		o, err := decodeOptions(m.get("options"))
		if err != nil {
			return nil, err
		}
		ec.Options = o
	}
	return ec, nil
}

func decodeCube(m msg) (*cube.Datacube, error) {
	t, err := cube.ParseScalarType(m.getString("measure_type"))
	if err != nil {
		return nil, err
	}
	c := &cube.Datacube{
		ContainerID:   m.getInt("container_id"),
		DatacubeID:    m.getInt("datacube_id"),
		MeasureName:   m.getString("measure_name"),
		MeasureType:   t,
		Compressed:    m.getBool("compressed"),
		FragmentIDSet: m.getString("fragment_id_set"),
		IndexTable:    m.getString("index_table"),
		LabelTable:    m.getString("label_table"),
	}
	dims := m.Get(m.field("dimensions")).List()
	for i := 0; i < dims.Len(); i++ {
		dm := msg{dims.Get(i).Message()}
		dt, err := cube.ParseScalarType(dm.getString("type"))
		if err != nil {
			return nil, err
		}
		c.Dimensions = append(c.Dimensions, cube.Dimension{
			ID:        dm.getInt("id"),
			Name:      dm.getString("name"),
			Type:      dt,
			Size:      dm.getInt("size"),
			Explicit:  dm.getBool("explicit"),
			Level:     int(dm.Get(dm.field("level")).Int()),
			FKIndexID: dm.getInt("fk_index_id"),
			FKLabelID: dm.getInt("fk_label_id"),
			Unlimited: dm.getBool("unlimited"),
			Units:     dm.getString("units"),
			Calendar:  dm.getString("calendar"),
		})
	}
	return c, nil
}

func decodeOptions(m msg) (Options, error) {
	format, err := sink.ParseFormat(m.getString("format"))
	if err != nil {
		return Options{}, xerr.Configuration("export.decode_context", "malformed options", err)
	}
	mode, err := ParseMetadataMode(m.getString("metadata"))
	if err != nil {
		return Options{}, err
	}
	return Options{
		Format:       format,
		OutputPath:   m.getString("output_path"),
		OutputName:   m.getString("output_name"),
		Template:     m.getBool("template"),
		Force:        m.getBool("force"),
		Metadata:     mode,
		Compress:     m.getBool("compress"),
		Shuffle:      m.getBool("shuffle"),
		MemoryBuffer: m.getInt("memory_buffer"),
		FillValueKey: m.getString("fill_value_key"),
		Manifest:     m.getBool("manifest"),
	}, nil
}
