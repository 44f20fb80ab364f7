// Package export runs one rank of a datacube export: rank 0 resolves and
// broadcasts the export context, then every rank writes the containers of
// its share of the fragments independently.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aevon-lab/cubexport/internal/cluster"
	"github.com/aevon-lab/cubexport/internal/core/coords"
	"github.com/aevon-lab/cubexport/internal/core/cube"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/partition"
	"github.com/aevon-lab/cubexport/internal/core/storage"
	"github.com/aevon-lab/cubexport/internal/metrics"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/google/uuid"
)

// Coordinator exports the fragments of one rank. It holds no per-run state
// and may be shared by in-process ranks.
type Coordinator struct {
	catalog storage.CatalogClient
	store   storage.FragmentStore
	sinks   *sink.Registry
	codec   *Codec
	metrics *metrics.Export
	now     func() time.Time
}

// NewCoordinator wires a coordinator. m may be nil.
func NewCoordinator(catalog storage.CatalogClient, store storage.FragmentStore, sinks *sink.Registry, codec *Codec, m *metrics.Export) *Coordinator {
	return &Coordinator{
		catalog: catalog,
		store:   store,
		sinks:   sinks,
		codec:   codec,
		metrics: m,
		now:     time.Now,
	}
}

// Result describes what one rank did.
type Result struct {
	Rank     int
	RunID    string
	Assigned partition.AssignedRange
	Files    []string
	Rows     int64
	// Locator and Manifest are only set on rank 0.
	Locator  string
	Manifest string
}

// Run executes the export on comm's rank. Every rank of the group must call
// Run with the same request.
func (c *Coordinator) Run(ctx context.Context, comm cluster.Communicator, req Request) (*Result, error) {
	start := c.now()
	res, err := c.run(ctx, comm, req)
	c.metrics.RankFinished(start, err)
	return res, err
}

func (c *Coordinator) run(ctx context.Context, comm cluster.Communicator, req Request) (*Result, error) {
	ec, err := c.shareContext(ctx, comm, req)
	if err != nil {
		return nil, err
	}
	log := slog.With("rank", comm.Rank(), "run_id", ec.RunID)

	snk, err := c.sinks.Get(ec.Options.Format)
	if err != nil {
		return nil, xerr.Configuration("export.run", "output format", err)
	}
	ids, err := ec.FragmentIDs()
	if err != nil {
		return nil, err
	}

	assigned := partition.For(len(ids), comm.Size(), comm.Rank())
	res := &Result{Rank: comm.Rank(), RunID: ec.RunID, Assigned: assigned}

	var exportErr error
	if assigned.Empty() {
		log.Info("[Export] No fragments assigned to this rank", "fragments", len(ids), "ranks", comm.Size())
	} else {
		log.Info("[Export] Exporting assigned fragments",
			"first", assigned.Start,
			"count", assigned.Count,
			"fragments", len(ids))
		exportErr = c.exportRange(ctx, log, ec, snk, ids, assigned, res)
		if exportErr != nil {
			log.Error("[Export] Rank failed", "kind", xerr.KindOf(exportErr), "error", exportErr)
		}
	}

	// Every rank joins the barrier, failed and idle ones included, so the
	// deferred pass never waits on a rank that gave up.
	if ec.Options.Metadata == MetadataDeferred {
		if err := comm.Barrier(ctx); err != nil {
			if exportErr == nil {
				exportErr = xerr.IO("export.barrier", "deferred metadata barrier", err)
			}
		} else if comm.Rank() == cluster.Root && exportErr == nil {
			exportErr = c.deferredMetadata(ctx, log, ec, snk, ids)
		}
	}
	if exportErr != nil {
		return res, exportErr
	}

	if comm.Rank() == cluster.Root {
		res.Locator = Locator(ec.Options, snk.Extension(), ids)
		if ec.Options.Manifest && len(ids) > 1 {
			path := ManifestPath(ec.Options)
			if err := WriteManifest(path, BuildManifest(ec, snk.Extension(), ids, comm.Size(), c.now())); err != nil {
				return res, xerr.IO("export.manifest", path, err)
			}
			res.Manifest = path
		}
		log.Info("[Export] Export complete", "output", res.Locator)
	}
	return res, nil
}

// shareContext resolves the context on rank 0 and broadcasts it, failure or
// cached status included, so every rank leaves the broadcast with the same
// outcome.
func (c *Coordinator) shareContext(ctx context.Context, comm cluster.Communicator, req Request) (*Context, error) {
	if comm.Rank() != cluster.Root {
		blob, err := comm.Broadcast(ctx, nil)
		if err != nil {
			return nil, xerr.IO("export.broadcast", "failed to receive export context", err)
		}
		ec, err := c.codec.Unmarshal(blob)
		if err != nil {
			return nil, err
		}
		return ec, ec.Err()
	}

	ec, resolveErr := c.resolve(ctx, req)
	if resolveErr != nil {
		slog.Error("[Export] Failed to resolve datacube", "datacube_id", req.CubeID, "error", resolveErr)
		ec = failedContext(resolveErr)
	}
	blob, err := c.codec.Marshal(ec)
	if err != nil {
		resolveErr = err
		if blob, err = c.codec.Marshal(failedContext(err)); err != nil {
			return nil, err
		}
	}
	if _, err := comm.Broadcast(ctx, blob); err != nil {
		return nil, xerr.IO("export.broadcast", "failed to send export context", err)
	}
	if resolveErr != nil {
		return nil, resolveErr
	}
	return ec, ec.Err()
}

// resolve loads the cube and runs every check that must happen before any
// rank opens a shard connection.
func (c *Coordinator) resolve(ctx context.Context, req Request) (*Context, error) {
	const op = "export.resolve"
	opts := req.Options
	if opts.Metadata == "" {
		opts.Metadata = MetadataNo
	}
	if opts.Template && !strings.Contains(opts.OutputName, FragmentPlaceholder) {
		return nil, xerr.Configuration(op, fmt.Sprintf("template output name %q lacks %s", opts.OutputName, FragmentPlaceholder), nil)
	}
	snk, err := c.sinks.Get(opts.Format)
	if err != nil {
		return nil, xerr.Configuration(op, "output format", err)
	}

	dc, err := c.catalog.Datacube(ctx, req.CubeID)
	if err != nil {
		return nil, err
	}
	dims, err := c.catalog.Dimensions(ctx, req.CubeID)
	if err != nil {
		return nil, err
	}
	dc.Dimensions = cube.NormalizeUnlimited(cube.OrderDimensions(dims))
	if !snk.Supports(dc.MeasureType) {
		return nil, xerr.UnsupportedType(op, fmt.Sprintf("%s (measure %q, format %s)", dc.MeasureType, dc.MeasureName, snk.Format()))
	}
	for _, d := range dc.Dimensions {
		if !d.Reduced() && !snk.Supports(d.Type) {
			return nil, xerr.UnsupportedType(op, fmt.Sprintf("%s (dimension %q, format %s)", d.Type, d.Name, snk.Format()))
		}
	}
	// Type support is checked first so a text tag reports as unsupported
	// rather than as a malformed cube.
	if err := dc.Validate(); err != nil {
		return nil, xerr.Configuration(op, fmt.Sprintf("datacube %d", req.CubeID), err)
	}

	ids, err := cube.ParseFragmentIDSet(dc.FragmentIDSet)
	if err != nil {
		return nil, xerr.Configuration(op, fmt.Sprintf("datacube %d fragment set", req.CubeID), err)
	}
	if len(ids) == 0 {
		return nil, xerr.NotFound(op, fmt.Sprintf("datacube %d has no fragments", req.CubeID), nil)
	}
	if opts.OutputName == "" {
		opts.OutputName = dc.MeasureName
	}

	first := OutputPath(opts, snk.Extension(), ids[0], len(ids))
	if !opts.Force {
		if _, err := os.Stat(first); err == nil {
			slog.Warn("[Export] Output already published, set force to overwrite", "path", first)
			return &Context{Version: ContextVersion, Status: StatusCached, Cube: dc, Published: first}, nil
		}
	}
	if err := checkDestination(opts.OutputPath); err != nil {
		return nil, err
	}

	frags, _, err := c.catalog.FragmentRouting(ctx, req.CubeID, ids)
	if err != nil {
		return nil, err
	}
	mapper, err := coords.NewMapper(dc.Dimensions)
	if err != nil {
		return nil, err
	}
	if err := coords.CheckFragmentation(mapper, frags); err != nil {
		return nil, err
	}

	ec := &Context{
		Version: ContextVersion,
		Status:  StatusReady,
		RunID:   uuid.NewString(),
		Cube:    dc,
		Options: opts,
	}
	slog.Info("[Export] Resolved datacube",
		"datacube_id", dc.DatacubeID,
		"measure", dc.MeasureName,
		"fragments", len(ids),
		"format", opts.Format,
		"run_id", ec.RunID)
	return ec, nil
}

// checkDestination creates the output directory and checks it accepts new files.
func checkDestination(dir string) error {
	const op = "export.destination"
	classify := func(msg string, err error) error {
		if errors.Is(err, fs.ErrPermission) {
			return xerr.Permission(op, msg, err)
		}
		return xerr.IO(op, msg, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return classify(fmt.Sprintf("cannot create output directory %q", dir), err)
	}
	f, err := os.CreateTemp(dir, ".cubexport-write-*")
	if err != nil {
		return classify(fmt.Sprintf("cannot write to output directory %q", dir), err)
	}
	closeErr := f.Close()
	removeErr := os.Remove(f.Name())
	if closeErr != nil {
		return classify(fmt.Sprintf("cannot write to output directory %q", dir), closeErr)
	}
	if removeErr != nil {
		return classify(fmt.Sprintf("cannot clean up output directory %q", dir), removeErr)
	}
	return nil
}

// exportRange exports fragments ids[assigned.Start:assigned.End()], one shard
// connection at a time.
func (c *Coordinator) exportRange(ctx context.Context, log *slog.Logger, ec *Context, snk sink.Sink, ids []int64, assigned partition.AssignedRange, res *Result) error {
	mine := ids[assigned.Start:assigned.End()]
	frags, shards, err := c.catalog.FragmentRouting(ctx, ec.Cube.DatacubeID, mine)
	if err != nil {
		return err
	}
	mapper, err := coords.NewMapper(ec.Cube.Dimensions)
	if err != nil {
		return err
	}

	var meta *metadata
	if ec.Options.Metadata == MetadataYes {
		if meta, err = c.loadMetadata(ctx, ec); err != nil {
			return err
		}
	}

	shardByID := make(map[int64]cube.ShardDescriptor, len(shards))
	for _, s := range shards {
		shardByID[s.ID] = s
	}
	var order []int64
	byShard := make(map[int64][]cube.FragmentDescriptor)
	for _, f := range frags {
		if _, ok := byShard[f.ShardID]; !ok {
			order = append(order, f.ShardID)
		}
		byShard[f.ShardID] = append(byShard[f.ShardID], f)
	}

	var values dimensionValues
	for _, id := range order {
		shard, ok := shardByID[id]
		if !ok {
			return xerr.NotFound("export.routing", fmt.Sprintf("db instance %d is not registered", id), nil)
		}
		err := c.exportShard(ctx, log, shard, func(conn storage.ShardConn) error {
			if values == nil {
				v, err := loadDimensionValues(ctx, conn, ec.Cube)
				if err != nil {
					return err
				}
				values = v
			}
			for _, f := range byShard[id] {
				job := fragmentJob{
					ec:     ec,
					sink:   snk,
					conn:   conn,
					mapper: mapper,
					values: values,
					meta:   meta,
					frag:   f,
					path:   OutputPath(ec.Options, snk.Extension(), f.Ordinal, len(ids)),
				}
				stats, err := exportFragment(ctx, job)
				c.metrics.RowsWritten(stats.rows, stats.bytes)
				if err != nil {
					return err
				}
				c.metrics.FragmentExported(string(snk.Format()))
				res.Files = append(res.Files, job.path)
				res.Rows += int64(stats.rows)
				log.Debug("[Export] Fragment committed",
					"fragment", f.Ordinal,
					"rows", stats.rows,
					"path", job.path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// exportShard holds one connection to shard for the duration of fn.
func (c *Coordinator) exportShard(ctx context.Context, log *slog.Logger, shard cube.ShardDescriptor, fn func(storage.ShardConn) error) error {
	conn, err := c.store.Connect(ctx, shard)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("[Export] Failed to close shard connection", "shard", shard.ID, "error", err)
		}
	}()
	log.Debug("[Export] Connected to shard", "shard", shard.ID, "db", shard.DBName)
	return fn(conn)
}

// deferredMetadata reopens every committed output and attaches the cube's
// attributes. Outputs that cannot be reopened were left behind by a failed
// rank and are skipped.
func (c *Coordinator) deferredMetadata(ctx context.Context, log *slog.Logger, ec *Context, snk sink.Sink, ids []int64) error {
	meta, err := c.loadMetadata(ctx, ec)
	if err != nil {
		return err
	}
	skipped := 0
	for _, id := range ids {
		path := OutputPath(ec.Options, snk.Extension(), id, len(ids))
		ct, err := snk.Reopen(path)
		if err != nil {
			log.Warn("[Export] Cannot reopen output for deferred metadata, skipping", "path", path, "error", err)
			skipped++
			continue
		}
		if err := annotate(ct, ec, meta, path); err != nil {
			ct.Close()
			return err
		}
		if err := ct.Close(); err != nil {
			return xerr.IO("export.deferred_metadata", path, err)
		}
	}
	log.Info("[Export] Deferred metadata attached", "files", len(ids)-skipped, "skipped", skipped)
	return nil
}

func annotate(ct sink.Container, ec *Context, meta *metadata, path string) error {
	measure, ok := ct.Lookup(ec.Cube.MeasureName)
	if !ok {
		return xerr.IO("export.deferred_metadata", fmt.Sprintf("%s has no variable %q", path, ec.Cube.MeasureName), nil)
	}
	t := targets{measureName: ec.Cube.MeasureName, measure: measure, dims: make(map[string]sink.VarID)}
	for _, d := range ec.Cube.Dimensions {
		if id, ok := ct.Lookup(d.Name); ok && !d.Reduced() {
			t.dims[d.Name] = id
		}
	}
	if err := meta.apply(ct, t, path); err != nil {
		return err
	}
	return ct.Commit()
}
