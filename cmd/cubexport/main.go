package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	corecfg "github.com/aevon-lab/cubexport/internal/core/config"
	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/aevon-lab/cubexport/internal/core/storage/postgres"
	"github.com/aevon-lab/cubexport/internal/export"
	"github.com/aevon-lab/cubexport/internal/metrics"
	"github.com/aevon-lab/cubexport/internal/migrations"
	"github.com/aevon-lab/cubexport/internal/runner"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/aevon-lab/cubexport/internal/sink/esdm"
	"github.com/aevon-lab/cubexport/internal/sink/fits"
	"github.com/aevon-lab/cubexport/internal/sink/netcdf"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath, cubeID := registerFlags(flag.CommandLine)
	flag.Parse()

	// 0. Bootstrap logger until the configured one is known
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath, flagOverrides(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return xerr.ExitCode(xerr.Configuration("config.load", "invalid configuration", err))
	}
	slog.SetDefault(newLogger(cfg.Log))
	if *cubeID <= 0 {
		slog.Error("A datacube id is required", "flag", "-cube")
		return xerr.ExitCode(xerr.ErrConfiguration)
	}
	opts, err := cfg.ExportOptions()
	if err != nil {
		slog.Error("Invalid export options", "error", err)
		return xerr.ExitCode(xerr.Configuration("config.export", "invalid export options", err))
	}
	req := export.Request{CubeID: *cubeID, Options: opts}

	// 2. Initialize Catalog (PostgreSQL)
	db, err := postgres.OpenCatalog(cfg.Catalog.DSN, cfg.Catalog.MaxOpenConns, cfg.Catalog.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to open catalog", "error", err)
		return xerr.ExitCode(err)
	}
	// 2.1. Run Catalog Migrations
	if err := migrations.RunMigrations(db, cfg.Catalog.AutoMigrate); err != nil {
		db.Close()
		slog.Error("Failed to check catalog schema", "error", err)
		return xerr.ExitCode(xerr.Configuration("catalog.migrate", "catalog schema", err))
	}
	catalog, err := postgres.NewCatalogAdapter(db)
	if err != nil {
		db.Close()
		slog.Error("Failed to prepare catalog queries", "error", err)
		return xerr.ExitCode(err)
	}
	defer catalog.Close()

	// 3. Initialize Fragment Store, Sinks and Export Core
	store := postgres.NewFragmentStore(cfg.Shard.ConnectTimeout, cfg.Shard.QueryTimeout)
	sinks := sink.NewRegistry()
	sinks.Register(netcdf.New())
	sinks.Register(fits.New())
	sinks.Register(esdm.New())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	codec, err := export.NewCodec(ctx)
	if err != nil {
		slog.Error("Failed to compile export context schema", "error", err)
		return 1
	}
	m := metrics.New()
	coordinator := export.NewCoordinator(catalog, store, sinks, codec, m)

	// 4. Run Ranks
	var outcomes []runner.Outcome
	switch cfg.Cluster.Mode {
	case corecfg.ModeHTTP:
		o, err := runner.RunHTTP(ctx, coordinator, runner.HTTPConfig{
			Rank:             cfg.Cluster.Rank,
			Size:             cfg.Cluster.Size,
			CoordinatorAddr:  cfg.Cluster.CoordinatorAddr,
			ListenAddr:       cfg.Cluster.ListenAddr,
			BroadcastTimeout: cfg.Cluster.BroadcastTimeout,
			Linger:           cfg.Cluster.Linger,
			GinMode:          cfg.Cluster.GinMode,
			Gatherer:         m.Registry,
		}, req)
		if err != nil {
			slog.Error("Failed to join export group", "error", err)
			return xerr.ExitCode(err)
		}
		outcomes = []runner.Outcome{o}
	default:
		outcomes, err = runner.RunLocal(ctx, coordinator, cfg.Cluster.Workers, req)
		if err != nil {
			slog.Error("Failed to start ranks", "error", err)
			return xerr.ExitCode(err)
		}
	}

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			slog.Warn("Failed to write metrics textfile", "path", path, "error", err)
		}
	}

	runErr := runner.Err(outcomes)
	switch {
	case runErr == nil:
		for _, o := range outcomes {
			if o.Result != nil && o.Result.Locator != "" {
				fmt.Println(o.Result.Locator)
			}
		}
	case xerr.KindOf(runErr) == xerr.KindAlreadyPublished:
		slog.Warn("Output already published, nothing to do", "error", runErr)
	default:
		slog.Error("Export failed", "kind", xerr.KindOf(runErr), "error", runErr)
	}
	return xerr.ExitCode(runErr)
}

// registerFlags defines the command line on fs.
func registerFlags(fs *flag.FlagSet) (configPath *string, cubeID *int64) {
	configPath = fs.String("config", "", "Path to configuration file")
	cubeID = fs.Int64("cube", 0, "Datacube id to export")
	fs.String("format", "", "Output format: nc, fits or esdm")
	fs.String("output", "", "Output directory")
	fs.String("name", "", "Output file name, {frag} is replaced in template mode")
	fs.Bool("template", false, "Treat -name as a per-fragment template")
	fs.Bool("force", false, "Overwrite published outputs")
	fs.String("metadata", "", "Attribute export: no, yes or deferred")
	fs.Bool("compress", false, "Compress measure data where the format supports it")
	fs.Bool("shuffle", false, "Byte-shuffle measure data before compression")
	fs.Int64("memory-buffer-mb", 0, "Row buffer per rank in MiB")
	fs.String("mode", "", "Rank launch mode: local or http")
	fs.Int("workers", 0, "Number of in-process ranks (local mode)")
	fs.Int("rank", 0, "Rank of this process (http mode)")
	fs.Int("size", 0, "Number of ranks in the group (http mode)")
	fs.String("coordinator", "", "Rank 0 address (http mode)")
	return configPath, cubeID
}

// flagOverrides maps the flags set on fs to config keys.
func flagOverrides(fs *flag.FlagSet) map[string]interface{} {
	keys := map[string]string{
		"format":           "export.format",
		"output":           "export.output_path",
		"name":             "export.output_name",
		"template":         "export.template",
		"force":            "export.force",
		"metadata":         "export.export_metadata",
		"compress":         "export.compress",
		"shuffle":          "export.shuffle",
		"memory-buffer-mb": "export.memory_buffer_mb",
		"mode":             "cluster.mode",
		"workers":          "cluster.workers",
		"rank":             "cluster.rank",
		"size":             "cluster.size",
		"coordinator":      "cluster.coordinator_addr",
	}
	out := map[string]interface{}{}
	fs.Visit(func(f *flag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			return
		}
		if g, ok := f.Value.(flag.Getter); ok {
			out[key] = g.Get()
		}
	})
	return out
}

func newLogger(cfg corecfg.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}
