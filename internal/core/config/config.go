package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aevon-lab/cubexport/internal/export"
	"github.com/aevon-lab/cubexport/internal/sink"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CUBEXPORT_"

// Cluster modes.
const (
	ModeLocal = "local"
	ModeHTTP  = "http"
)

// Config is the full exporter configuration.
type Config struct {
	Catalog  CatalogConfig  `koanf:"catalog"`
	Shard    ShardConfig    `koanf:"shard"`
	Export   ExportConfig   `koanf:"export"`
	Cluster  ClusterConfig  `koanf:"cluster"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Manifest ManifestConfig `koanf:"manifest"`
}

type CatalogConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type ShardConfig struct {
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	QueryTimeout   time.Duration `koanf:"query_timeout"`
}

type ExportConfig struct {
	Format         string `koanf:"format"`
	OutputPath     string `koanf:"output_path"`
	OutputName     string `koanf:"output_name"`
	Template       bool   `koanf:"template"`
	Force          bool   `koanf:"force"`
	ExportMetadata string `koanf:"export_metadata"` // no | yes | deferred
	Compress       bool   `koanf:"compress"`
	Shuffle        bool   `koanf:"shuffle"`
	MemoryBufferMB int64  `koanf:"memory_buffer_mb"`
	FillValueKey   string `koanf:"fill_value_key"`
}

type ClusterConfig struct {
	Mode             string        `koanf:"mode"` // local | http
	Workers          int           `koanf:"workers"`
	Rank             int           `koanf:"rank"`
	Size             int           `koanf:"size"`
	CoordinatorAddr  string        `koanf:"coordinator_addr"`
	ListenAddr       string        `koanf:"listen_addr"`
	BroadcastTimeout time.Duration `koanf:"broadcast_timeout"`
	Linger           time.Duration `koanf:"linger"`
	GinMode          string        `koanf:"gin_mode"` // debug | release
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text | json
}

type MetricsConfig struct {
	TextfilePath string `koanf:"textfile_path"`
}

type ManifestConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ExportOptions converts the export section into run options.
func (c *Config) ExportOptions() (export.Options, error) {
	format, err := sink.ParseFormat(c.Export.Format)
	if err != nil {
		return export.Options{}, err
	}
	mode, err := export.ParseMetadataMode(c.Export.ExportMetadata)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Format:       format,
		OutputPath:   c.Export.OutputPath,
		OutputName:   c.Export.OutputName,
		Template:     c.Export.Template,
		Force:        c.Export.Force,
		Metadata:     mode,
		Compress:     c.Export.Compress,
		Shuffle:      c.Export.Shuffle,
		MemoryBuffer: c.Export.MemoryBufferMB << 20,
		FillValueKey: c.Export.FillValueKey,
		Manifest:     c.Manifest.Enabled,
	}, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Catalog.DSN) == "" {
		return fmt.Errorf("catalog.dsn is required")
	}
	if c.Catalog.MaxOpenConns <= 0 {
		return fmt.Errorf("catalog.max_open_conns must be > 0")
	}
	if c.Catalog.MaxIdleConns <= 0 {
		return fmt.Errorf("catalog.max_idle_conns must be > 0")
	}

	if c.Shard.ConnectTimeout < 0 {
		return fmt.Errorf("shard.connect_timeout must be >= 0")
	}
	if c.Shard.QueryTimeout < 0 {
		return fmt.Errorf("shard.query_timeout must be >= 0")
	}

	if _, err := c.ExportOptions(); err != nil {
		return fmt.Errorf("invalid export section: %w", err)
	}
	if strings.TrimSpace(c.Export.OutputPath) == "" {
		return fmt.Errorf("export.output_path is required")
	}
	if c.Export.MemoryBufferMB <= 0 {
		return fmt.Errorf("export.memory_buffer_mb must be > 0")
	}
	if c.Export.Template && !strings.Contains(c.Export.OutputName, export.FragmentPlaceholder) {
		return fmt.Errorf("export.output_name %q must contain %s when export.template is set",
			c.Export.OutputName, export.FragmentPlaceholder)
	}

	switch c.Cluster.Mode {
	case ModeLocal:
		if c.Cluster.Workers <= 0 {
			return fmt.Errorf("cluster.workers must be > 0")
		}
	case ModeHTTP:
		if c.Cluster.Size <= 0 {
			return fmt.Errorf("cluster.size must be > 0")
		}
		if c.Cluster.Rank < 0 || c.Cluster.Rank >= c.Cluster.Size {
			return fmt.Errorf("invalid cluster.rank %d (must be 0-%d)", c.Cluster.Rank, c.Cluster.Size-1)
		}
		if c.Cluster.Rank == 0 && strings.TrimSpace(c.Cluster.ListenAddr) == "" {
			return fmt.Errorf("cluster.listen_addr is required on rank 0")
		}
		if c.Cluster.Rank > 0 && strings.TrimSpace(c.Cluster.CoordinatorAddr) == "" {
			return fmt.Errorf("cluster.coordinator_addr is required on rank %d", c.Cluster.Rank)
		}
		if c.Cluster.BroadcastTimeout <= 0 {
			return fmt.Errorf("cluster.broadcast_timeout must be > 0")
		}
	default:
		return fmt.Errorf("invalid cluster.mode %q (must be local or http)", c.Cluster.Mode)
	}
	if c.Cluster.GinMode != "debug" && c.Cluster.GinMode != "release" {
		return fmt.Errorf("invalid cluster.gin_mode %q (must be debug or release)", c.Cluster.GinMode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}
	return nil
}

// Load layers defaults, the YAML file, CUBEXPORT_ env vars and overrides, in
// that order, and validates the result. Overrides carry command-line flags
// keyed like the file, e.g. "cluster.workers".
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"catalog.dsn":               "postgres://localhost:5432/cubexport?sslmode=disable",
		"catalog.max_open_conns":    4,
		"catalog.max_idle_conns":    2,
		"catalog.auto_migrate":      false,
		"shard.connect_timeout":     "10s",
		"shard.query_timeout":       "0s",
		"export.format":             string(sink.FormatNetCDF),
		"export.output_path":        ".",
		"export.output_name":        "",
		"export.template":           false,
		"export.force":              false,
		"export.export_metadata":    string(export.MetadataNo),
		"export.compress":           false,
		"export.shuffle":            false,
		"export.memory_buffer_mb":   256,
		"export.fill_value_key":     "",
		"cluster.mode":              ModeLocal,
		"cluster.workers":           1,
		"cluster.rank":              0,
		"cluster.size":              1,
		"cluster.coordinator_addr":  "",
		"cluster.listen_addr":       "0.0.0.0:7946",
		"cluster.broadcast_timeout": "5m",
		"cluster.linger":            "30s",
		"cluster.gin_mode":          "release",
		"log.level":                 "info",
		"log.format":                "text",
		"metrics.textfile_path":     "",
		"manifest.enabled":          true,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	for key, value := range overrides {
		k.Set(key, value)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
