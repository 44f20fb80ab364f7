package main

import (
	"flag"
	"testing"

	corecfg "github.com/aevon-lab/cubexport/internal/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagOverrides_OnlySetFlags(t *testing.T) {
	fs := flag.NewFlagSet("cubexport", flag.ContinueOnError)
	_, cubeID := registerFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"-cube", "42",
		"-format", "esdm",
		"-compress",
		"-shuffle",
		"-memory-buffer-mb", "16",
		"-workers", "3",
	}))

	assert.Equal(t, int64(42), *cubeID)
	assert.Equal(t, map[string]interface{}{
		"export.format":           "esdm",
		"export.compress":         true,
		"export.shuffle":          true,
		"export.memory_buffer_mb": int64(16),
		"cluster.workers":         3,
	}, flagOverrides(fs))
}

func TestFlagOverrides_ReachExportOptions(t *testing.T) {
	fs := flag.NewFlagSet("cubexport", flag.ContinueOnError)
	registerFlags(fs)
	require.NoError(t, fs.Parse([]string{"-compress", "-shuffle", "-memory-buffer-mb", "8"}))

	cfg, err := corecfg.Load("", flagOverrides(fs))
	require.NoError(t, err)
	opts, err := cfg.ExportOptions()
	require.NoError(t, err)
	assert.True(t, opts.Compress)
	assert.True(t, opts.Shuffle)
	assert.EqualValues(t, 8<<20, opts.MemoryBuffer)
}
