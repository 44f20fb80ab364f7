package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		ordinal int64
		total   int
		want    string
	}{
		{"single fragment", Options{OutputPath: "/out", OutputName: "temp"}, 1, 1, "/out/temp.nc"},
		{"numbered", Options{OutputPath: "/out", OutputName: "temp"}, 7, 9, "/out/temp_7.nc"},
		{"extension in the name", Options{OutputPath: "/out", OutputName: "temp.nc"}, 3, 4, "/out/temp_3.nc"},
		{"template", Options{OutputPath: "/out", OutputName: "run-{frag}-x", Template: true}, 12, 20, "/out/run-12-x.nc"},
		{"template single", Options{OutputPath: "/out", OutputName: "{frag}", Template: true}, 5, 1, "/out/5.nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), OutputPath(tt.opts, ".nc", tt.ordinal, tt.total))
		})
	}
}

func TestLocator(t *testing.T) {
	opts := Options{OutputPath: "/out", OutputName: "temp"}
	assert.Equal(t, filepath.FromSlash("/out/temp.fits"), Locator(opts, ".fits", []int64{4}))
	assert.Equal(t, filepath.FromSlash("/out/temp_{frag}.fits")+" (5 files, fragments 1-3;7;9)",
		Locator(opts, ".fits", []int64{1, 2, 3, 7, 9}))

	opts.Template, opts.OutputName = true, "t{frag}"
	assert.Equal(t, filepath.FromSlash("/out/t{frag}.fits")+" (2 files, fragments 1-2)",
		Locator(opts, ".fits", []int64{1, 2}))
}

func TestManifestPath(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("/out/temp.manifest.yaml"), ManifestPath(Options{OutputPath: "/out", OutputName: "temp"}))
	assert.Equal(t, filepath.FromSlash("/out/temp.manifest.yaml"), ManifestPath(Options{OutputPath: "/out", OutputName: "temp_{frag}", Template: true}))
}
