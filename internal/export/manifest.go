package export

import (
	"fmt"
	"os"
	"time"

	"github.com/aevon-lab/cubexport/internal/core/partition"
	"gopkg.in/yaml.v3"
)

// Manifest lists the files of a multi-file export.
type Manifest struct {
	RunID     string         `yaml:"run_id"`
	Datacube  int64          `yaml:"datacube"`
	Measure   string         `yaml:"measure"`
	Format    string         `yaml:"format"`
	CreatedAt time.Time      `yaml:"created_at"`
	Ranks     int            `yaml:"ranks"`
	Files     []ManifestFile `yaml:"files"`
}

type ManifestFile struct {
	Fragment int64  `yaml:"fragment"`
	Path     string `yaml:"path"`
	Rank     int    `yaml:"rank"`
}

// BuildManifest lists every expected output with the rank that owns it.
func BuildManifest(ec *Context, ext string, ids []int64, ranks int, now time.Time) Manifest {
	m := Manifest{
		RunID:     ec.RunID,
		Datacube:  ec.Cube.DatacubeID,
		Measure:   ec.Cube.MeasureName,
		Format:    string(ec.Options.Format),
		CreatedAt: now.UTC(),
		Ranks:     ranks,
	}
	owner := 0
	for i, id := range ids {
		for !partition.For(len(ids), ranks, owner).Contains(i) && owner < ranks-1 {
			owner++
		}
		m.Files = append(m.Files, ManifestFile{
			Fragment: id,
			Path:     OutputPath(ec.Options, ext, id, len(ids)),
			Rank:     owner,
		})
	}
	return m
}

func WriteManifest(path string, m Manifest) error {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

func ReadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}
