package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aevon-lab/cubexport/internal/core/cube"
)

// FragmentPlaceholder is replaced by the fragment ordinal in template names.
const FragmentPlaceholder = "{frag}"

// OutputPath is the container path of fragment ordinal in a cube of total
// fragments: <base>/<name><ext> for a single fragment, <base>/<name>_<ordinal><ext>
// otherwise. Template names substitute the ordinal instead.
func OutputPath(opts Options, ext string, ordinal int64, total int) string {
	name := strings.TrimSuffix(opts.OutputName, ext)
	switch {
	case opts.Template:
		name = strings.ReplaceAll(name, FragmentPlaceholder, fmt.Sprintf("%d", ordinal))
	case total > 1:
		name = fmt.Sprintf("%s_%d", name, ordinal)
	}
	return filepath.Join(opts.OutputPath, name+ext)
}

// Locator is the summary rank 0 reports once the export is done.
func Locator(opts Options, ext string, ids []int64) string {
	if len(ids) == 1 {
		return OutputPath(opts, ext, ids[0], 1)
	}
	pattern := strings.TrimSuffix(opts.OutputName, ext)
	if !opts.Template {
		pattern += "_" + FragmentPlaceholder
	}
	return fmt.Sprintf("%s (%d files, fragments %s)",
		filepath.Join(opts.OutputPath, pattern+ext), len(ids), cube.FormatFragmentIDSet(ids))
}

// ManifestPath is the listing written next to multi-file exports.
func ManifestPath(opts Options) string {
	name := strings.ReplaceAll(opts.OutputName, FragmentPlaceholder, "")
	name = strings.TrimRight(name, "_-.")
	return filepath.Join(opts.OutputPath, name+".manifest.yaml")
}
