package processor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"towebp/internal/scan"
)

// ResolveOutput mirrors item into outputRoot, swapping the extension for ext
// when ext is set.
func ResolveOutput(outputRoot string, item scan.WorkItem, ext string) string {
	rel := item.RelPath
	if ext != "" {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
	}
	return filepath.Join(outputRoot, rel)
}

// EnsureParent creates every missing ancestor of path. Existing directories,
// including ones created concurrently by another worker, are not an error.
func EnsureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// claimSet hands each output path to the first item that asks for it. Sources
// differing only by extension share an output, and only one may convert.
type claimSet struct {
	paths sync.Map
}

// claim reports whether path was unclaimed and now belongs to the caller.
func (c *claimSet) claim(path string) bool {
	_, taken := c.paths.LoadOrStore(filepath.Clean(path), struct{}{})
	return !taken
}
