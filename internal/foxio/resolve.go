// Package foxio resolves `import` paths to source files and caches the
// resolution so repeated imports of the same module skip the filesystem
// (spec.md §4.4/§6). The cache is a module-lifetime concern, not a VM-value
// concern, so it lives outside internal/vm the way the teacher keeps its
// module loader's resolved-path cache (internal/modules) separate from
// internal/evaluator.
package foxio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dolthub/swiss"
)

// Resolver resolves dotted import paths to file paths joined onto the
// importing directory (absolute only when that directory is), caching hits
// with a swiss.Map keyed by the literal (currentDir, path) pair so the same
// module imported from two different files is resolved independently but
// each pair only ever stats the filesystem once.
type Resolver struct {
	basePath string
	cache    *swiss.Map[string, string]
}

// New creates a Resolver that falls back to basePath when a relative lookup
// misses.
func New(basePath string) *Resolver {
	return &Resolver{
		basePath: basePath,
		cache:    swiss.NewMap[string, string](16),
	}
}

// Resolve finds relFile (already dot-path-to-slash-path translated by the
// compiler, e.g. "a/b/c.fox") relative to currentDir (the importing file's
// own directory) first, then relative to the Resolver's base path (spec.md
// §6: "given a dotted path `a.b.c`, try `<current-file-dir>/a/b/c.fox`
// first, then `<base-path>/a/b/c.fox`").
func (r *Resolver) Resolve(currentDir, relFile, dotted string) (string, error) {
	key := currentDir + "\x00" + relFile
	if hit, ok := r.cache.Get(key); ok {
		return hit, nil
	}

	candidate := filepath.Join(currentDir, relFile)
	if _, err := os.Stat(candidate); err == nil {
		r.cache.Put(key, candidate)
		return candidate, nil
	}

	candidate = filepath.Join(r.basePath, relFile)
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("module '%s' not found under %s or %s", dotted, currentDir, r.basePath)
	}
	r.cache.Put(key, candidate)
	return candidate, nil
}
