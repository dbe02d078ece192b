// Package foxconfig loads the optional fox.yaml configuration file that
// overrides VM limits and lists module search paths (the VM does not use
// the search paths when resolving imports), the way the teacher's
// internal/ext.Config loads funxy.yaml (gopkg.in/yaml.v3, same tag style).
package foxconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config overrides VM defaults from spec.md §4.4 when a fox.yaml is present
// next to the entry script. Any zero-value field leaves the VM default.
type Config struct {
	InitialStackSize  int      `yaml:"initial_stack_size,omitempty"`
	FramesMax         int      `yaml:"frames_max,omitempty"`
	GCHeapGrowFactor  float64  `yaml:"gc_heap_grow_factor,omitempty"`
	ModuleSearchPaths []string `yaml:"module_search_paths,omitempty"`
}

// Load reads and parses path. A missing file is not an error: it returns a
// zero Config so callers fall back to VM defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// FindNear looks for "fox.yaml" in the directory containing scriptPath.
func FindNear(scriptPath string) (*Config, error) {
	dir := filepath.Dir(scriptPath)
	return Load(filepath.Join(dir, "fox.yaml"))
}
