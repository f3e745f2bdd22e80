package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keller/dunesmoke/internal/fileutil"
)

// LoadFile reads a suite definition from path, dispatching on extension.
// .yaml and .yml files are parsed as YAML, .md and .markdown as Markdown.
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}

	var s *Suite
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err = LoadYAML(data)
	case ".md", ".markdown":
		s, err = LoadMarkdown(data)
	default:
		return nil, fmt.Errorf("unsupported suite file %q (want .yaml, .yml, .md, or .markdown)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadDir loads every suite definition found under dir into the registry.
// Returns the number of suites registered.
func LoadDir(r *Registry, dir string) (int, error) {
	files, err := fileutil.FindSuiteFiles(dir)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, path := range files {
		s, err := LoadFile(path)
		if err != nil {
			return loaded, err
		}
		if err := r.Register(s); err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}
