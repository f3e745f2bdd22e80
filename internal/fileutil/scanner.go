package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SuiteExtensions are the file extensions recognized as suite definitions.
var SuiteExtensions = []string{".yaml", ".yml", ".md", ".markdown"}

// ScanOptions configures a directory scan.
type ScanOptions struct {
	// Pattern filters filenames (extension stripped) by regex.
	Pattern string
	// Extensions restricts matches to these extensions, case-insensitive.
	// A missing leading dot is tolerated.
	Extensions []string
	// Recursive descends into subdirectories.
	Recursive bool
	// ExcludeDirs names directories to prune during the walk.
	ExcludeDirs []string
	// MaxDepth caps recursion depth (0 = unlimited, 1 = top level only).
	MaxDepth int
}

// ScanResult holds the matched files and any non-fatal errors collected
// while walking.
type ScanResult struct {
	// Files are the absolute paths of all matched files, sorted.
	Files []string
	// Errors are access problems that did not stop the scan.
	Errors []error
}

// scanFilter is the compiled form of ScanOptions.
type scanFilter struct {
	pattern *regexp.Regexp
	exts    map[string]bool
	exclude map[string]bool
}

func compileFilter(opts ScanOptions) (*scanFilter, error) {
	f := &scanFilter{
		exts:    make(map[string]bool, len(opts.Extensions)),
		exclude: make(map[string]bool, len(opts.ExcludeDirs)),
	}

	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		f.pattern = re
	}

	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.exts[strings.ToLower(ext)] = true
	}

	for _, name := range opts.ExcludeDirs {
		f.exclude[name] = true
	}

	return f, nil
}

// pruneDir reports whether a directory should be cut from the walk.
// _build holds dune artifacts and never contains suite definitions, and
// hidden directories are never scanned.
func (f *scanFilter) pruneDir(name string) bool {
	if name == "_build" || strings.HasPrefix(name, ".") {
		return true
	}
	return f.exclude[name]
}

// matchFile applies the extension and pattern filters to a filename.
func (f *scanFilter) matchFile(name string) bool {
	ext := filepath.Ext(name)
	if len(f.exts) > 0 && !f.exts[strings.ToLower(ext)] {
		return false
	}
	if f.pattern != nil && !f.pattern.MatchString(strings.TrimSuffix(name, ext)) {
		return false
	}
	return true
}

// ScanDirectory scans a directory for files matching the provided options.
// Hidden directories and dune _build trees are always skipped.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	filter, err := compileFilter(opts)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil // Continue walking
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if filter.pruneDir(d.Name()) || !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 && walkDepth(dir, path) >= opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !filter.matchFile(d.Name()) {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}
		result.Files = append(result.Files, absPath)
		return nil
	}

	if err := filepath.WalkDir(dir, walk); err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	// Sort files for consistent output
	sort.Strings(result.Files)

	return result, nil
}

// walkDepth counts how many levels below root a path sits. Direct children
// are at depth 1.
func walkDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// FindSuiteFiles returns the suite definition files under dir, sorted.
// It recurses through subdirectories but prunes hidden and _build trees.
func FindSuiteFiles(dir string) ([]string, error) {
	result, err := ScanDirectory(dir, ScanOptions{
		Extensions: SuiteExtensions,
		Recursive:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return result.Files, fmt.Errorf("scan %s: %v", dir, result.Errors[0])
	}
	return result.Files, nil
}
