package display

import (
	"path/filepath"
	"strings"

	"github.com/keller/dunesmoke/internal/fileutil"
)

// IsSuiteFile checks if filename will be picked up by the suite loader.
// Pattern validation:
// 1. Must have a basename before the extension
// 2. Must not be a dotfile
// 3. Must not contain newline or null bytes
// 4. Must end with a recognized extension: .yaml, .yml, .md, .markdown (lowercase only)
func IsSuiteFile(filename string) bool {
	if filename == "" {
		return false
	}

	if strings.HasPrefix(filename, ".") {
		return false
	}

	// Check for invalid characters (newline, null byte)
	if strings.ContainsAny(filename, "\n\x00") {
		return false
	}

	// Check extension (case-sensitive, must be lowercase)
	ext := filepath.Ext(filename)
	for _, valid := range fileutil.SuiteExtensions {
		if ext == valid {
			// Extension is valid, now check that there's a name before it
			return len(strings.TrimSuffix(filename, ext)) > 0
		}
	}
	return false
}

// FindIgnoredFiles scans a directory and returns basenames of files the
// suite loader will silently skip (wrong or missing extension).
// Only scans the immediate directory (not recursive). Dotfiles are not
// reported. Returns error if path doesn't exist or is not a directory.
func FindIgnoredFiles(dirPath string) ([]string, error) {
	// No extension filter: collect everything at the top level, then keep
	// what the loader would not accept
	result, err := fileutil.ScanDirectory(dirPath, fileutil.ScanOptions{
		Recursive: false,
	})
	if err != nil {
		return nil, err
	}

	ignored := make([]string, 0, len(result.Files))
	for _, absPath := range result.Files {
		basename := filepath.Base(absPath)
		if strings.HasPrefix(basename, ".") {
			continue
		}
		if IsSuiteFile(basename) {
			continue
		}
		ignored = append(ignored, basename)
	}

	return ignored, nil
}

// WarnIgnoredSuiteFiles creates a warning for files the suite loader skips
func WarnIgnoredSuiteFiles(files []string) Warning {
	return Warning{
		Title: "Unsupported files in suite directory",
		Files: files,
		Suggestion: "Rename them to .yaml, .yml, .md or .markdown so the loader picks them up, " +
			"or move them out of the suite directory.",
	}
}
