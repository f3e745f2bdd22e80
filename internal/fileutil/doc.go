// Package fileutil provides file system scanning and writing utilities.
//
// This package is the single source of truth for locating suite definition
// files and for writing fixture trees, so directory traversal rules stay
// consistent across the codebase.
//
// # Scanning
//
// ScanDirectory walks a directory with flexible filtering:
//   - Extensions: case-insensitive extension filtering (".md", ".yaml")
//   - Pattern: regex matching on filenames without their extension
//   - Recursive / MaxDepth: subdirectory traversal controls
//   - ExcludeDirs: directory names to skip
//
// Hidden directories (starting with ".") and dune _build trees are always
// pruned. Output is sorted alphabetically for deterministic results, and
// non-fatal errors (e.g. permission denied on a subdirectory) are collected
// while scanning continues.
//
// FindSuiteFiles wraps ScanDirectory with the suite file conventions: it
// returns every .yaml, .yml, .md, and .markdown file under a directory.
//
// Basic usage:
//
//	files, err := fileutil.FindSuiteFiles("suites")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range files {
//	    fmt.Println(f)
//	}
//
// Custom scans:
//
//	result, err := fileutil.ScanDirectory("fixtures", fileutil.ScanOptions{
//	    Pattern:    "^consistency-",
//	    Extensions: []string{".yaml"},
//	    Recursive:  true,
//	    MaxDepth:   2,
//	})
//
// # Writing
//
// WriteFileWithDirs writes a file and creates its parent directories in one
// call, which is how scenario fixture trees are materialized inside scratch
// projects.
package fileutil
