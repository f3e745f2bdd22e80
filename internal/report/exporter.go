package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/keller/dunesmoke/internal/filelock"
)

// Exporter renders a report in one output format.
type Exporter interface {
	Export(r *Report) (string, error)
}

// JSONExporter renders the artifact as JSON.
type JSONExporter struct {
	Pretty bool // Enable pretty printing with indentation
}

// Export converts a report to a JSON string.
func (je *JSONExporter) Export(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	var data []byte
	var err error
	if je.Pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// MarkdownExporter renders the artifact as a human-readable summary, suitable
// for CI job summaries.
type MarkdownExporter struct {
	IncludeTimestamp bool // Include export timestamp in header
}

// Export converts a report to a Markdown string.
func (me *MarkdownExporter) Export(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report cannot be nil")
	}

	var sb strings.Builder

	sb.WriteString("# Dune Smoke Test Report\n\n")
	if me.IncludeTimestamp {
		sb.WriteString(fmt.Sprintf("**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))
	}

	sb.WriteString("## Run\n\n")
	sb.WriteString(fmt.Sprintf("- **Run ID**: %s\n", r.RunID))
	sb.WriteString(fmt.Sprintf("- **OCaml**: %s\n", r.OCamlVersion))
	if r.DuneVersion != "" {
		sb.WriteString(fmt.Sprintf("- **Dune**: %s\n", r.DuneVersion))
	}
	sb.WriteString(fmt.Sprintf("- **Architecture**: %s\n", r.Arch))
	sb.WriteString(fmt.Sprintf("- **Classification**: %s\n", r.Classification))
	sb.WriteString(fmt.Sprintf("- **Exit code**: %d\n", r.ExitCode))
	if r.GCWorkaround {
		sb.WriteString("- **GC workaround**: applied\n")
	}
	sb.WriteString("\n")

	for _, suite := range r.Suites {
		sb.WriteString(fmt.Sprintf("## %s\n\n", suite.Label))
		sb.WriteString("| Scenario | Result | Duration |\n")
		sb.WriteString("|----------|--------|----------|\n")
		for _, sc := range suite.Scenarios {
			result := "pass"
			if !sc.Passed {
				result = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %dms |\n", sc.Name, result, sc.DurationMS))
		}
		sb.WriteString("\n")
		for _, line := range suite.Verdict.Annotation(suite.Label) {
			sb.WriteString(fmt.Sprintf("> %s\n", line))
		}
		if suite.Verdict.Classification != "" && len(suite.Verdict.Failed) > 0 {
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

// WriteArtifact renders the report and writes it atomically under a file
// lock. An empty format is inferred from the path extension: .md and
// .markdown select markdown, everything else JSON.
func WriteArtifact(r *Report, path string, format string) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	format = strings.ToLower(format)
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown":
			format = "markdown"
		default:
			format = "json"
		}
	}
	if format == "md" {
		format = "markdown"
	}

	var exporter Exporter
	switch format {
	case "json":
		exporter = &JSONExporter{Pretty: true}
	case "markdown":
		exporter = &MarkdownExporter{IncludeTimestamp: true}
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, markdown)", format)
	}

	content, err := exporter.Export(r)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	return filelock.LockAndWrite(path, []byte(content))
}
