package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const loaderYAMLSuite = `name: yamlsuite
scenarios:
  - name: Build
    steps:
      - action: build
        target: a/a.exe
`

const loaderMarkdownSuite = `---
name: mdsuite
---

## Scenario: Build

### Steps

- build a/a.exe
`

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte(loaderYAMLSuite), 0o644); err != nil {
		t.Fatalf("Failed to write suite file: %v", err)
	}

	suite, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if suite.Name != "yamlsuite" {
		t.Errorf("Name = %q, want %q", suite.Name, "yamlsuite")
	}
}

func TestLoadFileMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.md")
	if err := os.WriteFile(path, []byte(loaderMarkdownSuite), 0o644); err != nil {
		t.Fatalf("Failed to write suite file: %v", err)
	}

	suite, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if suite.Name != "mdsuite" {
		t.Errorf("Name = %q, want %q", suite.Name, "mdsuite")
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.toml")
	if err := os.WriteFile(path, []byte("name = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write suite file: %v", err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !strings.Contains(err.Error(), ".toml") {
		t.Errorf("error = %v, want extension named", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFileErrorNamesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("name: [unclosed"), 0o644); err != nil {
		t.Fatalf("Failed to write suite file: %v", err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for invalid suite file")
	}
	if !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("error = %v, want path in message", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"first.yaml":       loaderYAMLSuite,
		"second.md":        loaderMarkdownSuite,
		"notes.txt":        "not a suite",
		"nested/third.yml": strings.Replace(loaderYAMLSuite, "yamlsuite", "nested", 1),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	r := NewRegistry()
	n, err := LoadDir(r, dir)
	if err != nil {
		t.Fatalf("LoadDir() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("LoadDir() loaded %d suites, want 3", n)
	}

	for _, name := range []string{"yamlsuite", "mdsuite", "nested"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("suite %q not registered", name)
		}
	}
}

func TestLoadDirDuplicateName(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(loaderYAMLSuite), 0o644); err != nil {
			t.Fatalf("Failed to write suite file: %v", err)
		}
	}

	r := NewRegistry()
	_, err := LoadDir(r, dir)
	if err == nil {
		t.Fatal("expected error for duplicate suite names across files")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("error = %v, want duplicate message", err)
	}
}

func TestLoadDirMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := LoadDir(r, filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
