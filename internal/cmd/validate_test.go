package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCommand_ValidSuite(t *testing.T) {
	dir := writeSuiteDir(t, map[string]string{
		"nightly.yaml": nightlySuiteYAML,
	})

	output, err := executeRoot(t, "validate", dir, "--no-color")
	if err != nil {
		t.Fatalf("Execute() returned error for valid suite: %v", err)
	}

	if !strings.Contains(output, "✓ Configuration valid") {
		t.Errorf("Expected config check line, got: %s", output)
	}
	if !strings.Contains(output, `suite "nightly" (1 scenario)`) {
		t.Errorf("Expected suite summary line, got: %s", output)
	}
	if !strings.Contains(output, "✓ Everything is valid!") {
		t.Errorf("Expected success message, got: %s", output)
	}
}

func TestValidateCommand_NoScenarios(t *testing.T) {
	dir := writeSuiteDir(t, map[string]string{
		"broken.yaml": "name: broken\nscenarios: []\n",
	})

	output, err := executeRoot(t, "validate", dir, "--no-color")
	if err == nil {
		t.Fatal("Expected error for a suite with no scenarios")
	}

	if !strings.Contains(output, "✗ Validation failed") {
		t.Errorf("Expected validation failed message, got: %s", output)
	}
	if !strings.Contains(output, "has no scenarios") {
		t.Errorf("Expected cause in output, got: %s", output)
	}
	if !strings.Contains(output, "Found 1 validation error(s)!") {
		t.Errorf("Expected error count, got: %s", output)
	}
}

func TestValidateCommand_BuiltinNameCollision(t *testing.T) {
	dir := writeSuiteDir(t, map[string]string{
		"build.yaml": `name: build
scenarios:
  - name: Shadowing
    steps:
      - action: clean
`,
	})

	output, err := executeRoot(t, "validate", dir, "--no-color")
	if err == nil {
		t.Fatal("Expected error for a suite shadowing a builtin name")
	}

	if !strings.Contains(output, "already registered") {
		t.Errorf("Expected duplicate name error, got: %s", output)
	}
}

func TestValidateCommand_DuplicateScenarioNames(t *testing.T) {
	dir := writeSuiteDir(t, map[string]string{
		"dup.yaml": `name: dup
scenarios:
  - name: Same
    steps:
      - action: clean
  - name: Same
    steps:
      - action: clean
`,
	})

	output, err := executeRoot(t, "validate", dir, "--no-color")
	if err == nil {
		t.Fatal("Expected error for duplicate scenario names")
	}
	if !strings.Contains(output, "duplicate scenario name") {
		t.Errorf("Expected duplicate scenario error, got: %s", output)
	}
}

func TestValidateCommand_SingleFile(t *testing.T) {
	dir := writeSuiteDir(t, map[string]string{
		"nightly.yaml": nightlySuiteYAML,
	})

	output, err := executeRoot(t, "validate", filepath.Join(dir, "nightly.yaml"), "--no-color")
	if err != nil {
		t.Fatalf("Execute() returned error for valid file: %v", err)
	}
	if !strings.Contains(output, `suite "nightly"`) {
		t.Errorf("Expected suite line, got: %s", output)
	}
}

func TestValidateCommand_MissingPath(t *testing.T) {
	output, err := executeRoot(t, "validate", filepath.Join(t.TempDir(), "absent"), "--no-color")
	if err == nil {
		t.Fatal("Expected error for a missing path")
	}
	if !strings.Contains(output, "failed to access") {
		t.Errorf("Expected access error in output, got: %s", output)
	}
}

func TestValidateCommand_BadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: shout\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := executeRoot(t, "validate", "--config", configPath, "--no-color")
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if !strings.Contains(output, "invalid log_level") {
		t.Errorf("Expected log level error, got: %s", output)
	}
}

func TestValidateCommand_IgnoredFilesWarning(t *testing.T) {
	dir := writeSuiteDir(t, map[string]string{
		"nightly.yaml": nightlySuiteYAML,
		"notes.txt":    "not a suite",
	})

	output, err := executeRoot(t, "validate", dir, "--no-color")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(output, "notes.txt") {
		t.Errorf("Expected ignored file warning to name notes.txt, got: %s", output)
	}
}
