package scenario

import (
	"strings"
	"testing"
)

// Test documents use ~~~ code fences so they can live in raw string
// literals; goldmark treats them the same as backtick fences.

func TestParseMarkdownSuite(t *testing.T) {
	markdown := `---
name: smoke
label: Smoke tests
arch_sensitive: true
---

# Smoke suite

### File: dune-project

~~~
(lang dune 3.7)
~~~

## Scenario: Hello build

**Title**: Hello world executable
**Pass label**: hello build + run
**Fail label**: hello

### File: hello/dune

~~~
(executable (name hello))
~~~

### File: hello/hello.ml

~~~ocaml
let () = print_endline "hi"
~~~

### Steps

- build hello/hello.exe
- run ./_build/default/hello/hello.exe expect "hi"

## Scenario: Cleanup

### Steps

- clean
`

	parser := NewMarkdownParser()
	suite, err := parser.Parse(strings.NewReader(markdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}

	if suite.Name != "smoke" {
		t.Errorf("Name = %q, want %q", suite.Name, "smoke")
	}
	if suite.Label != "Smoke tests" {
		t.Errorf("Label = %q, want %q", suite.Label, "Smoke tests")
	}
	if !suite.ArchSensitive {
		t.Error("ArchSensitive = false, want true")
	}

	// File heading before the first scenario becomes a project file
	if len(suite.ProjectFiles) != 1 {
		t.Fatalf("got %d project files, want 1", len(suite.ProjectFiles))
	}
	if suite.ProjectFiles[0].Path != "dune-project" {
		t.Errorf("project file path = %q", suite.ProjectFiles[0].Path)
	}
	if strings.TrimSpace(suite.ProjectFiles[0].Content) != "(lang dune 3.7)" {
		t.Errorf("project file content = %q", suite.ProjectFiles[0].Content)
	}

	if len(suite.Scenarios) != 2 {
		t.Fatalf("got %d scenarios, want 2", len(suite.Scenarios))
	}

	hello := suite.Scenarios[0]
	if hello.Name != "Hello build" {
		t.Errorf("scenario name = %q", hello.Name)
	}
	if hello.Title != "Hello world executable" {
		t.Errorf("Title = %q", hello.Title)
	}
	if hello.PassLabel != "hello build + run" {
		t.Errorf("PassLabel = %q", hello.PassLabel)
	}
	if hello.FailLabel != "hello" {
		t.Errorf("FailLabel = %q", hello.FailLabel)
	}

	if len(hello.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(hello.Files))
	}
	if hello.Files[0].Path != "hello/dune" {
		t.Errorf("Files[0].Path = %q", hello.Files[0].Path)
	}
	if strings.TrimSpace(hello.Files[1].Content) != `let () = print_endline "hi"` {
		t.Errorf("Files[1].Content = %q", hello.Files[1].Content)
	}

	if len(hello.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(hello.Steps))
	}
	if hello.Steps[0].Action != ActionBuild || hello.Steps[0].Target != "hello/hello.exe" {
		t.Errorf("Steps[0] = %+v", hello.Steps[0])
	}
	if hello.Steps[1].Action != ActionRun || hello.Steps[1].Expect != "hi" {
		t.Errorf("Steps[1] = %+v", hello.Steps[1])
	}

	cleanup := suite.Scenarios[1]
	if cleanup.Name != "Cleanup" {
		t.Errorf("second scenario name = %q", cleanup.Name)
	}
	if len(cleanup.Steps) != 1 || cleanup.Steps[0].Action != ActionClean {
		t.Errorf("cleanup steps = %+v", cleanup.Steps)
	}
}

func TestParseMarkdownDefaults(t *testing.T) {
	markdown := `---
name: tiny
---

## Scenario: Only build

### Steps

- build lib/main.exe
`

	suite, err := LoadMarkdown([]byte(markdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}

	if suite.Label != "tiny" {
		t.Errorf("Label = %q, want name fallback", suite.Label)
	}
	if suite.ArchSensitive {
		t.Error("ArchSensitive = true, want false for user suites")
	}
	// No File headings at all, the default dune-project is injected
	if len(suite.ProjectFiles) != 1 || suite.ProjectFiles[0].Content != DefaultDuneProject {
		t.Errorf("ProjectFiles = %v, want injected default", suite.ProjectFiles)
	}
	sc := suite.Scenarios[0]
	if sc.HeaderTitle() != "Only build" {
		t.Errorf("HeaderTitle() = %q, want name fallback", sc.HeaderTitle())
	}
}

func TestParseMarkdownProseCodeBlockSkipped(t *testing.T) {
	markdown := `---
name: prose
---

Example of what a dune file looks like:

~~~
(executable (name demo))
~~~

## Scenario: Build

### Steps

- build demo/demo.exe
`

	suite, err := LoadMarkdown([]byte(markdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}

	// The fenced block has no File heading, so it is not a fixture
	if len(suite.ProjectFiles) != 1 || suite.ProjectFiles[0].Path != DuneProjectFile {
		t.Errorf("ProjectFiles = %v, want only injected dune-project", suite.ProjectFiles)
	}
}

func TestParseMarkdownSectionEndsScenario(t *testing.T) {
	markdown := `---
name: sectioned
---

## Scenario: First

### Steps

- build a/a.exe

## Notes

This section is not a scenario.

## Scenario: Second

### Steps

- clean
`

	suite, err := LoadMarkdown([]byte(markdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}

	if len(suite.Scenarios) != 2 {
		t.Fatalf("got %d scenarios, want 2", len(suite.Scenarios))
	}
	if suite.Scenarios[0].Name != "First" || suite.Scenarios[1].Name != "Second" {
		t.Errorf("scenario names = %q, %q", suite.Scenarios[0].Name, suite.Scenarios[1].Name)
	}
}

func TestParseMarkdownFileHeadingWithoutCodeBlock(t *testing.T) {
	markdown := `---
name: broken
---

## Scenario: Build

### File: lib/dune

### Steps

- build lib/main.exe
`

	_, err := LoadMarkdown([]byte(markdown))
	if err == nil {
		t.Fatal("expected error for file heading without code block")
	}
	if !strings.Contains(err.Error(), "has no code block") {
		t.Errorf("error = %v, want missing code block message", err)
	}
}

func TestParseMarkdownStepsOutsideScenario(t *testing.T) {
	markdown := `---
name: broken
---

### Steps

- build lib/main.exe
`

	_, err := LoadMarkdown([]byte(markdown))
	if err == nil {
		t.Fatal("expected error for steps outside a scenario")
	}
	if !strings.Contains(err.Error(), "outside a scenario") {
		t.Errorf("error = %v, want outside-scenario message", err)
	}
}

func TestParseMarkdownUnrecognizedStep(t *testing.T) {
	markdown := `---
name: broken
---

## Scenario: Build

### Steps

- compile lib/main.exe
`

	_, err := LoadMarkdown([]byte(markdown))
	if err == nil {
		t.Fatal("expected error for unrecognized step")
	}
	if !strings.Contains(err.Error(), "unrecognized step") {
		t.Errorf("error = %v, want unrecognized step message", err)
	}
	if !strings.Contains(err.Error(), "Build") {
		t.Errorf("error = %v, want scenario name", err)
	}
}

func TestParseMarkdownScenarioHeadingWithoutName(t *testing.T) {
	markdown := `---
name: broken
---

## Scenario:

### Steps

- clean
`

	_, err := LoadMarkdown([]byte(markdown))
	if err == nil {
		t.Fatal("expected error for scenario heading without name")
	}
	if !strings.Contains(err.Error(), "no name") {
		t.Errorf("error = %v, want no-name message", err)
	}
}

func TestParseMarkdownBadFrontmatter(t *testing.T) {
	markdown := `---
name: [unclosed
---

## Scenario: Build
`

	_, err := LoadMarkdown([]byte(markdown))
	if err == nil {
		t.Fatal("expected error for invalid frontmatter")
	}
	if !strings.Contains(err.Error(), "frontmatter") {
		t.Errorf("error = %v, want frontmatter message", err)
	}
}

func TestParseMarkdownMissingFrontmatter(t *testing.T) {
	markdown := `## Scenario: Build

### Steps

- clean
`

	// Without frontmatter there is no suite name, so validation fails
	_, err := LoadMarkdown([]byte(markdown))
	if err == nil {
		t.Fatal("expected error for suite without a name")
	}
	if !strings.Contains(err.Error(), "name cannot be empty") {
		t.Errorf("error = %v, want empty-name message", err)
	}
}

func TestParseStepLine(t *testing.T) {
	tests := []struct {
		line    string
		want    Step
		wantErr bool
	}{
		{
			line: "build simple_byte/hello.bc",
			want: Step{Action: ActionBuild, Target: "simple_byte/hello.bc"},
		},
		{
			line: `run ./_build/default/simple_byte/hello.bc expect "Hello from dune"`,
			want: Step{Action: ActionRun, Target: "./_build/default/simple_byte/hello.bc", Expect: "Hello from dune"},
		},
		{
			line: "run ./_build/default/a/a.exe",
			want: Step{Action: ActionRun, Target: "./_build/default/a/a.exe"},
		},
		{
			line: "  clean  ",
			want: Step{Action: ActionClean},
		},
		{
			line:    "build",
			wantErr: true,
		},
		{
			line:    "deploy prod",
			wantErr: true,
		},
		{
			line:    `run a b expect "x"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		got, err := parseStepLine(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseStepLine(%q) succeeded, want error", tt.line)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseStepLine(%q) failed: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseStepLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestExtractFrontmatter(t *testing.T) {
	body, fm := extractFrontmatter([]byte("---\nname: x\n---\nbody text\n"))
	if string(fm) != "name: x" {
		t.Errorf("frontmatter = %q, want %q", fm, "name: x")
	}
	if !strings.Contains(string(body), "body text") {
		t.Errorf("body = %q, want body text", body)
	}

	content := []byte("no frontmatter here\n")
	body, fm = extractFrontmatter(content)
	if fm != nil {
		t.Errorf("frontmatter = %q, want nil", fm)
	}
	if string(body) != string(content) {
		t.Errorf("body = %q, want unchanged content", body)
	}

	// Unclosed delimiter leaves the document alone
	content = []byte("---\nname: x\nbody\n")
	body, fm = extractFrontmatter(content)
	if fm != nil {
		t.Errorf("frontmatter = %q, want nil for unclosed delimiter", fm)
	}
	if string(body) != string(content) {
		t.Errorf("body = %q, want unchanged content", body)
	}
}
