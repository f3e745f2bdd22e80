// Package scenario defines executable build scenarios and the suites that
// group them. A suite owns one scratch dune project; its scenarios run in
// order inside that project, so later scenarios see the build state earlier
// ones left behind.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DuneProjectFile is the project manifest written at the scratch root.
const DuneProjectFile = "dune-project"

// DefaultDuneProject is the manifest content used when a suite does not
// provide its own.
const DefaultDuneProject = "(lang dune 3.0)"

// Step actions.
const (
	ActionBuild = "build"
	ActionRun   = "run"
	ActionClean = "clean"
)

// FixtureFile is a file written into the scratch project before steps run.
type FixtureFile struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// Step is a single action within a scenario.
//
// Actions:
//   - build: `dune build <target>`, fails on non-zero exit
//   - run: execute <target> from the project root, fails on non-zero exit
//     or when Expect is set and missing from the output
//   - clean: `dune clean`, fails on non-zero exit or when _build survives
type Step struct {
	Action string `yaml:"action"`
	Target string `yaml:"target,omitempty"`
	Expect string `yaml:"expect,omitempty"`
}

// Scenario is a named sequence of steps plus the fixture files they need.
type Scenario struct {
	// Name identifies the scenario in verdicts and annotations.
	Name string `yaml:"name"`

	// Title is the headline shown before the scenario runs.
	// Defaults to Name.
	Title string `yaml:"title,omitempty"`

	// PassLabel is the text shown after [OK]. Defaults to Name.
	PassLabel string `yaml:"pass_label,omitempty"`

	// FailLabel is the text shown after [FAIL]. Defaults to Name.
	FailLabel string `yaml:"fail_label,omitempty"`

	Files []FixtureFile `yaml:"files,omitempty"`
	Steps []Step        `yaml:"steps"`
}

// HeaderTitle returns the display headline for the scenario.
func (s *Scenario) HeaderTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// SuccessLabel returns the display label for a passing scenario.
func (s *Scenario) SuccessLabel() string {
	if s.PassLabel != "" {
		return s.PassLabel
	}
	return s.Name
}

// FailureLabel returns the display label for a failing scenario.
func (s *Scenario) FailureLabel() string {
	if s.FailLabel != "" {
		return s.FailLabel
	}
	return s.Name
}

// Suite groups scenarios that share one scratch dune project.
type Suite struct {
	// Name is the suite identifier used on the command line.
	Name string `yaml:"name"`

	// Label names the suite in verdict summaries, e.g. "Build tests".
	// Defaults to Name.
	Label string `yaml:"label,omitempty"`

	// Banner is the headline printed before the suite runs.
	Banner string `yaml:"banner,omitempty"`

	// PassBanner is printed after the suite when every scenario passed.
	PassBanner string `yaml:"pass_banner,omitempty"`

	// TempPrefix names the scratch directory, e.g. "dune_test_".
	// Defaults to "dune_<name>_".
	TempPrefix string `yaml:"temp_prefix,omitempty"`

	// ArchSensitive marks failures as candidates for the known-issue
	// downgrade on affected architectures. User suites default to false;
	// the downgrade only applies when the author opts in.
	ArchSensitive bool `yaml:"arch_sensitive,omitempty"`

	// ProjectFiles are written once at the scratch root before any
	// scenario runs. A dune-project entry is added when missing.
	ProjectFiles []FixtureFile `yaml:"project_files,omitempty"`

	Scenarios []Scenario `yaml:"scenarios"`
}

// Normalize fills defaulted fields in place.
func (s *Suite) Normalize() {
	if s.Label == "" {
		s.Label = s.Name
	}
	if s.TempPrefix == "" {
		s.TempPrefix = "dune_" + sanitizeName(s.Name) + "_"
	}

	hasProject := false
	for _, f := range s.ProjectFiles {
		if f.Path == DuneProjectFile {
			hasProject = true
			break
		}
	}
	if !hasProject {
		s.ProjectFiles = append(s.ProjectFiles, FixtureFile{
			Path:    DuneProjectFile,
			Content: DefaultDuneProject,
		})
	}
}

// Validate checks the suite for structural problems.
// Call Normalize first; Validate does not apply defaults.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite name cannot be empty")
	}
	if strings.ContainsAny(s.Name, " \t\n") {
		return fmt.Errorf("suite name %q cannot contain whitespace", s.Name)
	}
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("suite %q has no scenarios", s.Name)
	}

	for _, f := range s.ProjectFiles {
		if err := validateFixturePath(f.Path); err != nil {
			return fmt.Errorf("suite %q: %w", s.Name, err)
		}
	}

	seen := make(map[string]bool, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("suite %q: %w", s.Name, err)
		}
		if seen[sc.Name] {
			return fmt.Errorf("suite %q: duplicate scenario name %q", s.Name, sc.Name)
		}
		seen[sc.Name] = true
	}

	return nil
}

// Validate checks a single scenario for structural problems.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name cannot be empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}

	paths := make(map[string]bool, len(s.Files))
	for _, f := range s.Files {
		if err := validateFixturePath(f.Path); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		if paths[f.Path] {
			return fmt.Errorf("scenario %q: duplicate fixture path %q", s.Name, f.Path)
		}
		paths[f.Path] = true
	}

	for i, step := range s.Steps {
		switch step.Action {
		case ActionBuild:
			if step.Target == "" {
				return fmt.Errorf("scenario %q: step %d: build requires a target", s.Name, i+1)
			}
		case ActionRun:
			if step.Target == "" {
				return fmt.Errorf("scenario %q: step %d: run requires a target", s.Name, i+1)
			}
		case ActionClean:
			if step.Target != "" {
				return fmt.Errorf("scenario %q: step %d: clean takes no target", s.Name, i+1)
			}
		default:
			return fmt.Errorf("scenario %q: step %d: unknown action %q", s.Name, i+1, step.Action)
		}
	}

	return nil
}

// validateFixturePath rejects paths that would escape the scratch project.
func validateFixturePath(path string) error {
	if path == "" {
		return fmt.Errorf("fixture path cannot be empty")
	}
	if !filepath.IsLocal(path) {
		return fmt.Errorf("fixture path %q must stay inside the project directory", path)
	}
	return nil
}

// sanitizeName maps a suite name onto the [a-z0-9_] alphabet for use in
// temp directory prefixes.
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
