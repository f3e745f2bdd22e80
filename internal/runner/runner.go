// Package runner executes scenario suites inside scratch dune projects and
// reduces their outcomes to verdicts.
//
// The runner is the collaborator the policy evaluator trusts to supply a
// complete outcome snapshot: every scenario in a suite runs exactly once,
// in declared order, a failing scenario never stops the ones after it, and
// the evaluator is consulted a single time after the last scenario
// finishes. Execution is strictly sequential.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keller/dunesmoke/internal/display"
	"github.com/keller/dunesmoke/internal/fileutil"
	"github.com/keller/dunesmoke/internal/logger"
	"github.com/keller/dunesmoke/internal/policy"
	"github.com/keller/dunesmoke/internal/report"
	"github.com/keller/dunesmoke/internal/scenario"
)

// Step failure causes. These mark a scenario failed and are recorded in
// its message; they never abort the suite.
var (
	ErrBuildFailed      = errors.New("dune build failed")
	ErrRunFailed        = errors.New("binary execution failed")
	ErrUnexpectedOutput = errors.New("unexpected output")
	ErrCleanFailed      = errors.New("dune clean failed")
)

// tailLines bounds how much subprocess output a failure detail carries.
const tailLines = 10

// BuildTool is the subset of the dune invoker the runner drives.
// *dune.Invoker satisfies it; tests substitute fakes.
type BuildTool interface {
	Build(ctx context.Context, dir string, targets ...string) (string, error)
	Clean(ctx context.Context, dir string) (string, error)
	Exec(ctx context.Context, dir, binPath string, args ...string) (string, error)
}

// Toolchain is the immutable toolchain context of a run: read once before
// any scenario executes and passed to the evaluator untouched.
type Toolchain struct {
	// OCamlVersion is the raw compiler version string. It may be
	// unparseable; the policy evaluator fails closed on such strings.
	OCamlVersion string

	// DuneVersion is informational only and never drives policy.
	DuneVersion string

	// Arch is the uname-style target architecture.
	Arch string

	// GCWorkaroundEntry is the OCAMLRUNPARAM entry applied to scenario
	// subprocesses, empty when the 5.3 workaround does not apply. The
	// runner only announces it; injecting it into the subprocess
	// environment is the invoker's job.
	GCWorkaroundEntry string
}

// Runner executes suites one at a time. Each suite gets a fresh scratch
// project directory; the scenarios inside it share that project, so later
// scenarios see the build state earlier ones left behind.
type Runner struct {
	Tool    BuildTool
	Printer *display.Printer
	Logger  logger.Logger

	// KeepTemp preserves scratch projects for debugging.
	KeepTemp bool

	// TempRoot overrides the parent directory for scratch projects.
	// Empty means the system temp directory.
	TempRoot string
}

// RunSuite executes every scenario of a suite and returns the suite report
// carrying per-scenario results and the verdict. Scenario failures are part
// of the report, not errors; the error return covers problems that prevent
// outcomes from being collected at all, such as an unusable scratch
// directory or a canceled context.
func (r *Runner) RunSuite(ctx context.Context, s *scenario.Suite, tc Toolchain) (*report.SuiteReport, error) {
	log := r.logger()
	pr := r.printer()

	pr.BeginSuite(s.Banner)
	pr.ToolchainInfo(tc.OCamlVersion, tc.DuneVersion, tc.Arch)
	if tc.GCWorkaroundEntry != "" {
		pr.GCWorkaround(tc.OCamlVersion, tc.GCWorkaroundEntry)
	}

	projectDir, err := os.MkdirTemp(r.TempRoot, s.TempPrefix)
	if err != nil {
		return nil, fmt.Errorf("create scratch project: %w", err)
	}
	if r.KeepTemp {
		log.LogInfo(fmt.Sprintf("Keeping scratch project %s", projectDir))
	} else {
		defer os.RemoveAll(projectDir)
	}

	for _, f := range s.ProjectFiles {
		if err := fileutil.WriteFileWithDirs(filepath.Join(projectDir, f.Path), []byte(f.Content), 0644); err != nil {
			return nil, fmt.Errorf("write project file: %w", err)
		}
	}

	log.LogSuiteStart(s.Name, len(s.Scenarios))
	suiteStart := time.Now()

	sr := &report.SuiteReport{Name: s.Name, Label: s.Label}
	outcomes := make([]policy.Outcome, 0, len(s.Scenarios))

	for i := range s.Scenarios {
		sc := &s.Scenarios[i]

		pr.ScenarioHeader(sc.HeaderTitle())

		start := time.Now()
		fail, err := r.runScenario(ctx, projectDir, sc)
		duration := time.Since(start)
		if err != nil {
			return nil, err
		}

		passed := fail == nil
		message := ""
		if passed {
			pr.ScenarioResult(true, sc.SuccessLabel())
		} else {
			message = fail.message()
			pr.ScenarioResult(false, sc.FailureLabel())
			pr.StepFailure(fail.Error())
			for _, line := range fail.tail() {
				pr.StepFailure(line)
			}
		}
		log.LogScenarioResult(sc.Name, passed, duration)

		outcomes = append(outcomes, policy.Outcome{Name: sc.Name, Passed: passed})
		sr.Scenarios = append(sr.Scenarios, report.ScenarioReport{
			Name:       sc.Name,
			Passed:     passed,
			Message:    message,
			DurationMS: duration.Milliseconds(),
		})
	}

	// The one and only evaluation for this suite.
	sr.Verdict = policy.Evaluate(outcomes, tc.OCamlVersion, tc.Arch, s.ArchSensitive)
	log.LogSuiteComplete(s.Name, time.Since(suiteStart))

	switch sr.Verdict.Classification {
	case policy.Pass:
		pr.PassBanner(s.PassBanner)
	case policy.KnownIssue:
		pr.Verdict(sr.Verdict, s.Label)
		log.LogWarn(fmt.Sprintf("Known issue on OCaml %s/%s: %s",
			tc.OCamlVersion, tc.Arch, sr.Verdict.Summary(s.Label)))
	default:
		pr.Verdict(sr.Verdict, s.Label)
	}

	return sr, nil
}

// runScenario writes the scenario's fixtures and walks its steps in order.
// The first failing step decides the failure; later steps are skipped
// because they depend on the build state the failed step should have
// produced. The error return is reserved for infrastructure problems.
func (r *Runner) runScenario(ctx context.Context, projectDir string, sc *scenario.Scenario) (*stepFailure, error) {
	for _, f := range sc.Files {
		if err := fileutil.WriteFileWithDirs(filepath.Join(projectDir, f.Path), []byte(f.Content), 0644); err != nil {
			return nil, fmt.Errorf("write fixture for %q: %w", sc.Name, err)
		}
	}

	for _, step := range sc.Steps {
		fail := r.runStep(ctx, projectDir, step)
		if fail == nil {
			continue
		}
		// A canceled run context aborts the suite; a per-step timeout
		// from the invoker's own deadline is an ordinary failure.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("scenario %q interrupted: %w", sc.Name, ctx.Err())
		}
		if fail.output != "" {
			r.logger().LogDebug(fmt.Sprintf("scenario %q output:\n%s", sc.Name, strings.TrimSpace(fail.output)))
		}
		return fail, nil
	}

	return nil, nil
}

// runStep executes one step against the scratch project.
func (r *Runner) runStep(ctx context.Context, dir string, step scenario.Step) *stepFailure {
	switch step.Action {
	case scenario.ActionBuild:
		output, err := r.Tool.Build(ctx, dir, step.Target)
		if err != nil {
			return &stepFailure{
				err:    fmt.Errorf("%w: %s: %v", ErrBuildFailed, step.Target, err),
				output: output,
			}
		}

	case scenario.ActionRun:
		output, err := r.Tool.Exec(ctx, dir, step.Target)
		if err != nil {
			return &stepFailure{
				err:    fmt.Errorf("%w: %s: %v", ErrRunFailed, step.Target, err),
				output: output,
			}
		}
		if step.Expect != "" && !strings.Contains(output, step.Expect) {
			return &stepFailure{
				err:    fmt.Errorf("%w: %s: want %q in output", ErrUnexpectedOutput, step.Target, step.Expect),
				output: output,
			}
		}

	case scenario.ActionClean:
		output, err := r.Tool.Clean(ctx, dir)
		if err != nil {
			return &stepFailure{
				err:    fmt.Errorf("%w: %v", ErrCleanFailed, err),
				output: output,
			}
		}
		buildDir := filepath.Join(dir, "_build")
		if _, err := os.Stat(buildDir); err == nil {
			return &stepFailure{err: fmt.Errorf("%w: _build still exists after clean", ErrCleanFailed)}
		} else if !os.IsNotExist(err) {
			return &stepFailure{err: fmt.Errorf("%w: stat _build: %v", ErrCleanFailed, err)}
		}

	default:
		// Suite validation rejects unknown actions before suites reach
		// the runner.
		return &stepFailure{err: fmt.Errorf("unknown step action %q", step.Action)}
	}

	return nil
}

func (r *Runner) logger() logger.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.NewNoOpLogger()
}

func (r *Runner) printer() *display.Printer {
	if r.Printer != nil {
		return r.Printer
	}
	return display.NewPrinter(nil, false)
}

// stepFailure describes a failing step together with the subprocess output
// it produced.
type stepFailure struct {
	err    error
	output string
}

func (f *stepFailure) Error() string { return f.err.Error() }

func (f *stepFailure) Unwrap() error { return f.err }

// tail returns the last few non-blank output lines for console display.
func (f *stepFailure) tail() []string {
	trimmed := strings.TrimSpace(f.output)
	if trimmed == "" {
		return nil
	}

	lines := strings.Split(trimmed, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimRight(line, " \t"))
		}
	}
	if len(kept) > tailLines {
		kept = kept[len(kept)-tailLines:]
	}
	return kept
}

// message flattens the failure for reports: the step error first, then the
// output tail.
func (f *stepFailure) message() string {
	tail := f.tail()
	if len(tail) == 0 {
		return f.Error()
	}
	return f.Error() + "\n" + strings.Join(tail, "\n")
}
