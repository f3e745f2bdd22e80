// Package policy decides the final signal of a test run. It classifies a
// completed set of scenario outcomes as a pass, a hard failure, or a known
// issue, applying the one narrow downgrade this harness carries: failures on
// an OCaml 5.3.x toolchain on an architecture covered by the documented GC
// defect do not fail the run, provided the caller declared the failure class
// architecture-sensitive.
//
// Evaluate is a pure function over an immutable snapshot. It performs no
// I/O, reads no environment, and never retries anything; collecting
// outcomes and acting on the verdict both belong to the caller.
package policy

import (
	"fmt"
	"strings"

	"github.com/keller/dunesmoke/internal/toolchain"
)

// Classification labels the final signal of a run.
type Classification string

const (
	// Pass means every scenario passed.
	Pass Classification = "PASS"
	// KnownIssue means at least one scenario failed but the failures are
	// covered by the documented 5.3 GC defect and do not fail the run.
	KnownIssue Classification = "KNOWN_ISSUE"
	// HardFailure means at least one scenario failed with no covering
	// known issue.
	HardFailure Classification = "HARD_FAILURE"
)

// Process exit codes derived from a classification.
const (
	ExitPass        = 0
	ExitHardFailure = 1
)

// Outcome records the result of one completed scenario. Outcomes are
// immutable once created and are aggregated in completion order.
type Outcome struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
}

// Verdict is the final classification and process signal for a run.
// It is always derived from outcomes plus the toolchain context; stores and
// artifacts may record a verdict but are never its source of truth.
type Verdict struct {
	Classification Classification `json:"classification"`
	ExitCode       int            `json:"exit_code"`
	// Failed lists the names of failing scenarios in completion order.
	Failed        []string `json:"failed,omitempty"`
	Version       string   `json:"toolchain_version"`
	Arch          string   `json:"architecture"`
	ArchSensitive bool     `json:"arch_sensitive"`
}

// Evaluate classifies a completed run.
//
// If every outcome passed (an empty set counts as all passed), the verdict
// is Pass with exit code 0 regardless of version or architecture. If any
// outcome failed, the verdict is KnownIssue with exit code 0 exactly when
// archSensitive is true, the version parses into the 5.3 series, and arch
// is in the affected set; every other failing combination is a HardFailure
// with exit code 1. A version string that does not parse never qualifies
// for the downgrade, so a broken version report cannot mask a regression.
func Evaluate(outcomes []Outcome, version, arch string, archSensitive bool) Verdict {
	verdict := Verdict{
		Version:       version,
		Arch:          arch,
		ArchSensitive: archSensitive,
	}

	for _, outcome := range outcomes {
		if !outcome.Passed {
			verdict.Failed = append(verdict.Failed, outcome.Name)
		}
	}

	if len(verdict.Failed) == 0 {
		verdict.Classification = Pass
		verdict.ExitCode = ExitPass
		return verdict
	}

	if archSensitive && defectSeries(version) && toolchain.AffectedArchitecture(arch) {
		verdict.Classification = KnownIssue
		verdict.ExitCode = ExitPass
		return verdict
	}

	verdict.Classification = HardFailure
	verdict.ExitCode = ExitHardFailure
	return verdict
}

// defectSeries reports whether the raw version string parses into the 5.3
// series. Unparseable strings report false (fail closed).
func defectSeries(raw string) bool {
	v, err := toolchain.ParseVersion(raw)
	if err != nil {
		return false
	}
	return v.InSeries(5, 3)
}

// Summary composes the failure summary for a suite label, naming every
// failing scenario, e.g. "Build tests (Native build, Dune clean)". A
// verdict with no failures reports the label alone.
func (v Verdict) Summary(label string) string {
	if len(v.Failed) == 0 {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, strings.Join(v.Failed, ", "))
}

// Annotation returns the console lines explaining a non-passing
// classification: the failing scenarios, the toolchain version, and the
// architecture. A passing verdict has no annotation.
func (v Verdict) Annotation(label string) []string {
	switch v.Classification {
	case KnownIssue:
		return []string{
			fmt.Sprintf("KNOWN ISSUE: %s", v.Summary(label)),
			fmt.Sprintf("OCaml %s on %s: known bug, documented but not failing the build", v.Version, v.Arch),
		}
	case HardFailure:
		return []string{
			fmt.Sprintf("FAILED: %s", v.Summary(label)),
			fmt.Sprintf("OCaml %s on %s: failures are treated as real errors", v.Version, v.Arch),
		}
	default:
		return nil
	}
}
