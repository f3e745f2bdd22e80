// Package report builds the run artifact: a machine-readable record of every
// suite and scenario outcome together with the toolchain context and the
// final verdict. Artifacts are written atomically under a file lock so
// concurrent harness invocations sharing an output path never interleave.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/keller/dunesmoke/internal/policy"
)

// ScenarioReport records one scenario's result within a suite.
type ScenarioReport struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`

	// Message carries the failure detail for a failed scenario.
	Message string `json:"message,omitempty"`

	DurationMS int64 `json:"duration_ms"`
}

// SuiteReport records one suite's scenarios and its verdict.
type SuiteReport struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Scenarios []ScenarioReport `json:"scenarios"`
	Verdict   policy.Verdict   `json:"verdict"`
}

// Report is the complete artifact for one harness run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	DuneVersion  string `json:"dune_version,omitempty"`
	OCamlVersion string `json:"ocaml_version"`
	Arch         string `json:"architecture"`

	// GCWorkaround reports whether the 5.3 GC workaround environment was
	// applied to subprocess invocations for this run.
	GCWorkaround bool `json:"gc_workaround_applied"`

	Suites []SuiteReport `json:"suites"`

	// Classification and ExitCode summarize the whole run: the worst
	// suite verdict wins.
	Classification policy.Classification `json:"classification"`
	ExitCode       int                   `json:"exit_code"`
}

// New creates a report with a fresh run ID and the clock started.
func New() *Report {
	return &Report{
		RunID:          uuid.New().String(),
		StartedAt:      time.Now().UTC(),
		Classification: policy.Pass,
	}
}

// AddSuite appends a completed suite and folds its verdict into the run
// classification.
func (r *Report) AddSuite(sr SuiteReport) {
	r.Suites = append(r.Suites, sr)
	r.Classification = worse(r.Classification, sr.Verdict.Classification)
	if sr.Verdict.ExitCode > r.ExitCode {
		r.ExitCode = sr.Verdict.ExitCode
	}
}

// Finish stamps the completion time.
func (r *Report) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// worse returns the more severe of two classifications.
// Severity: HardFailure > KnownIssue > Pass.
func worse(a, b policy.Classification) policy.Classification {
	if a == policy.HardFailure || b == policy.HardFailure {
		return policy.HardFailure
	}
	if a == policy.KnownIssue || b == policy.KnownIssue {
		return policy.KnownIssue
	}
	return policy.Pass
}

// ReadFile loads a previously written JSON artifact.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
