package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/keller/dunesmoke/internal/policy"
)

// Printer renders the scenario result stream of a harness run. It numbers
// scenario headers within each suite and colors status tags when color
// output is enabled. A nil writer discards everything.
type Printer struct {
	writer      io.Writer
	colorOutput bool
	suites      int
	testNum     int
}

// NewPrinter creates a Printer writing to w. colorOutput enables ANSI
// colors; pass false for plain output.
func NewPrinter(w io.Writer, colorOutput bool) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{
		writer:      w,
		colorOutput: colorOutput,
	}
}

// BeginSuite prints the suite banner and restarts scenario numbering.
// Suites after the first are separated by a blank line. An empty banner
// still restarts numbering but prints nothing.
func (p *Printer) BeginSuite(banner string) {
	p.testNum = 0
	p.suites++
	if banner == "" {
		return
	}
	if p.suites > 1 {
		fmt.Fprintln(p.writer)
	}
	if p.colorOutput {
		banner = color.New(color.Bold).Sprint(banner)
	}
	fmt.Fprintf(p.writer, "%s\n", banner)
}

// ToolchainInfo prints the toolchain prelude under the suite banner.
// The dune version line is omitted when unknown.
func (p *Printer) ToolchainInfo(ocamlVersion, duneVersion, arch string) {
	fmt.Fprintf(p.writer, "OCaml version: %s\n", ocamlVersion)
	if duneVersion != "" {
		fmt.Fprintf(p.writer, "Dune version: %s\n", duneVersion)
	}
	fmt.Fprintf(p.writer, "Architecture: %s\n", arch)
}

// GCWorkaround announces the runtime parameter applied to every scenario
// subprocess. entry is the full environment entry, e.g. "OCAMLRUNPARAM=s=16M".
func (p *Printer) GCWorkaround(ocamlVersion, entry string) {
	value := entry
	if i := strings.Index(entry, "="); i >= 0 {
		value = entry[i+1:]
	}
	line := fmt.Sprintf("Applying OCaml %s GC workaround (%s)", ocamlVersion, value)
	if p.colorOutput {
		line = color.YellowString("%s", line)
	}
	fmt.Fprintf(p.writer, "%s\n", line)
}

// ScenarioHeader prints the numbered headline before a scenario runs:
// "=== Test N: <title> ===" preceded by a blank line.
func (p *Printer) ScenarioHeader(title string) {
	p.testNum++
	header := fmt.Sprintf("=== Test %d: %s ===", p.testNum, title)
	if p.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	fmt.Fprintf(p.writer, "\n%s\n", header)
}

// ScenarioResult prints the status line for a completed scenario:
// "[OK] <label>" or "[FAIL] <label>".
func (p *Printer) ScenarioResult(passed bool, label string) {
	tag := "[OK]"
	if !passed {
		tag = "[FAIL]"
	}
	if p.colorOutput {
		if passed {
			tag = color.GreenString("%s", tag)
		} else {
			tag = color.RedString("%s", tag)
		}
	}
	fmt.Fprintf(p.writer, "%s %s\n", tag, label)
}

// StepFailure prints the detail line under a failing scenario.
func (p *Printer) StepFailure(detail string) {
	if detail == "" {
		return
	}
	if p.colorOutput {
		detail = color.RedString("%s", detail)
	}
	fmt.Fprintf(p.writer, "  %s\n", detail)
}

// PassBanner prints the suite's all-passed banner preceded by a blank
// line. An empty banner prints nothing.
func (p *Printer) PassBanner(banner string) {
	if banner == "" {
		return
	}
	if p.colorOutput {
		banner = color.GreenString("%s", banner)
	}
	fmt.Fprintf(p.writer, "\n%s\n", banner)
}

// Verdict prints the annotation block for a non-passing verdict, preceded
// by a blank line. Known issues render in yellow, hard failures in red.
// A passing verdict prints nothing.
func (p *Printer) Verdict(v policy.Verdict, label string) {
	lines := v.Annotation(label)
	if len(lines) == 0 {
		return
	}

	fmt.Fprintln(p.writer)
	for _, line := range lines {
		if p.colorOutput {
			switch v.Classification {
			case policy.KnownIssue:
				line = color.YellowString("%s", line)
			case policy.HardFailure:
				line = color.RedString("%s", line)
			}
		}
		fmt.Fprintf(p.writer, "%s\n", line)
	}
}
