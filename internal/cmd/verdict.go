package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keller/dunesmoke/internal/display"
	"github.com/keller/dunesmoke/internal/policy"
	"github.com/keller/dunesmoke/internal/toolchain"
)

// NewVerdictCommand creates the verdict command
func NewVerdictCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verdict",
		Short: "Classify recorded scenario outcomes without running anything",
		Long: `Classify a recorded set of scenario outcomes against a toolchain
version and target architecture, using the same rules the run command
applies. Nothing is executed; this lets outside runners feed their own
pass/fail results in and reuse the exit code contract.

The outcomes file is YAML or JSON, either a bare list or under an
"outcomes" key:

  outcomes:
    - name: Bytecode build
      passed: true
    - name: Native build
      passed: false

Pass "-" to read outcomes from stdin.

The exit code is 0 for PASS, 0 for KNOWN_ISSUE (failures on OCaml 5.3.x
on an affected architecture, with --arch-sensitive), and 1 for
HARD_FAILURE.

Examples:
  dunesmoke verdict --version 5.3.0 --arch aarch64 --arch-sensitive --outcomes results.yaml
  ci-runner --report-json | dunesmoke verdict --version 5.2.1 --outcomes -`,
		Args: cobra.NoArgs,
		RunE: verdictCommand,
	}

	cmd.Flags().String("outcomes", "", "Path to the outcomes file, or - for stdin (required)")
	cmd.Flags().String("version", "", "OCaml toolchain version the outcomes were produced on (required)")
	cmd.Flags().String("arch", "", "Target architecture (default: detected host architecture)")
	cmd.Flags().Bool("arch-sensitive", false, "Declare the outcomes architecture-sensitive")
	cmd.Flags().String("label", "Recorded outcomes", "Label used in the verdict annotation")

	cmd.MarkFlagRequired("outcomes")
	cmd.MarkFlagRequired("version")

	return cmd
}

// verdictCommand implements the verdict command logic
func verdictCommand(cmd *cobra.Command, args []string) error {
	outcomesPath, _ := cmd.Flags().GetString("outcomes")
	version, _ := cmd.Flags().GetString("version")
	arch, _ := cmd.Flags().GetString("arch")
	archSensitive, _ := cmd.Flags().GetBool("arch-sensitive")
	label, _ := cmd.Flags().GetString("label")

	arch = toolchain.DetectArch(arch)

	outcomes, err := readOutcomes(cmd.InOrStdin(), outcomesPath)
	if err != nil {
		return err
	}

	verdict := policy.Evaluate(outcomes, version, arch, archSensitive)

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color.NoColor = true
	}
	colorOutput := !color.NoColor && isatty.IsTerminal(os.Stdout.Fd())
	printer := display.NewPrinter(cmd.OutOrStdout(), colorOutput)

	for _, outcome := range outcomes {
		printer.ScenarioResult(outcome.Passed, outcome.Name)
	}

	if verdict.Classification == policy.Pass {
		fmt.Fprintf(cmd.OutOrStdout(), "\nPASS: all %d outcome(s) passed\n", len(outcomes))
	} else {
		printer.Verdict(verdict, label)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Classification: %s\n", verdict.Classification)

	if verdict.Classification == policy.HardFailure {
		return fmt.Errorf("%d of %d outcome(s) failed", len(verdict.Failed), len(outcomes))
	}
	return nil
}

// readOutcomes loads and parses an outcomes file. "-" reads from stdin.
func readOutcomes(stdin io.Reader, path string) ([]policy.Outcome, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read outcomes from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read outcomes file: %w", err)
		}
	}
	return parseOutcomes(data)
}

// parseOutcomes decodes outcomes from YAML or JSON. JSON documents are
// parsed by the YAML decoder directly. Both a bare list and a document
// with an "outcomes" key are accepted.
func parseOutcomes(data []byte) ([]policy.Outcome, error) {
	var wrapper struct {
		Outcomes []policy.Outcome `yaml:"outcomes" json:"outcomes"`
	}
	var list []policy.Outcome
	if err := yaml.Unmarshal(data, &wrapper); err == nil && wrapper.Outcomes != nil {
		list = wrapper.Outcomes
	} else if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse outcomes: %w", err)
	}

	for i, outcome := range list {
		if outcome.Name == "" {
			return nil, fmt.Errorf("outcome %d has no name", i+1)
		}
	}
	return list, nil
}
