package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/keller/dunesmoke/internal/display"
	"github.com/keller/dunesmoke/internal/scenario"
)

// NewSuitesCommand creates the suites command
func NewSuitesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suites",
		Short: "List builtin and discovered custom suites",
		Long: `List every suite the run command can execute: the builtin suites
plus custom suites discovered in the configured suite directories.

Files in a suite directory that the loader will not pick up (wrong or
missing extension) are reported as warnings.

Examples:
  dunesmoke suites
  dunesmoke suites --suite-dir ci/suites`,
		Args: cobra.NoArgs,
		RunE: suitesCommand,
	}

	cmd.Flags().StringArray("suite-dir", nil, "Directory with custom suite files (repeatable)")

	return cmd
}

// suitesCommand implements the suites command logic
func suitesCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	builtinNames := make(map[string]bool)
	for _, s := range scenario.Builtins() {
		builtinNames[s.Name] = true
	}

	registry, err := buildRegistry(cmd, cfg)
	if err != nil {
		return err
	}

	if cfg.NoColor {
		color.NoColor = true
	}
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)

	fmt.Fprintf(out, "%s\n", bold.Sprint("Builtin suites:"))
	var custom []*scenario.Suite
	for _, s := range registry.Suites() {
		if builtinNames[s.Name] {
			printSuiteLine(out, s)
		} else {
			custom = append(custom, s)
		}
	}

	dirs := append([]string{}, cfg.SuiteDirs...)
	if flagDirs, _ := cmd.Flags().GetStringArray("suite-dir"); len(flagDirs) > 0 {
		dirs = append(dirs, flagDirs...)
	}

	if len(custom) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold.Sprint("Custom suites:"))
		for _, s := range custom {
			printSuiteLine(out, s)
		}
	} else if len(dirs) > 0 {
		fmt.Fprintf(out, "\nNo custom suites found in %v\n", dirs)
	}

	for _, dir := range dirs {
		ignored, err := display.FindIgnoredFiles(dir)
		if err != nil || len(ignored) == 0 {
			continue
		}
		warning := display.WarnIgnoredSuiteFiles(ignored)
		warning.Display(cmd.ErrOrStderr())
	}

	return nil
}

// printSuiteLine prints one aligned listing row for a suite.
func printSuiteLine(out io.Writer, s *scenario.Suite) {
	tag := ""
	if s.ArchSensitive {
		tag = " (arch-sensitive)"
	}
	fmt.Fprintf(out, "  %-14s %-12s %s%s\n", s.Name, scenarioCount(len(s.Scenarios)), s.Label, tag)
}

// scenarioCount formats a scenario count with its unit.
func scenarioCount(n int) string {
	if n == 1 {
		return "1 scenario"
	}
	return fmt.Sprintf("%d scenarios", n)
}
