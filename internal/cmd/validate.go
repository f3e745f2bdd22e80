package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keller/dunesmoke/internal/config"
	"github.com/keller/dunesmoke/internal/display"
	"github.com/keller/dunesmoke/internal/fileutil"
	"github.com/keller/dunesmoke/internal/scenario"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [suite-file-or-directory...]",
		Short: "Validate configuration and suite files without running anything",
		Long: `Parse and validate the configuration file and suite definitions,
checking for:
  - Configuration value errors (timeouts, log level, history settings)
  - Suite structure (names, scenarios, steps, fixture paths)
  - Name collisions with builtin or other custom suites

Without arguments the configured suite directories are validated.
Arguments may be individual suite files or directories.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateWithOutput(cmd, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArray("suite-dir", nil, "Directory with custom suite files (repeatable)")

	return cmd
}

// validateWithOutput validates config and suites with a custom output writer
func validateWithOutput(cmd *cobra.Command, args []string, output io.Writer) error {
	var errors []string

	cfg := validateConfig(cmd, output, &errors)

	// Suite names must be unique across builtins and every custom file, so
	// all files register into one shared registry.
	registry := scenario.DefaultRegistry()

	paths := append([]string{}, args...)
	if len(paths) == 0 && cfg != nil {
		paths = append(paths, cfg.SuiteDirs...)
	}
	if flagDirs, _ := cmd.Flags().GetStringArray("suite-dir"); len(flagDirs) > 0 {
		paths = append(paths, flagDirs...)
	}

	suiteFiles, ignoredByDir := collectSuiteFiles(paths, output, &errors)

	for dir, ignored := range ignoredByDir {
		warning := display.WarnIgnoredSuiteFiles(ignored)
		warning.Title = fmt.Sprintf("Unsupported files in %s", dir)
		warning.Display(output)
	}

	validated := 0
	for _, path := range suiteFiles {
		s, err := scenario.LoadFile(path)
		if err != nil {
			errMsg := fmt.Sprintf("%s: %v", path, err)
			errors = append(errors, errMsg)
			fmt.Fprintf(output, "✗ %s\n", errMsg)
			continue
		}
		if err := registry.Register(s); err != nil {
			errMsg := fmt.Sprintf("%s: %v", path, err)
			errors = append(errors, errMsg)
			fmt.Fprintf(output, "✗ %s\n", errMsg)
			continue
		}
		fmt.Fprintf(output, "✓ %s: suite %q (%s)\n", path, s.Name, scenarioCount(len(s.Scenarios)))
		validated++
	}

	if len(suiteFiles) > 0 {
		fmt.Fprintf(output, "✓ Validated %d of %d suite file(s)\n", validated, len(suiteFiles))
	}

	if len(errors) == 0 {
		fmt.Fprintf(output, "\n✓ Everything is valid!\n")
		return nil
	}

	fmt.Fprintf(output, "\n✗ Validation failed\n")
	for _, errMsg := range errors {
		fmt.Fprintf(output, "  ✗ %s\n", errMsg)
	}
	fmt.Fprintf(output, "\nFound %d validation error(s)!\n", len(errors))

	return fmt.Errorf("validation failed with %d error(s)", len(errors))
}

// validateConfig loads and validates the configuration, reporting the
// result to output. Returns the config when usable, nil otherwise.
func validateConfig(cmd *cobra.Command, output io.Writer, errors *[]string) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	label := configPath
	if label == "" {
		label = ".dunesmoke/config.yaml"
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		errMsg := fmt.Sprintf("%s: %v", label, err)
		*errors = append(*errors, errMsg)
		fmt.Fprintf(output, "✗ %s\n", errMsg)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		errMsg := fmt.Sprintf("%s: %v", label, err)
		*errors = append(*errors, errMsg)
		fmt.Fprintf(output, "✗ %s\n", errMsg)
		return cfg
	}

	fmt.Fprintf(output, "✓ Configuration valid (%s)\n", label)
	return cfg
}

// collectSuiteFiles expands the given paths into individual suite files.
// Directories are scanned recursively; their skipped files are collected
// for the ignored-file warning.
func collectSuiteFiles(paths []string, output io.Writer, errors *[]string) ([]string, map[string][]string) {
	var suiteFiles []string
	ignoredByDir := make(map[string][]string)
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			errMsg := fmt.Sprintf("failed to access %s: %v", path, err)
			*errors = append(*errors, errMsg)
			fmt.Fprintf(output, "✗ %s\n", errMsg)
			continue
		}

		if !info.IsDir() {
			if !seen[path] {
				suiteFiles = append(suiteFiles, path)
				seen[path] = true
			}
			continue
		}

		files, err := fileutil.FindSuiteFiles(path)
		if err != nil {
			errMsg := fmt.Sprintf("failed to scan %s: %v", path, err)
			*errors = append(*errors, errMsg)
			fmt.Fprintf(output, "✗ %s\n", errMsg)
			continue
		}
		for _, f := range files {
			if !seen[f] {
				suiteFiles = append(suiteFiles, f)
				seen[f] = true
			}
		}

		if ignored, err := display.FindIgnoredFiles(path); err == nil && len(ignored) > 0 {
			ignoredByDir[path] = ignored
		}
	}

	return suiteFiles, ignoredByDir
}
