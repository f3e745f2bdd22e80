package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/keller/dunesmoke/internal/config"
	"github.com/keller/dunesmoke/internal/display"
	"github.com/keller/dunesmoke/internal/dune"
	"github.com/keller/dunesmoke/internal/history"
	"github.com/keller/dunesmoke/internal/logger"
	"github.com/keller/dunesmoke/internal/policy"
	"github.com/keller/dunesmoke/internal/report"
	"github.com/keller/dunesmoke/internal/runner"
	"github.com/keller/dunesmoke/internal/scenario"
	"github.com/keller/dunesmoke/internal/toolchain"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [suite...]",
		Short: "Run build smoke suites against the installed toolchain",
		Long: `Run one or more scenario suites against the installed dune/OCaml
toolchain. Without arguments every registered suite runs: the builtin
"build" and "consistency" suites plus any custom suites found in the
configured suite directories.

Each suite gets a fresh scratch project in a temporary directory. Its
scenarios run in order: fixture files are written, targets are built with
"dune build", produced binaries are executed, and their output is checked
for expected text. A failing scenario never stops the ones after it.

The process exit code is the verdict of the worst suite: 0 when everything
passed or every failure is covered by the OCaml 5.3 GC known issue, 1 for
any other failure.

Configuration is loaded from .dunesmoke/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Run all suites
  dunesmoke run

  # Run only the builtin build suite
  dunesmoke run build

  # Run custom suites from a directory alongside the builtins
  dunesmoke run --suite-dir ci/suites

  # Pin the toolchain facts instead of probing them
  dunesmoke run --ocaml-version 5.3.0 --arch aarch64

  # Other options
  dunesmoke run --dune /opt/dune/bin/dune   # Explicit dune binary
  dunesmoke run --build-timeout 10m         # Bound each dune invocation
  dunesmoke run --artifact ci-result.json   # Write the JSON run artifact
  dunesmoke run --keep-temp                 # Keep scratch projects around`,
		Args: cobra.ArbitraryArgs,
		RunE: runCommand,
	}

	// Add flags
	cmd.Flags().String("dune", "", "Path to the dune binary")
	cmd.Flags().Duration("build-timeout", 0, "Maximum time for a single dune invocation (e.g. 5m)")
	cmd.Flags().Duration("run-timeout", 0, "Maximum time for running a produced binary (e.g. 1m)")
	cmd.Flags().String("arch", "", "Target architecture override (e.g. aarch64, x86_64)")
	cmd.Flags().String("ocaml-version", "", "OCaml compiler version override")
	cmd.Flags().StringArray("suite-dir", nil, "Directory with custom suite files (repeatable)")
	cmd.Flags().String("artifact", "", "Path for the run artifact (json or markdown by extension)")
	cmd.Flags().Bool("keep-temp", false, "Keep scratch project directories for debugging")
	cmd.Flags().Bool("history", false, "Record this run in the history database")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().String("log-dir", "", "Directory for detailed run logs")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	if on, _ := cmd.Flags().GetBool("history"); on {
		cfg.History.Enabled = true
	}
	if off, _ := cmd.Flags().GetBool("no-history"); off {
		cfg.History.Enabled = false
	}

	// Preflight: a missing dune binary is an error exit, not a verdict.
	if _, err := exec.LookPath(cfg.DuneBinary); err != nil {
		return fmt.Errorf("dune binary %q not found: %w", cfg.DuneBinary, err)
	}

	registry, err := buildRegistry(cmd, cfg)
	if err != nil {
		return err
	}

	suites, err := registry.Select(args)
	if err != nil {
		return err
	}

	if cfg.NoColor {
		color.NoColor = true
	}
	colorOutput := !color.NoColor && isatty.IsTerminal(os.Stdout.Fd())

	consoleLog := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if !colorOutput {
		consoleLog.DisableColor()
	}
	var log logger.Logger = consoleLog
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		log = logger.Multi(consoleLog, fileLog)
	}

	invoker := dune.NewInvoker()
	invoker.DuneBinary = cfg.DuneBinary
	invoker.BuildTimeout = cfg.BuildTimeout
	invoker.RunTimeout = cfg.RunTimeout

	// An interrupt cancels the in-flight subprocess and aborts the run.
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tc, err := probeToolchain(ctx, cfg, invoker, log)
	if err != nil {
		return err
	}

	// The workaround env reaches every scenario subprocess through the
	// invoker; the harness's own environment stays untouched.
	if tc.GCWorkaroundEntry != "" {
		invoker.ExtraEnv = append(invoker.ExtraEnv, tc.GCWorkaroundEntry)
	}

	run := &runner.Runner{
		Tool:     invoker,
		Printer:  display.NewPrinter(cmd.OutOrStdout(), colorOutput),
		Logger:   log,
		KeepTemp: cfg.KeepTemp,
	}

	rep := report.New()
	rep.OCamlVersion = tc.OCamlVersion
	rep.DuneVersion = tc.DuneVersion
	rep.Arch = tc.Arch
	rep.GCWorkaround = tc.GCWorkaroundEntry != ""

	for _, s := range suites {
		sr, err := run.RunSuite(ctx, s, tc)
		if err != nil {
			return fmt.Errorf("suite %q: %w", s.Name, err)
		}
		rep.AddSuite(*sr)
	}
	rep.Finish()

	printRunSummary(cmd, rep)

	// Recording failures are warnings; the verdict owns the exit code.
	if cfg.History.Enabled {
		if err := recordHistory(ctx, cfg, rep); err != nil {
			log.LogWarn(fmt.Sprintf("history not recorded: %v", err))
		}
	}
	if cfg.ArtifactPath != "" {
		if err := report.WriteArtifact(rep, cfg.ArtifactPath, ""); err != nil {
			log.LogWarn(fmt.Sprintf("artifact not written: %v", err))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Run artifact written to %s\n", cfg.ArtifactPath)
		}
	}

	if rep.Classification == policy.HardFailure {
		return fmt.Errorf("%d scenario(s) failed", failedScenarios(rep))
	}
	return nil
}

// loadRunConfig loads the config file and merges the run command's flags
// over it, following flag-wins precedence.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	// Build flag pointers for merge (only changed values)
	var dunePtr *string
	if cmd.Flags().Changed("dune") {
		v, _ := cmd.Flags().GetString("dune")
		dunePtr = &v
	}

	var buildTimeoutPtr *time.Duration
	if cmd.Flags().Changed("build-timeout") {
		v, _ := cmd.Flags().GetDuration("build-timeout")
		buildTimeoutPtr = &v
	}

	var runTimeoutPtr *time.Duration
	if cmd.Flags().Changed("run-timeout") {
		v, _ := cmd.Flags().GetDuration("run-timeout")
		runTimeoutPtr = &v
	}

	var archPtr *string
	if cmd.Flags().Changed("arch") {
		v, _ := cmd.Flags().GetString("arch")
		archPtr = &v
	}

	var versionPtr *string
	if cmd.Flags().Changed("ocaml-version") {
		v, _ := cmd.Flags().GetString("ocaml-version")
		versionPtr = &v
	}

	var artifactPtr *string
	if cmd.Flags().Changed("artifact") {
		v, _ := cmd.Flags().GetString("artifact")
		artifactPtr = &v
	}

	var keepTempPtr *bool
	if cmd.Flags().Changed("keep-temp") {
		v, _ := cmd.Flags().GetBool("keep-temp")
		keepTempPtr = &v
	}

	cfg.MergeWithFlags(dunePtr, buildTimeoutPtr, runTimeoutPtr, archPtr, versionPtr, artifactPtr, keepTempPtr)

	if logDir, _ := cmd.Flags().GetString("log-dir"); logDir != "" {
		cfg.LogDir = logDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildRegistry assembles the suite registry: builtins plus every custom
// suite found in the configured and flag-supplied directories.
func buildRegistry(cmd *cobra.Command, cfg *config.Config) (*scenario.Registry, error) {
	registry := scenario.DefaultRegistry()

	dirs := append([]string{}, cfg.SuiteDirs...)
	if flagDirs, _ := cmd.Flags().GetStringArray("suite-dir"); len(flagDirs) > 0 {
		dirs = append(dirs, flagDirs...)
	}

	for _, dir := range dirs {
		if _, err := scenario.LoadDir(registry, dir); err != nil {
			return nil, fmt.Errorf("load suites from %s: %w", dir, err)
		}
	}
	return registry, nil
}

// probeToolchain resolves the immutable toolchain context for the run.
// Version and architecture are read exactly once here.
func probeToolchain(ctx context.Context, cfg *config.Config, invoker *dune.Invoker, log logger.Logger) (runner.Toolchain, error) {
	ocamlVersion, err := toolchain.DetectVersion(ctx, cfg.OCamlVersion, invoker.OCamlVersion)
	if err != nil {
		// A failed probe must not abort a run whose scenarios might
		// pass; the placeholder never matches the 5.3 exception.
		log.LogWarn(fmt.Sprintf("OCaml version probe failed, treating version as unknown: %v", err))
		ocamlVersion = "unknown"
	}

	arch := toolchain.DetectArch(cfg.Arch)

	tc := runner.Toolchain{
		OCamlVersion: ocamlVersion,
		Arch:         arch,
	}

	if duneVersion, err := invoker.ToolVersion(ctx); err == nil {
		tc.DuneVersion = duneVersion
	} else {
		log.LogDebug(fmt.Sprintf("dune version probe failed: %v", err))
	}

	if entry, applies := toolchain.GCWorkaround(ocamlVersion, arch); applies {
		tc.GCWorkaroundEntry = entry
	}

	return tc, nil
}

// recordHistory stores the finished run in the history database and prunes
// old runs per the retention setting.
func recordHistory(ctx context.Context, cfg *config.Config, rep *report.Report) error {
	dbPath := cfg.History.DBPath
	if dbPath == "" {
		var err error
		dbPath, err = config.GetHistoryDBPath()
		if err != nil {
			return fmt.Errorf("resolve history database path: %w", err)
		}
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	if err := store.RecordRun(ctx, history.FromReport(rep)); err != nil {
		return err
	}

	if _, err := store.Prune(ctx, cfg.History.KeepRuns); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// printRunSummary prints the closing summary block for a run.
func printRunSummary(cmd *cobra.Command, rep *report.Report) {
	out := cmd.OutOrStdout()
	passed, failed := 0, 0
	for _, suite := range rep.Suites {
		for _, sc := range suite.Scenarios {
			if sc.Passed {
				passed++
			} else {
				failed++
			}
		}
	}

	fmt.Fprintf(out, "\nRun Summary:\n")
	fmt.Fprintf(out, "  Suites: %d\n", len(rep.Suites))
	fmt.Fprintf(out, "  Scenarios: %d passed, %d failed\n", passed, failed)
	fmt.Fprintf(out, "  Classification: %s\n", rep.Classification)
	fmt.Fprintf(out, "  Duration: %s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
}

// failedScenarios counts failing scenarios across all suites of a run.
func failedScenarios(rep *report.Report) int {
	failed := 0
	for _, suite := range rep.Suites {
		for _, sc := range suite.Scenarios {
			if !sc.Passed {
				failed++
			}
		}
	}
	return failed
}

// loadConfig resolves configuration for a command: the explicit --config
// path when given, otherwise .dunesmoke/config.yaml in the working
// directory, with the persistent display flags applied on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.NoColor = true
	}

	return cfg, nil
}
