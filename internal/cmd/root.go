package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for dunesmoke
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dunesmoke",
		Short: "Functional smoke tests for a dune/OCaml toolchain",
		Long: `Dunesmoke exercises a dune/OCaml toolchain by building and running small
fixture projects: bytecode and native executables, multi-file libraries,
stdlib-dependent binaries, clean-build removal, and compiled-interface
consistency.

Failures normally fail the run. The one exception is the documented OCaml
5.3 GC defect: architecture-sensitive failures on 5.3.x toolchains running
on aarch64, ppc64le, or arm64 are reported as a known issue and do not
change the exit code.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text; main
		// prints the error itself.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .dunesmoke/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewVerdictCommand())
	cmd.AddCommand(NewSuitesCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
