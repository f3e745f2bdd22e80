package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/keller/dunesmoke/internal/config"
	"github.com/keller/dunesmoke/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs from the history database",
		Long: `Display recent harness runs recorded in the history database:
  - Classification and exit code of each run
  - Toolchain version and architecture it ran on
  - Scenario pass/fail counts

With a run ID argument, show the per-scenario detail of that run,
including failure messages.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 10, "Maximum number of runs to list")
	cmd.Flags().String("db", "", "Path to the history database")

	return cmd
}

// runHistory executes the history command
func runHistory(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.History.DBPath
	}
	if dbPath == "" {
		dbPath, err = config.GetHistoryDBPath()
		if err != nil {
			return fmt.Errorf("failed to get history database path: %w", err)
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No run history found\n")
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	if len(args) == 1 {
		rec, err := store.GetRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get run %s: %w", args[0], err)
		}
		printRunDetail(output, rec)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(output, "No run history found\n")
		return nil
	}

	printRunList(output, runs)
	return nil
}

// printRunList formats and prints the recent-runs listing
func printRunList(w io.Writer, runs []*history.RunRecord) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "\n=== Run History ===\n\n")
	fmt.Fprintf(w, "Showing %d run(s), most recent first\n\n", len(runs))

	for _, rec := range runs {
		fmt.Fprintf(w, "%s  ", formatTimestamp(rec.StartedAt))
		printClassification(w, rec.Classification)
		fmt.Fprintf(w, "  OCaml %s on %s", rec.OCamlVersion, rec.Arch)
		fmt.Fprintf(w, "  (%d passed, %d failed)\n", rec.PassedCount, rec.FailedCount)
		gray.Fprintf(w, "    run %s\n", rec.RunID)
	}

	fmt.Fprintln(w)
}

// printRunDetail formats and prints one run with its scenario rows
func printRunDetail(w io.Writer, rec *history.RunRecord) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "\n=== Run %s ===\n\n", rec.RunID)

	fmt.Fprintf(w, "Time: %s ", formatTimestamp(rec.StartedAt))
	gray.Fprintf(w, "(%s ago)\n", formatDuration(time.Since(rec.StartedAt)))
	fmt.Fprintf(w, "Duration: %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "OCaml: %s\n", rec.OCamlVersion)
	if rec.DuneVersion != "" {
		fmt.Fprintf(w, "Dune: %s\n", rec.DuneVersion)
	}
	fmt.Fprintf(w, "Architecture: %s\n", rec.Arch)
	if rec.GCWorkaround {
		fmt.Fprintf(w, "GC workaround: applied\n")
	}

	fmt.Fprintf(w, "Classification: ")
	printClassification(w, rec.Classification)
	fmt.Fprintf(w, " (exit %d)\n", rec.ExitCode)

	if len(rec.Scenarios) == 0 {
		return
	}

	fmt.Fprintf(w, "\nScenarios:\n")
	for _, sc := range rec.Scenarios {
		tag := "[OK]"
		colored := green
		if !sc.Passed {
			tag = "[FAIL]"
			colored = red
		}
		fmt.Fprintf(w, "  ")
		colored.Fprintf(w, "%s", tag)
		fmt.Fprintf(w, " %s/%s (%dms)\n", sc.Suite, sc.Scenario, sc.DurationMS)

		if sc.Message != "" {
			// First line only; full detail lives in the run log
			msg := strings.SplitN(strings.TrimSpace(sc.Message), "\n", 2)[0]
			gray.Fprintf(w, "      %s\n", msg)
		}
	}

	fmt.Fprintln(w)
}

// printClassification writes a colored classification tag
func printClassification(w io.Writer, classification string) {
	switch classification {
	case "PASS":
		color.New(color.FgGreen).Fprintf(w, "%-12s", classification)
	case "KNOWN_ISSUE":
		color.New(color.FgYellow).Fprintf(w, "%-12s", classification)
	case "HARD_FAILURE":
		color.New(color.FgRed).Fprintf(w, "%-12s", classification)
	default:
		fmt.Fprintf(w, "%-12s", classification)
	}
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatDuration formats a duration for human-readable display
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}
