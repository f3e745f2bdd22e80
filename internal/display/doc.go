// Package display provides terminal UI utilities for the harness result stream.
//
// This package centralizes all user-facing terminal output: suite banners,
// per-scenario result lines, verdict annotations, and warnings. The logger
// package carries the timestamped diagnostic stream; display carries the
// human-readable story of the run. It provides three main categories of
// functionality:
//
// # Result Stream
//
// Use Printer for the scenario result stream of a run:
//
//	printer := display.NewPrinter(os.Stdout, colorOutput)
//	printer.BeginSuite(suite.Banner)
//	printer.ToolchainInfo(ocamlVersion, duneVersion, arch)
//	for _, sc := range suite.Scenarios {
//	    printer.ScenarioHeader(sc.HeaderTitle())
//	    // ... run the scenario ...
//	    printer.ScenarioResult(passed, label)
//	}
//	printer.Verdict(verdict, suite.Label)
//
// # Warning Messages
//
// Display warnings with optional components:
//
//	warning := display.Warning{
//	    Title:      "History not recorded",
//	    Message:    "the run completed but could not be saved",
//	    Suggestion: "Check that the database path is writable",
//	}
//	warning.Display(os.Stderr)
//
// Or use the convenience factory for files the suite loader skips:
//
//	ignored, _ := display.FindIgnoredFiles(dir)
//	if len(ignored) > 0 {
//	    warning := display.WarnIgnoredSuiteFiles(ignored)
//	    warning.Display(os.Stderr)
//	}
//
// # Suite Directory Hygiene
//
// Check if a filename will be picked up by the suite loader:
//
//	if display.IsSuiteFile(filename) {
//	    // Loader will parse it
//	}
//
// # Colors
//
// Colors come from github.com/fatih/color and respect the NO_COLOR
// convention and non-terminal writers through color.NoColor. The Printer
// additionally takes an explicit colorOutput flag so commands can honor a
// --no-color flag without touching global state.
//
// All functions accept io.Writer interfaces for testability and flexibility.
package display
