// Package logger provides logging for dunesmoke harness execution.
//
// The logger package offers leveled console logging of harness progress at
// the suite and scenario levels. Implementations are thread-safe. Scenario
// status lines printed for CI consumption (the [OK]/[FAIL] stream) are not
// produced here; they belong to the display package. This package carries
// the diagnostic stream around them.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// levelRanks orders log levels from most to least verbose. A message is
// emitted when its rank is at or above the configured threshold's rank.
var levelRanks = map[string]int{
	"trace": 0,
	"debug": 1,
	"info":  2,
	"warn":  3,
	"error": 4,
}

// levelColors maps level tags to their ANSI color for terminal output.
var levelColors = map[string]color.Attribute{
	"TRACE": color.FgHiBlack,
	"DEBUG": color.FgCyan,
	"INFO":  color.FgBlue,
	"WARN":  color.FgYellow,
	"ERROR": color.FgRed,
}

// Logger is the diagnostic logging interface harness components write to.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogSuiteStart(suite string, scenarios int)
	LogSuiteComplete(suite string, duration time.Duration)
	LogScenarioResult(name string, passed bool, duration time.Duration) error
}

// ConsoleLogger logs harness progress to a writer with timestamps and thread
// safety. All output is prefixed with [HH:MM:SS] timestamps. It supports log
// level filtering to control verbosity. Color output is enabled when the
// writer is a TTY and color has not been disabled.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded.
// logLevel determines the minimum level for messages to be output.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// DisableColor forces plain output regardless of TTY detection.
func (cl *ConsoleLogger) DisableColor() {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = false
}

// isTerminal checks if the writer is a terminal that supports colors.
// color.NoColor already accounts for the NO_COLOR convention.
func isTerminal(w io.Writer) bool {
	if w == nil || color.NoColor {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel lowercases and validates a log level string, falling
// back to "info" for empty or unknown levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if _, ok := levelRanks[normalized]; ok {
		return normalized
	}
	return "info"
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return levelRank(messageLevel) >= levelRank(cl.logLevel)
}

// levelRank returns the filtering rank for a level name. Unknown names
// rank as info.
func levelRank(level string) int {
	if rank, ok := levelRanks[level]; ok {
		return rank
	}
	return levelRanks["info"]
}

// LogTrace writes a trace-level line, the most verbose tier.
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.emit("TRACE", message)
}

// LogDebug writes a debug-level line.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.emit("DEBUG", message)
}

// LogInfo writes an info-level line.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.emit("INFO", message)
}

// LogWarn writes a warning-level line.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.emit("WARN", message)
}

// LogError writes an error-level line.
func (cl *ConsoleLogger) LogError(message string) {
	cl.emit("ERROR", message)
}

// emit writes one "[HH:MM:SS] [LEVEL] message" line if the level passes
// the configured threshold.
func (cl *ConsoleLogger) emit(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	tag := level
	if cl.colorOutput {
		tag = colorizeLevel(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), tag, message)
}

// colorizeLevel wraps a level tag in its ANSI color.
func colorizeLevel(level string) string {
	attr, ok := levelColors[strings.ToUpper(level)]
	if !ok {
		return level
	}
	return color.New(attr).Sprint(level)
}

// LogSuiteStart logs the start of a suite run at INFO level.
// Format: "[HH:MM:SS] Starting <suite>: <count> scenarios"
func (cl *ConsoleLogger) LogSuiteStart(suite string, scenarios int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := suite
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(suite)
	}
	fmt.Fprintf(cl.writer, "[%s] Starting %s: %d scenarios\n", timestamp(), name, scenarios)
}

// LogSuiteComplete logs the completion of a suite run at INFO level.
// Format: "[HH:MM:SS] <suite> complete (<duration>)"
func (cl *ConsoleLogger) LogSuiteComplete(suite string, duration time.Duration) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	durationStr := formatDuration(duration)
	if cl.colorOutput {
		name := color.New(color.Bold).Sprint(suite)
		completeText := color.New(color.FgGreen).Sprint("complete")
		fmt.Fprintf(cl.writer, "[%s] %s %s (%s)\n", timestamp(), name, completeText, durationStr)
	} else {
		fmt.Fprintf(cl.writer, "[%s] %s complete (%s)\n", timestamp(), suite, durationStr)
	}
}

// LogScenarioResult logs the completion of a scenario at DEBUG level.
// Format: "[HH:MM:SS] Scenario <name>: PASS|FAIL (<duration>)"
// Returns nil for successful logging, or an error if logging failed.
func (cl *ConsoleLogger) LogScenarioResult(name string, passed bool, duration time.Duration) error {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return nil
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := "PASS"
	if !passed {
		status = "FAIL"
	}
	if cl.colorOutput {
		if passed {
			status = color.New(color.FgGreen).Sprint(status)
		} else {
			status = color.New(color.FgRed).Sprint(status)
		}
	}

	_, err := fmt.Fprintf(cl.writer, "[%s] Scenario %s: %s (%s)\n", timestamp(), name, status, formatDuration(duration))
	return err
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration renders a duration in compact h/m/s form, omitting zero
// trailing components. Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	total := int64(d.Seconds())
	hours, minutes, seconds := total/3600, (total%3600)/60, total%60

	switch {
	case hours > 0:
		out := fmt.Sprintf("%dh", hours)
		if minutes > 0 || seconds > 0 {
			out += fmt.Sprintf("%dm", minutes)
		}
		if seconds > 0 {
			out += fmt.Sprintf("%ds", seconds)
		}
		return out
	case minutes > 0:
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// NoOpLogger discards every log call. Useful for testing and for code
// paths where logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string) {}

func (n *NoOpLogger) LogDebug(message string) {}

func (n *NoOpLogger) LogInfo(message string) {}

func (n *NoOpLogger) LogWarn(message string) {}

func (n *NoOpLogger) LogError(message string) {}

func (n *NoOpLogger) LogSuiteStart(suite string, scenarios int) {}

func (n *NoOpLogger) LogSuiteComplete(suite string, duration time.Duration) {}

func (n *NoOpLogger) LogScenarioResult(name string, passed bool, duration time.Duration) error {
	return nil
}
