package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileLogger logs harness events to timestamped per-run files in a log
// directory and maintains a latest.log symlink pointing to the most recent
// run. It is thread-safe and implements the Logger interface. It supports
// log level filtering to control message verbosity.
type FileLogger struct {
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing under logDir with the given
// minimum level. It creates the directory if needed, opens a timestamped
// run log file, and creates or updates the latest.log symlink.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Timestamped filename: run-YYYYMMDD-HHMMSS.log
	runName := fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405"))
	runFile := filepath.Join(logDir, runName)

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	if err := refreshLatestSymlink(logDir, runFile); err != nil {
		file.Close()
		return nil, err
	}

	fl := &FileLogger{
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.write(fmt.Sprintf("=== dunesmoke run log ===\nStarted at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// refreshLatestSymlink points logDir/latest.log at the given run file,
// replacing any previous link. The link target is relative to logDir.
func refreshLatestSymlink(logDir, runFile string) error {
	link := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), link); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// Path returns the path of the current run log file.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

// shouldLog checks if a message at the given level should be logged.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return levelRank(messageLevel) >= levelRank(fl.logLevel)
}

// LogTrace writes a trace-level line to the run log.
func (fl *FileLogger) LogTrace(message string) {
	fl.emit("TRACE", message)
}

// LogDebug writes a debug-level line to the run log.
func (fl *FileLogger) LogDebug(message string) {
	fl.emit("DEBUG", message)
}

// LogInfo writes an info-level line to the run log.
func (fl *FileLogger) LogInfo(message string) {
	fl.emit("INFO", message)
}

// LogWarn writes a warning-level line to the run log.
func (fl *FileLogger) LogWarn(message string) {
	fl.emit("WARN", message)
}

// LogError writes an error-level line to the run log.
func (fl *FileLogger) LogError(message string) {
	fl.emit("ERROR", message)
}

// emit appends one "[HH:MM:SS] [LEVEL] message" line if the level passes
// the configured threshold.
func (fl *FileLogger) emit(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.write(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogSuiteStart logs the start of a suite run at INFO level.
func (fl *FileLogger) LogSuiteStart(suite string, scenarios int) {
	if !fl.shouldLog("info") {
		return
	}

	label := "scenario"
	if scenarios != 1 {
		label = "scenarios"
	}
	fl.write(fmt.Sprintf("[%s] Starting %s: %d %s\n", time.Now().Format("15:04:05"), suite, scenarios, label))
}

// LogSuiteComplete logs the completion of a suite run at INFO level.
func (fl *FileLogger) LogSuiteComplete(suite string, duration time.Duration) {
	if !fl.shouldLog("info") {
		return
	}
	fl.write(fmt.Sprintf("[%s] %s complete: duration %.1fs\n", time.Now().Format("15:04:05"), suite, duration.Seconds()))
}

// LogScenarioResult logs the completion of a scenario at DEBUG level.
func (fl *FileLogger) LogScenarioResult(name string, passed bool, duration time.Duration) error {
	if !fl.shouldLog("debug") {
		return nil
	}

	status := "PASS"
	if !passed {
		status = "FAIL"
	}
	fl.write(fmt.Sprintf("[%s] Scenario %s: %s (%.1fs)\n", time.Now().Format("15:04:05"), name, status, duration.Seconds()))
	return nil
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	if err := fl.runLog.Close(); err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}
	fl.runLog = nil
	return nil
}

// write is a thread-safe helper to append to the run log file.
func (fl *FileLogger) write(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write so tail -f stays current
		fl.runLog.Sync()
	}
}
