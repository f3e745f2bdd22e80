package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetDunesmokeHome returns the dunesmoke home directory
// Priority order:
//  1. DUNESMOKE_HOME environment variable (if set)
//  2. Repository root (detected by marker file or go.mod)
//  3. Current working directory (fallback)
//
// The directory is created if it doesn't exist
func GetDunesmokeHome() (string, error) {
	if home := os.Getenv("DUNESMOKE_HOME"); home != "" {
		return home, nil
	}

	repoRoot, err := findRepoRoot()
	if err == nil && repoRoot != "" {
		home := filepath.Join(repoRoot, ".dunesmoke")
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create dunesmoke home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".dunesmoke")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create dunesmoke home directory: %w", err)
	}

	return home, nil
}

// findRepoRoot walks upward from the working directory looking for a
// .dunesmoke-root marker file or a go.mod carrying this module's path
func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		markerPath := filepath.Join(current, ".dunesmoke-root")
		if _, err := os.Stat(markerPath); err == nil {
			return current, nil
		}

		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			if strings.Contains(string(data), "github.com/keller/dunesmoke") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("repository root not found (looking for .dunesmoke-root or go.mod with github.com/keller/dunesmoke)")
}

// GetHistoryDBPath returns the absolute path to the run-history database
// Always returns: $DUNESMOKE_HOME/history/runs.db
func GetHistoryDBPath() (string, error) {
	home, err := GetDunesmokeHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "history", "runs.db"), nil
}

// GetHistoryDir returns the history directory path, creating it if needed
func GetHistoryDir() (string, error) {
	home, err := GetDunesmokeHome()
	if err != nil {
		return "", err
	}

	historyDir := filepath.Join(home, "history")
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	return historyDir, nil
}

// GetLogDir returns the log directory path, creating it if needed
func GetLogDir() (string, error) {
	home, err := GetDunesmokeHome()
	if err != nil {
		return "", err
	}

	logDir := filepath.Join(home, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	return logDir, nil
}
