// Package filelock provides advisory file locking and atomic writes for
// artifacts shared between concurrent harness invocations, such as the run
// report. Locks are flock-based and work across processes on the same host.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout indicates LockWithTimeout gave up before acquiring the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// retryInterval is the polling interval used by LockWithTimeout.
const retryInterval = 10 * time.Millisecond

// LockMetrics describes a single lock acquisition attempt sequence.
type LockMetrics struct {
	// Attempts is the number of TryLock calls made before the outcome.
	Attempts int

	// Wait is the total time spent acquiring the lock.
	Wait time.Duration

	// TimedOut reports whether acquisition gave up before succeeding.
	TimedOut bool
}

// MonitorFunc receives lock metrics after each acquisition attempt sequence.
type MonitorFunc func(path string, metrics LockMetrics)

// FileLock coordinates access to a file across goroutines and processes.
type FileLock struct {
	flock *flock.Flock
	path  string

	mu      sync.Mutex
	monitor MonitorFunc
	last    LockMetrics
}

// NewFileLock creates a lock for the given path. The lock file is created
// on first acquisition.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Lock acquires an exclusive lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	start := time.Now()
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	fl.record(LockMetrics{Attempts: 1, Wait: time.Since(start)})
	return nil
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns false when another holder has the lock.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// LockWithTimeout polls for the lock until it is acquired or the timeout
// elapses, in which case it returns ErrLockTimeout.
func (fl *FileLock) LockWithTimeout(timeout time.Duration) error {
	start := time.Now()
	deadline := start.Add(timeout)
	metrics := LockMetrics{}

	for {
		metrics.Attempts++
		acquired, err := fl.flock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
		}
		if acquired {
			metrics.Wait = time.Since(start)
			fl.record(metrics)
			return nil
		}
		if time.Now().After(deadline) {
			metrics.Wait = time.Since(start)
			metrics.TimedOut = true
			fl.record(metrics)
			return fmt.Errorf("lock on %s: %w after %v", fl.path, ErrLockTimeout, timeout)
		}
		time.Sleep(retryInterval)
	}
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// SetMonitor installs a callback that observes lock metrics. Pass nil to
// remove the monitor.
func (fl *FileLock) SetMonitor(fn MonitorFunc) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.monitor = fn
}

// LastMetrics returns the metrics from the most recent acquisition sequence.
func (fl *FileLock) LastMetrics() LockMetrics {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.last
}

func (fl *FileLock) record(metrics LockMetrics) {
	fl.mu.Lock()
	fl.last = metrics
	monitor := fl.monitor
	fl.mu.Unlock()

	if monitor != nil {
		monitor(fl.path, metrics)
	}
}

// AtomicWrite writes data to path through a temp file and rename, so readers
// never see a partial file. The parent directory is created when missing, and
// the temp file lands in the same directory to keep the rename atomic.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	// Renamed, nothing left to clean up
	tempFile = nil
	return nil
}

// LockAndWrite acquires a lock, writes atomically, releases the lock, and
// removes the lock file. The lock path is the target path plus ".lock".
func LockAndWrite(path string, data []byte) error {
	lockPath := path + ".lock"
	lock := NewFileLock(lockPath)

	if err := lock.Lock(); err != nil {
		return err
	}

	writeErr := AtomicWrite(path, data)

	if err := lock.Unlock(); err != nil && writeErr == nil {
		writeErr = err
	}
	os.Remove(lockPath)

	return writeErr
}
