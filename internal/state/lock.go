package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/forgedev/forge/internal/logging"
)

// LockFileName is the advisory lock file inside a feature directory.
const LockFileName = "run.lock"

// ErrLockHeld is returned when a feature's record is already locked by a
// live process. Concurrent execution against the same identity is a
// reportable error, never a silent queue.
var ErrLockHeld = errors.New("feature is locked by another forge process")

// Lock is an acquired advisory lock on one feature's state record. It is
// held for the duration of a decide+execute cycle and must be released on
// every exit path.
type Lock struct {
	FeatureID  string    `json:"feature_id"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`

	path   string
	logger *logging.Logger
}

// AcquireLock takes the advisory lock for a feature. It fails with
// ErrLockHeld (wrapped with holder details) when a live process holds the
// lock, and silently replaces a stale lock whose holder is gone.
func AcquireLock(featureDir, featureID string, logger *logging.Logger) (*Lock, error) {
	if err := os.MkdirAll(featureDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create feature directory: %w", err)
	}
	lockPath := filepath.Join(featureDir, LockFileName)

	if existing, err := readLock(lockPath); err == nil {
		if processAlive(existing.PID) {
			return nil, fmt.Errorf("%w: feature %s held by PID %d on %s",
				ErrLockHeld, featureID, existing.PID, existing.Hostname)
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		logger.Warn("removed stale lock", "feature_id", featureID, "old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	lock := &Lock{
		FeatureID:  featureID,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
		path:       lockPath,
		logger:     logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL so two processes racing for the lock cannot both win.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := readLock(lockPath); readErr == nil {
				return nil, fmt.Errorf("%w: feature %s held by PID %d on %s",
					ErrLockHeld, featureID, existing.PID, existing.Hostname)
			}
			return nil, fmt.Errorf("%w: feature %s", ErrLockHeld, featureID)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	logger.Debug("lock acquired", "feature_id", featureID, "pid", lock.PID)
	return lock, nil
}

// Release removes the lock file. Safe to call multiple times, and a
// no-op when another process has since taken the lock.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}

	existing, err := readLock(l.path)
	if err != nil {
		return nil
	}
	if existing.PID != l.PID {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	l.logger.Debug("lock released", "feature_id", l.FeatureID)
	return nil
}

func readLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &lock, nil
}

// processAlive reports whether a PID refers to a running process we can
// signal. Signal 0 performs the existence check without side effects.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
