package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgedev/forge/internal/logging"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock, err := AcquireLock(dir, "0007", logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, os.Getpid(), lock.PID)

	_, err = os.Stat(filepath.Join(dir, LockFileName))
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(dir, LockFileName))
	assert.True(t, os.IsNotExist(err))

	// Release is idempotent.
	require.NoError(t, lock.Release())
}

func TestAcquireLock_Held(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock, err := AcquireLock(dir, "0007", logging.Nop())
	require.NoError(t, err)
	defer lock.Release()

	// The holder PID is this process, which is alive, so a second
	// acquisition must fail rather than queue.
	_, err = AcquireLock(dir, "0007", logging.Nop())
	require.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "0007")
}

func TestAcquireLock_StaleHolderReplaced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Fabricate a lock whose holder cannot exist.
	stale := Lock{
		FeatureID:  "0007",
		PID:        1 << 30,
		Hostname:   "gone-host",
		AcquiredAt: time.Now().Add(-time.Hour),
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), data, 0o644))

	lock, err := AcquireLock(dir, "0007", logging.Nop())
	require.NoError(t, err, "a dead holder's lock must not block acquisition")
	defer lock.Release()
	assert.Equal(t, os.Getpid(), lock.PID)
}

func TestLock_ReleaseDoesNotRemoveForeignLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock, err := AcquireLock(dir, "0007", logging.Nop())
	require.NoError(t, err)

	// Another process overwrote the lock file after our acquisition.
	foreign := Lock{FeatureID: "0007", PID: os.Getpid() + 1, Hostname: "other"}
	data, err := json.Marshal(foreign)
	require.NoError(t, err)
	path := filepath.Join(dir, LockFileName)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, lock.Release())
	_, err = os.Stat(path)
	assert.NoError(t, err, "a lock we no longer own must not be removed")
}

func TestReleaseNilLock(t *testing.T) {
	t.Parallel()

	var lock *Lock
	assert.NoError(t, lock.Release())
}
