package filemutex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMutex(t *testing.T, path string, opts ...Option) *FileMutex {
	t.Helper()
	m, err := New(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew_CreatesLockFile(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	m := newTestMutex(t, resource)

	assert.Equal(t, resource+".lock", m.Path())
	assert.True(t, m.Bound())

	info, err := os.Stat(resource + ".lock")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestNew_PreservesExistingContent(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")
	lockPath := resource + ".lock"

	require.NoError(t, os.WriteFile(lockPath, []byte("existing"), 0o644))

	newTestMutex(t, resource)

	content, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(content))
}

func TestNew_CustomSuffix(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	m := newTestMutex(t, resource, WithSuffix(".guard"))

	assert.Equal(t, resource+".guard", m.Path())
	_, err := os.Stat(resource + ".guard")
	assert.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "missing", "dir", "data.txt")

	_, err := New(resource)
	assert.Error(t, err)
}

func TestExclusiveExcludesAll(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	// Independent handles stand in for independent processes.
	a := newTestMutex(t, resource)
	b := newTestMutex(t, resource)

	locked, err := a.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	locked, err = b.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "second exclusive acquisition should fail")

	locked, err = b.TryRLock()
	require.NoError(t, err)
	assert.False(t, locked, "shared acquisition should fail under exclusive holder")

	require.NoError(t, a.Unlock())

	locked, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, locked, "exclusive acquisition should succeed after release")
	require.NoError(t, b.Unlock())
}

func TestSharedAdmitsSharedExcludesExclusive(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	a := newTestMutex(t, resource)
	b := newTestMutex(t, resource)
	c := newTestMutex(t, resource)

	locked, err := a.TryRLock()
	require.NoError(t, err)
	require.True(t, locked)

	locked, err = b.TryRLock()
	require.NoError(t, err)
	assert.True(t, locked, "shared holders should coexist")

	locked, err = c.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "exclusive acquisition should fail under shared holders")

	require.NoError(t, a.RUnlock())

	locked, err = c.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "one shared holder remains")

	require.NoError(t, b.RUnlock())

	locked, err = c.TryLock()
	require.NoError(t, err)
	assert.True(t, locked, "all shared holders released")
	require.NoError(t, c.Unlock())
}

func TestTryLockUntil_ExpiresWithoutError(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	a := newTestMutex(t, resource)
	b := newTestMutex(t, resource, WithRetryInterval(10*time.Millisecond))

	require.NoError(t, a.Lock())

	start := time.Now()
	locked, err := b.TryLockUntil(time.Now().Add(50 * time.Millisecond))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, locked)
	assert.Less(t, elapsed, 2*time.Second, "expiry should be bounded by the deadline")

	require.NoError(t, a.Unlock())
}

func TestTryLockUntil_AcquiresWhenFree(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	m := newTestMutex(t, resource)

	locked, err := m.TryLockUntil(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, m.Unlock())
}

func TestTryLockUntil_AcquiresAfterRelease(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	a := newTestMutex(t, resource)
	b := newTestMutex(t, resource, WithRetryInterval(5*time.Millisecond))

	require.NoError(t, a.Lock())

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(30 * time.Millisecond)
		_ = a.Unlock()
	}()

	locked, err := b.TryLockUntil(time.Now().Add(2 * time.Second))
	require.NoError(t, err)
	assert.True(t, locked, "waiter should acquire once the holder releases")
	require.NoError(t, b.Unlock())
	<-done
}

func TestTryRLockUntil_ExpiresWithoutError(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	a := newTestMutex(t, resource)
	b := newTestMutex(t, resource, WithRetryInterval(10*time.Millisecond))

	require.NoError(t, a.Lock())

	locked, err := b.TryRLockUntil(time.Now().Add(50 * time.Millisecond))
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, a.Unlock())
}

func TestSwap_TransfersOwnership(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	src := newTestMutex(t, resource)
	require.NoError(t, src.Lock())

	var dst FileMutex
	dst.Swap(src)

	assert.False(t, src.Bound())
	assert.True(t, dst.Bound())
	assert.Equal(t, resource+".lock", dst.Path())

	// The destination now owns the handle and can release the lock the
	// source acquired.
	require.NoError(t, dst.Unlock())

	probe := newTestMutex(t, resource)
	locked, err := probe.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, probe.Unlock())

	require.NoError(t, dst.Close())
}

func TestUnboundOperationsReturnErrNotBound(t *testing.T) {
	var m FileMutex

	assert.ErrorIs(t, m.Lock(), ErrNotBound)
	assert.ErrorIs(t, m.Unlock(), ErrNotBound)
	assert.ErrorIs(t, m.RLock(), ErrNotBound)
	assert.ErrorIs(t, m.RUnlock(), ErrNotBound)

	_, err := m.TryLock()
	assert.ErrorIs(t, err, ErrNotBound)
	_, err = m.TryRLock()
	assert.ErrorIs(t, err, ErrNotBound)
	_, err = m.TryLockUntil(time.Now())
	assert.ErrorIs(t, err, ErrNotBound)
	_, err = m.TryRLockUntil(time.Now())
	assert.ErrorIs(t, err, ErrNotBound)

	assert.Empty(t, m.Path())
	assert.NoError(t, m.Close())
}

func TestRemove(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	removed, err := Remove(resource, "")
	require.NoError(t, err)
	assert.False(t, removed, "nothing to remove yet")

	m, err := New(resource)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	removed, err = Remove(resource, "")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = os.Stat(resource + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_CustomSuffix(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	m, err := New(resource, WithSuffix(".guard"))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	removed, err := Remove(resource, ".guard")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestLockWriteUnlockHandoff(t *testing.T) {
	tmpDir := t.TempDir()
	resource := filepath.Join(tmpDir, "data.txt")

	// First holder locks, writes, unlocks and goes away.
	a, err := New(resource)
	require.NoError(t, err)
	require.NoError(t, a.Lock())
	require.NoError(t, os.WriteFile(resource, []byte("written under lock\n"), 0o644))
	require.NoError(t, a.Unlock())
	require.NoError(t, a.Close())

	// A later arrival acquires immediately.
	b := newTestMutex(t, resource)
	locked, err := b.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, b.Unlock())

	content, err := os.ReadFile(resource)
	require.NoError(t, err)
	assert.Equal(t, "written under lock\n", string(content))
}
