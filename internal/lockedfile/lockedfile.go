// Package lockedfile provides process-safe typed file access guarded by
// a file mutex. The mutex lives in a side lock file next to the target,
// so the lock survives the atomic temp-and-rename writes this package
// performs and can be held across a full read-modify-write cycle.
package lockedfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aki/filemutex"
)

// ErrLockTimeout is returned when acquiring the file mutex times out
var ErrLockTimeout = errors.New("timeout acquiring file lock")

// UpdateFunc is a function that modifies data in-place
type UpdateFunc[T any] func(data *T) error

// Manager provides process-safe file operations for YAML-encoded values
// of type T
type Manager[T any] struct {
	// lockTimeout is the maximum time to wait for the file mutex
	lockTimeout time.Duration
	retry       time.Duration
}

// NewManager creates a new file manager with default settings
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{
		lockTimeout: 5 * time.Second,
		retry:       filemutex.DefaultRetryInterval,
	}
}

// NewManagerWithTimeout creates a new file manager with custom lock timeout
func NewManagerWithTimeout[T any](timeout time.Duration) *Manager[T] {
	return &Manager[T]{
		lockTimeout: timeout,
		retry:       filemutex.DefaultRetryInterval,
	}
}

// Read reads and decodes the file at path under a shared lock.
func (m *Manager[T]) Read(ctx context.Context, path string) (*T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	mu, err := filemutex.New(path, filemutex.WithRetryInterval(m.retry))
	if err != nil {
		return nil, fmt.Errorf("failed to create file mutex: %w", err)
	}
	defer func() { _ = mu.Close() }()

	locked, err := mu.TryRLockUntil(m.deadline(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	defer func() { _ = mu.RUnlock() }()

	return m.readLocked(path)
}

// Write encodes data and writes it to path under an exclusive lock,
// using an atomic temp file plus rename.
func (m *Manager[T]) Write(ctx context.Context, path string, data *T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	mu, err := filemutex.New(path, filemutex.WithRetryInterval(m.retry))
	if err != nil {
		return fmt.Errorf("failed to create file mutex: %w", err)
	}
	defer func() { _ = mu.Close() }()

	locked, err := mu.TryLockUntil(m.deadline(ctx))
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = mu.Unlock() }()

	return m.writeLocked(path, data)
}

// Update reads the file at path, applies updateFunc, and writes the
// result back, all while holding the exclusive lock. A missing file is
// treated as the zero value of T, so Update also creates files.
func (m *Manager[T]) Update(ctx context.Context, path string, updateFunc UpdateFunc[T]) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	mu, err := filemutex.New(path, filemutex.WithRetryInterval(m.retry))
	if err != nil {
		return fmt.Errorf("failed to create file mutex: %w", err)
	}
	defer func() { _ = mu.Close() }()

	locked, err := mu.TryLockUntil(m.deadline(ctx))
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = mu.Unlock() }()

	data := new(T)
	if _, err := os.Stat(path); err == nil {
		data, err = m.readLocked(path)
		if err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if err := updateFunc(data); err != nil {
		return fmt.Errorf("update function failed: %w", err)
	}

	return m.writeLocked(path, data)
}

// Delete removes the file at path under an exclusive lock. The side
// lock file is left behind; remove it with filemutex.Remove once no
// process coordinates on it anymore.
func (m *Manager[T]) Delete(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}

	mu, err := filemutex.New(path, filemutex.WithRetryInterval(m.retry))
	if err != nil {
		return fmt.Errorf("failed to create file mutex: %w", err)
	}
	defer func() { _ = mu.Close() }()

	locked, err := mu.TryLockUntil(m.deadline(ctx))
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = mu.Unlock() }()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}

// deadline derives the lock acquisition deadline from the manager's
// timeout, tightened by the context deadline when that is sooner.
func (m *Manager[T]) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(m.lockTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (m *Manager[T]) readLocked(path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var result T
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	return &result, nil
}

func (m *Manager[T]) writeLocked(path string, data *T) error {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal yaml: %w", err)
	}

	// Unique temp file name to avoid conflicts on Windows
	tempFile := fmt.Sprintf("%s.%d.%d.tmp", path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tempFile, yamlData, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if f, err := os.OpenFile(tempFile, os.O_RDWR, 0o644); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
