// Package filemutex provides a cross-process mutual exclusion primitive
// backed by a filesystem lock file.
//
// A FileMutex has exclusive and shared locking capabilities and can be
// driven by generic scoped-acquisition helpers (see With and WithShared).
// It coordinates access across OS processes only: a FileMutex cannot
// guarantee synchronization between threads of the same process, so
// combine it with a conventional in-process mutex when threads of one
// process also need exclusion.
package filemutex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultSuffix is appended to the protected resource path to derive
	// the lock file path.
	DefaultSuffix = ".lock"

	// DefaultRetryInterval is how often deadline-based acquisition
	// re-attempts the platform lock while waiting.
	DefaultRetryInterval = 100 * time.Millisecond
)

// ErrNotBound is returned when a lock operation is called on a FileMutex
// that is not bound to a lock file (the zero value, or one whose handle
// was moved away via Swap or released via Close).
var ErrNotBound = errors.New("file mutex is not bound to a lock file")

// FileMutex synchronizes access to a resource, typically a file, across
// processes. It owns at most one handle to an OS advisory file lock on a
// side lock file derived from the resource path.
//
// The zero value is an unbound mutex; bind one with New. A single
// FileMutex instance is not safe for concurrent use by multiple
// goroutines without external synchronization.
type FileMutex struct {
	fl    *flock.Flock
	retry time.Duration
}

// Option configures a FileMutex during construction.
type Option func(*options)

type options struct {
	suffix string
	retry  time.Duration
}

// WithSuffix overrides the suffix appended to the resource path when
// deriving the lock file path.
func WithSuffix(suffix string) Option {
	return func(o *options) {
		o.suffix = suffix
	}
}

// WithRetryInterval sets the poll interval used by TryLockUntil and
// TryRLockUntil while waiting for the platform lock.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retry = d
	}
}

// New creates a FileMutex protecting the resource at path. The lock file
// lives next to the resource at path plus the configured suffix. It is
// created empty if absent; existing content is preserved. The lock file
// is never deleted implicitly, use Remove for that.
//
// Other processes coordinate by constructing their own FileMutex against
// the same resource path and suffix.
func New(path string, opts ...Option) (*FileMutex, error) {
	o := options{
		suffix: DefaultSuffix,
		retry:  DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	lockPath := path + o.suffix

	// Append-mode open so a pre-existing lock file keeps its content.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}

	return &FileMutex{
		fl:    flock.New(lockPath),
		retry: o.retry,
	}, nil
}

// Path returns the derived lock file path, or "" for an unbound mutex.
func (m *FileMutex) Path() string {
	if m.fl == nil {
		return ""
	}
	return m.fl.Path()
}

// Bound reports whether the mutex holds a platform lock handle.
func (m *FileMutex) Bound() bool {
	return m.fl != nil
}

// Swap exchanges the platform lock handles of two mutexes. It is the
// ownership transfer primitive: swapping with an unbound FileMutex moves
// the handle, and any lock state the OS associates with it, leaving the
// source unbound. Handles are never duplicated.
func (m *FileMutex) Swap(other *FileMutex) {
	m.fl, other.fl = other.fl, m.fl
	m.retry, other.retry = other.retry, m.retry
}

// Lock acquires exclusive ownership, blocking while any other process
// holds exclusive or shared ownership of the same lock file.
func (m *FileMutex) Lock() error {
	if m.fl == nil {
		return ErrNotBound
	}
	if err := m.fl.Lock(); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock: %w", err)
	}
	return nil
}

// TryLock attempts to acquire exclusive ownership without blocking.
// It returns false when another process holds the lock; that is a normal
// outcome, not an error.
func (m *FileMutex) TryLock() (bool, error) {
	if m.fl == nil {
		return false, ErrNotBound
	}
	locked, err := m.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire exclusive lock: %w", err)
	}
	return locked, nil
}

// TryLockUntil attempts to acquire exclusive ownership, retrying until
// the absolute deadline passes. Expiry returns false with no error.
func (m *FileMutex) TryLockUntil(deadline time.Time) (bool, error) {
	if m.fl == nil {
		return false, ErrNotBound
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	locked, err := m.fl.TryLockContext(ctx, m.retry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire exclusive lock: %w", err)
	}
	return locked, nil
}

// Unlock releases ownership of the lock. The caller must currently hold
// the lock; the mutex does not track lock state, the OS primitive does.
func (m *FileMutex) Unlock() error {
	if m.fl == nil {
		return ErrNotBound
	}
	if err := m.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// RLock acquires shared ownership, blocking while another process holds
// exclusive ownership. Any number of processes may hold shared ownership
// concurrently.
func (m *FileMutex) RLock() error {
	if m.fl == nil {
		return ErrNotBound
	}
	if err := m.fl.RLock(); err != nil {
		return fmt.Errorf("failed to acquire shared lock: %w", err)
	}
	return nil
}

// TryRLock attempts to acquire shared ownership without blocking.
func (m *FileMutex) TryRLock() (bool, error) {
	if m.fl == nil {
		return false, ErrNotBound
	}
	locked, err := m.fl.TryRLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire shared lock: %w", err)
	}
	return locked, nil
}

// TryRLockUntil attempts to acquire shared ownership, retrying until the
// absolute deadline passes. Expiry returns false with no error.
func (m *FileMutex) TryRLockUntil(deadline time.Time) (bool, error) {
	if m.fl == nil {
		return false, ErrNotBound
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	locked, err := m.fl.TryRLockContext(ctx, m.retry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire shared lock: %w", err)
	}
	return locked, nil
}

// RUnlock releases shared ownership. The caller must currently hold
// shared ownership.
func (m *FileMutex) RUnlock() error {
	if m.fl == nil {
		return ErrNotBound
	}
	if err := m.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release shared lock: %w", err)
	}
	return nil
}

// Close releases the platform lock handle and leaves the mutex unbound.
// Close does not stand in for Unlock: a holder must release ownership
// explicitly before closing, otherwise the lock's fate is left to the
// OS when the handle goes away.
func (m *FileMutex) Close() error {
	if m.fl == nil {
		return nil
	}
	err := m.fl.Close()
	m.fl = nil
	if err != nil {
		return fmt.Errorf("failed to close lock file handle: %w", err)
	}
	return nil
}

// Remove deletes the lock file derived from path and suffix. An empty
// suffix means DefaultSuffix. It returns false when no lock file existed
// and true when one was removed. Callers must ensure no FileMutex still
// holds the file open; otherwise the outcome is platform-dependent.
func Remove(path, suffix string) (bool, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if err := os.Remove(path + suffix); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove lock file: %w", err)
	}
	return true, nil
}
