// Package semaphore provides a cross-process counting semaphore built on
// top of the file mutex. Holder state lives in a JSON file; every state
// transition runs inside the mutex's exclusive critical section, so
// independent processes coordinating on the same path see a consistent
// holder set.
package semaphore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aki/filemutex"
)

// Holder represents an entity that can hold a semaphore
type Holder interface {
	ID() string
}

// ProcessHolder identifies the calling process with a unique
// per-instance token.
type ProcessHolder struct {
	id string
}

// NewProcessHolder creates a holder identity for the current process
func NewProcessHolder() ProcessHolder {
	return ProcessHolder{
		id: fmt.Sprintf("%d-%s", os.Getpid(), uuid.New().String()[:8]),
	}
}

// ID implements Holder
func (h ProcessHolder) ID() string {
	return h.id
}

// holderEntry represents a holder with metadata
type holderEntry struct {
	ID         string    `json:"id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// semaphoreData represents the persistent state of a semaphore
type semaphoreData struct {
	Capacity int           `json:"capacity"`
	Holders  []holderEntry `json:"holders"`
}

// FileSemaphore manages access to a resource using a file mutex for
// cross-process synchronization. The in-process sync.Mutex serializes
// goroutines of this process, which the file mutex alone cannot do.
type FileSemaphore struct {
	path     string
	capacity int
	mu       sync.Mutex
	fmu      *filemutex.FileMutex
}

// Error types
var (
	ErrNoCapacity  = errors.New("semaphore has no available capacity")
	ErrAlreadyHeld = errors.New("semaphore already held by this holder")
	ErrNotHeld     = errors.New("semaphore not held by this holder")
)

// New creates a new file-based semaphore whose state lives at path.
// The guarding lock file is derived from path the usual way (path plus
// the default suffix).
func New(path string, capacity int) (*FileSemaphore, error) {
	if capacity < 1 {
		capacity = 1
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	fmu, err := filemutex.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file mutex: %w", err)
	}

	return &FileSemaphore{
		path:     path,
		capacity: capacity,
		fmu:      fmu,
	}, nil
}

// Acquire attempts to acquire the semaphore for a holder
func (s *FileSemaphore) Acquire(holder Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filemutex.With(s.fmu, func() error {
		data, err := s.load()
		if err != nil {
			return fmt.Errorf("failed to load semaphore data: %w", err)
		}

		holderID := holder.ID()
		for _, h := range data.Holders {
			if h.ID == holderID {
				return ErrAlreadyHeld
			}
		}

		if len(data.Holders) >= s.capacity {
			return ErrNoCapacity
		}

		data.Holders = append(data.Holders, holderEntry{
			ID:         holderID,
			AcquiredAt: time.Now(),
		})

		return s.save(data)
	})
}

// Release releases the semaphore for a specific holder ID
func (s *FileSemaphore) Release(holderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filemutex.With(s.fmu, func() error {
		data, err := s.load()
		if err != nil {
			return fmt.Errorf("failed to load semaphore data: %w", err)
		}

		found := false
		filtered := make([]holderEntry, 0, len(data.Holders))
		for _, h := range data.Holders {
			if h.ID == holderID {
				found = true
				continue
			}
			filtered = append(filtered, h)
		}

		if !found {
			return ErrNotHeld
		}

		data.Holders = filtered
		return s.save(data)
	})
}

// Remove removes one or more holders from the semaphore
func (s *FileSemaphore) Remove(holderIDs ...string) error {
	if len(holderIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return filemutex.With(s.fmu, func() error {
		data, err := s.load()
		if err != nil {
			return fmt.Errorf("failed to load semaphore data: %w", err)
		}

		toRemove := make(map[string]bool)
		for _, id := range holderIDs {
			toRemove[id] = true
		}

		filtered := make([]holderEntry, 0, len(data.Holders))
		for _, h := range data.Holders {
			if !toRemove[h.ID] {
				filtered = append(filtered, h)
			}
		}

		data.Holders = filtered
		return s.save(data)
	})
}

// Holders returns the current holder IDs
func (s *FileSemaphore) Holders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	err := filemutex.WithShared(s.fmu, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		ids = make([]string, len(data.Holders))
		for i, h := range data.Holders {
			ids[i] = h.ID
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return ids
}

// Count returns the number of current holders
func (s *FileSemaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	err := filemutex.WithShared(s.fmu, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		count = len(data.Holders)
		return nil
	})
	if err != nil {
		return 0
	}
	return count
}

// Available returns the number of available slots
func (s *FileSemaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := s.capacity
	err := filemutex.WithShared(s.fmu, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		available = s.capacity - len(data.Holders)
		return nil
	})
	if err != nil {
		return s.capacity
	}
	if available < 0 {
		return 0
	}
	return available
}

// Close releases the file mutex handle
func (s *FileSemaphore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fmu != nil {
		return s.fmu.Close()
	}
	return nil
}

// load loads the semaphore data from disk
func (s *FileSemaphore) load() (*semaphoreData, error) {
	data := &semaphoreData{
		Capacity: s.capacity,
		Holders:  []holderEntry{},
	}

	// If file doesn't exist, return empty data
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return data, nil
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(content, data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	// Update capacity if it changed
	data.Capacity = s.capacity

	return data, nil
}

// save saves the semaphore data to disk atomically. The guarding lock
// file is separate from the state file, so the rename does not disturb
// the lock.
func (s *FileSemaphore) save(data *semaphoreData) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, content, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
