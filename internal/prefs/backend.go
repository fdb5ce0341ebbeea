package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// ErrQuotaExceeded is returned by a Backend when a write would exceed its
// capacity.
var ErrQuotaExceeded = errors.New("preference storage quota exceeded")

// DefaultCapacity is the default size limit of a profile, in bytes.
const DefaultCapacity = 5 << 20

// Backend stores string values by key on the device.
type Backend interface {
	// Get returns the stored string for key. ok is false when absent.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key.
	Set(key, value string) error
}

// FileBackend keeps every entry of one profile in a single JSON object file.
//
// The file is read once when opened and rewritten atomically on every Set.
type FileBackend struct {
	path     string
	capacity int64

	mu      sync.Mutex
	entries map[string]string
}

// FileName is the name of the profile file inside its directory.
const FileName = "prefs.json"

// OpenFile opens the profile stored in dir, creating the directory if
// needed. capacity <= 0 means DefaultCapacity.
//
// A corrupted profile file is logged and treated as empty; it is overwritten
// on the next Set.
func OpenFile(dir string, capacity int64) (*FileBackend, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	f := &FileBackend{
		path:     filepath.Join(dir, FileName),
		capacity: capacity,
		entries:  make(map[string]string),
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		slog.Warn("Ignoring corrupted preference file", "path", f.path, "err", err)
		f.entries = make(map[string]string)
	}
	return f, nil
}

// Path returns the profile file path.
func (f *FileBackend) Path() string {
	return f.path
}

// Get implements Backend.
func (f *FileBackend) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok, nil
}

// Set implements Backend.
func (f *FileBackend) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := maps.Clone(f.entries)
	next[key] = value
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if int64(len(data)) > f.capacity {
		return fmt.Errorf("%w: %d bytes over a %d bytes limit", ErrQuotaExceeded, len(data), f.capacity)
	}
	if err := writeFileAtomic(f.path, data); err != nil {
		return err
	}
	f.entries = next
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", path, err), tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", path, err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s: %w", path, err), os.Remove(tmpPath))
	}
	return nil
}

// MemoryBackend is a Backend that keeps entries in memory only.
type MemoryBackend struct {
	// Capacity limits the summed length of keys and values. 0 means no limit.
	Capacity int

	mu      sync.Mutex
	entries map[string]string
}

// Get implements Backend.
func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Capacity > 0 {
		size := 0
		for k, v := range m.entries {
			if k != key {
				size += len(k) + len(v)
			}
		}
		if size+len(key)+len(value) > m.Capacity {
			return ErrQuotaExceeded
		}
	}
	if m.entries == nil {
		m.entries = make(map[string]string)
	}
	m.entries[key] = value
	return nil
}
