// Package prefs persists small per-device values, such as the local user
// name, without any network access.
//
// A [Pref] reads its key once when opened. Writes update the in-memory value
// synchronously and are then persisted as JSON; persistence failures are
// logged and never undo the in-memory update.
package prefs

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Pref is one typed value stored under a key.
type Pref[T any] struct {
	backend Backend
	key     string

	mu    sync.Mutex
	value T
	gen   uint64 // bumped by every write
}

// Open reads key from backend. When the key is absent or its stored form
// does not parse as T, the value is def. def is not written back.
func Open[T any](backend Backend, key string, def T) *Pref[T] {
	p := &Pref[T]{backend: backend, key: key, value: def}
	raw, ok, err := backend.Get(key)
	if err != nil {
		slog.Warn("Failed to read preference", "key", key, "err", err)
		return p
	}
	if !ok {
		return p
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		slog.Warn("Ignoring unparseable preference", "key", key, "err", err)
		return p
	}
	p.value = v
	return p
}

// Key returns the storage key.
func (p *Pref[T]) Key() string {
	return p.key
}

// Value returns the current in-memory value.
func (p *Pref[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set replaces the value.
func (p *Pref[T]) Set(v T) {
	p.Update(func(T) T { return v })
}

// Update replaces the value with fn applied to the current one.
//
// fn runs without the lock held, so it may read p. When another write lands
// while fn runs, fn is called again with the newer value; it must therefore
// not write p itself.
func (p *Pref[T]) Update(fn func(prev T) T) {
	for {
		p.mu.Lock()
		prev, gen := p.value, p.gen
		p.mu.Unlock()
		next := fn(prev)

		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			continue
		}
		p.value = next
		p.gen++
		// Persisting under the lock keeps the backend in write order.
		p.persist(next)
		p.mu.Unlock()
		return
	}
}

func (p *Pref[T]) persist(v T) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to serialize preference", "key", p.key, "err", err)
		return
	}
	if err := p.backend.Set(p.key, string(data)); err != nil {
		slog.Error("Failed to persist preference", "key", p.key, "err", err)
	}
}
