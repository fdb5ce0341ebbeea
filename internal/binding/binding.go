// Package binding keeps a typed value in sync with one document of a remote
// store.
//
// A [Binding] mirrors the store: its value only changes when the store
// notifies it, including for the binding's own writes. [Binding.Update]
// replaces the whole document and never reports failure to the caller;
// failures are logged. Concurrent writers resolve by last write wins at the
// store.
package binding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/maruel/treksync/internal/remote"
)

// State tells an absent document apart from one that was loaded.
type State int

const (
	// Unloaded means no notification was decoded yet.
	Unloaded State = iota
	// Empty means the store reported no document; Value is the default.
	Empty
	// Populated means Value holds a document from the store.
	Populated
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Empty:
		return "empty"
	case Populated:
		return "populated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Validator is implemented by document types that check their own shape.
// Documents failing validation are rejected at the read boundary.
type Validator interface {
	Validate() error
}

// Binding is the live view of one path.
//
// Values returned by Value share memory with the binding; treat them as
// read-only and build a new value for Update.
type Binding[T any] struct {
	store remote.Store
	path  string
	def   T

	mu        sync.Mutex
	value     T
	state     State
	loading   bool
	closed    bool
	sub       remote.Subscription
	observers map[int]func()
	nextObs   int
	lastWrite chan struct{}
}

// New binds path in store. The subscription starts immediately; Loading
// reports true until the first notification or error.
//
// def is the value reported while the document is absent.
func New[T any](store remote.Store, path string, def T) *Binding[T] {
	b := &Binding[T]{
		store:     store,
		path:      path,
		def:       def,
		value:     def,
		loading:   true,
		observers: make(map[int]func()),
	}
	sub, err := store.Subscribe(path, b.onValue, b.onError)
	if err != nil {
		b.onError(err)
		return b
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return b
	}
	b.sub = sub
	b.mu.Unlock()
	return b
}

// Path returns the bound path.
func (b *Binding[T]) Path() string {
	return b.path
}

// Value returns the last document received from the store, or the default.
func (b *Binding[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Loading reports whether the first notification is still pending.
func (b *Binding[T]) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// State reports whether a document was loaded.
func (b *Binding[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Read returns the value and loading flag as one consistent pair.
func (b *Binding[T]) Read() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.loading
}

// Observe registers fn to run after every change of value, loading or
// state, in registration order. It returns a function that unregisters fn.
// Observers are not started after Close.
func (b *Binding[T]) Observe(fn func()) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextObs
	b.nextObs++
	if !b.closed {
		b.observers[id] = fn
	}
	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

// WaitLoaded blocks until Loading is false or ctx is done.
func (b *Binding[T]) WaitLoaded(ctx context.Context) error {
	ch := make(chan struct{}, 1)
	cancel := b.Observe(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	defer cancel()
	for b.Loading() {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Update replaces the whole document with v.
//
// Update does not block and does not change Value: the new value shows up
// once the store echoes it. Writes from one binding reach the store in call
// order. Failures are logged, never returned.
func (b *Binding[T]) Update(v T) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to serialize document", "path", b.path, "err", err)
		return
	}
	b.mu.Lock()
	prev := b.lastWrite
	done := make(chan struct{})
	b.lastWrite = done
	b.mu.Unlock()
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		// Not tied to the binding lifetime: Close does not cancel writes.
		if err := b.store.Set(context.Background(), b.path, data); err != nil {
			slog.Error("Remote write failed", "path", b.path, "err", err)
		}
	}()
}

// Flush blocks until every write issued so far was handed to the store and
// returned, or ctx is done. It says nothing about whether they succeeded.
func (b *Binding[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	last := b.lastWrite
	b.mu.Unlock()
	if last == nil {
		return nil
	}
	select {
	case <-last:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the subscription. No further notification changes the
// binding and no observer starts once Close returns, including the
// remaining observers of a round in which one of them calls Close. An
// observer already running on the delivering goroutine may finish. Writes
// already issued still complete.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	sub := b.sub
	b.sub = nil
	clear(b.observers)
	b.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (b *Binding[T]) onValue(snap remote.Snapshot) {
	var next T
	state := Empty
	if snap.Exists() {
		if err := decode(snap.Value, &next); err != nil {
			slog.Warn("Rejected remote document", "path", b.path, "rev", snap.Rev, "err", err)
			b.settle(nil)
			return
		}
		state = Populated
	} else {
		next = b.def
	}
	b.settle(func() {
		b.value = next
		b.state = state
	})
}

func (b *Binding[T]) onError(err error) {
	slog.Error("Remote read failed", "path", b.path, "err", err)
	b.settle(nil)
}

// settle applies change, clears loading and notifies observers.
func (b *Binding[T]) settle(change func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if change != nil {
		change()
	}
	b.loading = false
	ids := slices.Sorted(maps.Keys(b.observers))
	b.mu.Unlock()
	for _, id := range ids {
		if fn := b.observer(id); fn != nil {
			fn()
		}
	}
}

// observer returns the observer registered as id, or nil once it was
// canceled or the binding closed.
func (b *Binding[T]) observer(id int) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.observers[id]
}

func decode[T any](data json.RawMessage, v *T) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("shape mismatch: %w", err)
	}
	if val, ok := any(v).(Validator); ok {
		return val.Validate()
	}
	if val, ok := any(*v).(Validator); ok {
		return val.Validate()
	}
	return nil
}
