package trip

import (
	"context"
	"errors"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/treksync/internal/binding"
	"github.com/maruel/treksync/internal/prefs"
	"github.com/maruel/treksync/internal/remote"
)

// Preference keys of the device-local identity.
const (
	UsernameKey    = "trek-username"
	CurrentUserKey = "trek-current-user"
)

// ErrNoUsername is returned by operations that need the device-local user
// name before one was set.
var ErrNoUsername = errors.New("no user name set on this device")

// Env is what views need from their surroundings.
type Env struct {
	Store remote.Store
	Prefs prefs.Backend
	// Departure is the trip start, used by the countdown.
	Departure time.Time
	// Now returns the current time. nil means time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Username returns the device-local user name preference.
func (e *Env) Username() *prefs.Pref[string] {
	return prefs.Open(e.Prefs, UsernameKey, "")
}

// CurrentUser returns the roster profile selected on this device.
func (e *Env) CurrentUser() *prefs.Pref[string] {
	return prefs.Open(e.Prefs, CurrentUserKey, "")
}

// View is a mounted view model.
type View interface {
	// Tab returns the shell tab the view is mounted under.
	Tab() Tab
	// Loading reports whether any bound document is still loading.
	Loading() bool
	// Observe registers fn to run after any bound document changes.
	Observe(fn func()) (cancel func())
	// Close releases every binding of the view.
	Close()
}

// doc is a view bound to exactly one document.
type doc[T any] struct {
	env *Env
	b   *binding.Binding[T]
}

func bind[T any](env *Env, k Kind, def T) doc[T] {
	return doc[T]{env: env, b: binding.New(env.Store, k.Path(), def)}
}

// Loading implements View.
func (d *doc[T]) Loading() bool {
	return d.b.Loading()
}

// State reports whether the document was loaded.
func (d *doc[T]) State() binding.State {
	return d.b.State()
}

// Observe implements View.
func (d *doc[T]) Observe(fn func()) func() {
	return d.b.Observe(fn)
}

// Close implements View.
func (d *doc[T]) Close() {
	d.b.Close()
}

// Flush waits until every write issued by the view reached the store.
func (d *doc[T]) Flush(ctx context.Context) error {
	return d.b.Flush(ctx)
}

// Binding returns the underlying binding.
func (d *doc[T]) Binding() *binding.Binding[T] {
	return d.b
}

// update applies fn to the current document and writes the result when fn
// reports a change.
func (d *doc[T]) update(fn func(T) (T, bool)) {
	if next, ok := fn(d.b.Value()); ok {
		d.b.Update(next)
	}
}

// findByID returns the index of the record with id, or -1.
func findByID[T any](items []T, id ksid.ID, idOf func(*T) ksid.ID) int {
	for i := range items {
		if idOf(&items[i]) == id {
			return i
		}
	}
	return -1
}
