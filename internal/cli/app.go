// Package cli implements trekctl, the command line client of treksync.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/maruel/treksync/internal/binding"
	"github.com/maruel/treksync/internal/prefs"
	"github.com/maruel/treksync/internal/remote"
	"github.com/maruel/treksync/internal/trip"
	"github.com/maruel/treksync/internal/wire"
)

// loadTimeout bounds the wait for the first snapshot of a document.
const loadTimeout = 10 * time.Second

// App holds what commands share during one invocation.
type App struct {
	Out    io.Writer
	Config Config

	// Store and Prefs replace the server connection and the profile
	// directory when set.
	Store remote.Store
	Prefs prefs.Backend
	// Now overrides the clock.
	Now func() time.Time

	client *remote.Client
	env    *trip.Env
}

// Close releases the server connection, if any.
func (a *App) Close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	if errors.Is(err, remote.ErrClientClosed) {
		return nil
	}
	return err
}

func (a *App) prefs() (prefs.Backend, error) {
	if a.Prefs == nil {
		b, err := prefs.OpenFile(a.Config.Profile, prefs.DefaultCapacity)
		if err != nil {
			return nil, err
		}
		a.Prefs = b
	}
	return a.Prefs, nil
}

func (a *App) store(ctx context.Context) (remote.Store, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	codec, err := wire.ByName(a.Config.Codec)
	if err != nil {
		return nil, err
	}
	c, err := remote.Dial(ctx, a.Config.Server, &remote.ClientOptions{Token: a.Config.Token, Codec: codec})
	if err != nil {
		return nil, err
	}
	a.client = c
	a.Store = c
	return c, nil
}

// Env returns the view environment, connecting on first use.
func (a *App) Env(ctx context.Context) (*trip.Env, error) {
	if a.env != nil && a.env.Store != nil {
		return a.env, nil
	}
	env, err := a.offlineEnv()
	if err != nil {
		return nil, err
	}
	if env.Prefs, err = a.prefs(); err != nil {
		return nil, err
	}
	if env.Store, err = a.store(ctx); err != nil {
		return nil, err
	}
	return env, nil
}

// offlineEnv returns the view environment without touching the network or
// the profile.
func (a *App) offlineEnv() (*trip.Env, error) {
	if a.env != nil {
		return a.env, nil
	}
	env := &trip.Env{Now: a.Now}
	if a.Config.Departure != "" {
		dep, err := time.ParseInLocation(time.DateOnly, a.Config.Departure, time.Local)
		if err != nil {
			return nil, fmt.Errorf("departure: %w", err)
		}
		env.Departure = dep
	}
	a.env = env
	return env, nil
}

// username returns the device-local user name or trip.ErrNoUsername.
func (a *App) username() (string, error) {
	p, err := a.prefs()
	if err != nil {
		return "", err
	}
	name := prefs.Open(p, trip.UsernameKey, "").Value()
	if name == "" {
		return "", fmt.Errorf("%w, run \"trekctl whoami <name>\"", trip.ErrNoUsername)
	}
	return name, nil
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.Out, format, args...)
}

// ready waits for the first snapshot of b.
func ready[T any](ctx context.Context, b *binding.Binding[T]) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := b.WaitLoaded(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", b.Path(), err)
	}
	return nil
}

// settle waits for the writes of b to reach the store.
func settle[T any](ctx context.Context, b *binding.Binding[T]) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := b.Flush(ctx); err != nil {
		return fmt.Errorf("writing %s: %w", b.Path(), err)
	}
	return nil
}
