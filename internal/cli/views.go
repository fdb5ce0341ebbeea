package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/maruel/ksid"

	"github.com/maruel/treksync/internal/binding"
	"github.com/maruel/treksync/internal/trip"
)

// bound is a view over one document.
type bound[T any] interface {
	Binding() *binding.Binding[T]
	Close()
}

// open mounts a view and waits for its document.
func open[T any, V bound[T]](ctx context.Context, app *App, mount func(*trip.Env) V) (V, error) {
	var zero V
	env, err := app.Env(ctx)
	if err != nil {
		return zero, err
	}
	v := mount(env)
	if err := ready(ctx, v.Binding()); err != nil {
		v.Close()
		return zero, err
	}
	return v, nil
}

func parseID(s string) (ksid.ID, error) {
	id, err := ksid.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
}

func check(b bool) string {
	if b {
		return "[x]"
	}
	return "[ ]"
}
