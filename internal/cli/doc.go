package cli

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/binding"
	"github.com/maruel/treksync/internal/docstore"
)

// openRaw binds path without decoding the document.
func openRaw(cmd *cobra.Command, app *App, path string) (*binding.Binding[json.RawMessage], error) {
	if err := docstore.ValidatePath(path); err != nil {
		return nil, err
	}
	env, err := app.Env(cmd.Context())
	if err != nil {
		return nil, err
	}
	b := binding.New[json.RawMessage](env.Store, path, nil)
	if err := ready(cmd.Context(), b); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (a *App) printDoc(v json.RawMessage) {
	if v == nil {
		a.printf("null\n")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, v, "", "  "); err != nil {
		buf.Reset()
		buf.Write(v)
	}
	a.printf("%s\n", buf.Bytes())
}

func newGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print the document at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openRaw(cmd, app, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			app.printDoc(b.Value())
			return nil
		},
	}
}

func newSetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <json>",
		Short: "Replace the whole document at a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := json.RawMessage(args[1])
			if !json.Valid(value) {
				return errors.New("value is not valid JSON")
			}
			b, err := openRaw(cmd, app, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			b.Update(value)
			return settle(cmd.Context(), b)
		},
	}
}

func newClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <path>",
		Short: "Delete the document at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openRaw(cmd, app, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			b.Update(nil)
			return settle(cmd.Context(), b)
		},
	}
}

func newWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Print the document at a path every time it changes",
		Long:  "Print the document at a path every time it changes, until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openRaw(cmd, app, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			changed := make(chan struct{}, 1)
			cancel := b.Observe(func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			defer cancel()
			app.printDoc(b.Value())
			for {
				select {
				case <-changed:
					app.printf("---\n")
					app.printDoc(b.Value())
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
}
