package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/prefs"
	"github.com/maruel/treksync/internal/trip"
)

func newWhoamiCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami [name]",
		Short: "Show or set the user name of this device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.prefs()
			if err != nil {
				return err
			}
			name := prefs.Open(p, trip.UsernameKey, "")
			if len(args) == 1 {
				name.Set(strings.TrimSpace(args[0]))
			}
			if name.Value() == "" {
				app.printf("(not set)\n")
				return nil
			}
			app.printf("%s\n", name.Value())
			return nil
		},
	}
}
