package cli

import (
	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/trip"
)

func newCountdownCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "countdown",
		Short: "Time left before departure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.offlineEnv()
			if err != nil {
				return err
			}
			v, err := trip.Mount(env, trip.TabHome)
			if err != nil {
				return err
			}
			defer v.Close()
			r := v.(*trip.HomeView).Countdown()
			if r.Past {
				app.printf("Departed. Enjoy the trek!\n")
				return nil
			}
			app.printf("%d weeks %d days %02d:%02d:%02d (%d days)\n", r.Weeks, r.Days, r.Hours, r.Minutes, r.Seconds, r.TotalDays)
			return nil
		},
	}
}
