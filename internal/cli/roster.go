package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/trip"
)

func newRosterCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Who is coming",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trekkers and their cheers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := open[trip.Roster](cmd.Context(), app, trip.OpenRoster)
			if err != nil {
				return err
			}
			defer v.Close()
			w := app.table()
			for _, t := range v.Trekkers() {
				_, _ = fmt.Fprintf(w, "%s %s\t%s\t%d cheers\t%s\n", t.Avatar, t.Name, t.Experience, len(t.Congratulations), t.Reason)
			}
			return w.Flush()
		},
	})

	var t trip.Trekker
	join := &cobra.Command{
		Use:   "join",
		Short: "Add or update this device's trekker profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := t
			if p.Name == "" {
				name, err := app.username()
				if err != nil {
					return err
				}
				p.Name = name
			}
			v, err := open[trip.Roster](cmd.Context(), app, trip.OpenRoster)
			if err != nil {
				return err
			}
			defer v.Close()
			if err := v.Join(p); err != nil {
				return err
			}
			return settle(cmd.Context(), v.Binding())
		},
	}
	join.Flags().StringVar(&t.Name, "name", "", "Trekker name (default: this device's user name)")
	join.Flags().StringVar(&t.Avatar, "avatar", "", "Emoji shown next to the name")
	join.Flags().StringVar(&t.Experience, "experience", "", "Hiking experience")
	join.Flags().StringVar(&t.Reason, "reason", "", "Why you are coming")
	cmd.AddCommand(join)
	return cmd
}
