package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/trip"
)

func newPackCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Shared packing list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List items by category with this device user's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := open[trip.PackingList](cmd.Context(), app, trip.OpenPacking)
			if err != nil {
				return err
			}
			defer v.Close()
			me, _ := app.username()
			groups := v.ByCategory()
			cats := make([]string, 0, len(groups))
			for c := range groups {
				cats = append(cats, c)
			}
			slices.Sort(cats)
			w := app.table()
			for _, c := range cats {
				_, _ = fmt.Fprintf(w, "%s\n", c)
				for _, p := range groups[c] {
					_, _ = fmt.Fprintf(w, "  %s\t%s\t%dx %s\t%s\n", p.ID, check(p.PackedBy.Has(me)), p.Quantity, p.Name, strings.Join(p.PackedBy.Names(), ", "))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if me != "" {
				packed, total := v.Progress(me)
				app.printf("%s packed %d/%d\n", me, packed, total)
			}
			return nil
		},
	})

	var item trip.PackingItem
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := open[trip.PackingList](cmd.Context(), app, trip.OpenPacking)
			if err != nil {
				return err
			}
			defer v.Close()
			p := item
			p.Name = strings.Join(args, " ")
			id, err := v.Add(p)
			if err != nil {
				return err
			}
			app.printf("%s\n", id)
			return settle(cmd.Context(), v.Binding())
		},
	}
	add.Flags().StringVar(&item.Category, "category", "", "One of "+strings.Join(trip.PackingCategories, ", "))
	add.Flags().IntVar(&item.Quantity, "quantity", 1, "How many")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark an item packed or unpacked for this device's user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			me, err := app.username()
			if err != nil {
				return err
			}
			v, err := open[trip.PackingList](cmd.Context(), app, trip.OpenPacking)
			if err != nil {
				return err
			}
			defer v.Close()
			v.TogglePacked(id, me)
			return settle(cmd.Context(), v.Binding())
		},
	})
	return cmd
}
