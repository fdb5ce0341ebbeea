package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/trip"
)

func newTasksCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Shared to-do list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks and who completed them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := open[trip.TaskList](cmd.Context(), app, trip.OpenTasks)
			if err != nil {
				return err
			}
			defer v.Close()
			me, _ := app.username()
			w := app.table()
			for _, t := range v.Tasks() {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, check(t.CompletedBy.Has(me)), t.Title, t.DueDate, strings.Join(t.CompletedBy.Names(), ", "))
			}
			return w.Flush()
		},
	})

	var add trip.Task
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := open[trip.TaskList](cmd.Context(), app, trip.OpenTasks)
			if err != nil {
				return err
			}
			defer v.Close()
			t := add
			t.Title = strings.Join(args, " ")
			id, err := v.Add(t)
			if err != nil {
				return err
			}
			app.printf("%s\n", id)
			return settle(cmd.Context(), v.Binding())
		},
	}
	addCmd.Flags().StringVar(&add.Description, "description", "", "Details")
	addCmd.Flags().StringVar(&add.AssignedTo, "assign", "", "Trekker in charge")
	addCmd.Flags().StringVar(&add.DueDate, "due", "", "Due date, YYYY-MM-DD")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a task done or not done for this device's user",
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
			v, err := open[trip.TaskList](cmd.Context(), app, trip.OpenTasks)
			if err != nil {
				return err
			}
			defer v.Close()
			v.Toggle(id, me)
			return settle(cmd.Context(), v.Binding())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v, err := open[trip.TaskList](cmd.Context(), app, trip.OpenTasks)
			if err != nil {
				return err
			}
			defer v.Close()
			v.Delete(id)
			return settle(cmd.Context(), v.Binding())
		},
	})
	return cmd
}
