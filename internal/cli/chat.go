package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/trip"
)

func newChatCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Group chat",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send <text>",
		Short: "Send a message as this device's user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := open[trip.ChatLog](cmd.Context(), app, trip.OpenChat)
			if err != nil {
				return err
			}
			defer v.Close()
			if _, err := v.Send(strings.Join(args, " ")); err != nil {
				return err
			}
			return settle(cmd.Context(), v.Binding())
		},
	})
	var last int
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Print the conversation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := open[trip.ChatLog](cmd.Context(), app, trip.OpenChat)
			if err != nil {
				return err
			}
			defer v.Close()
			msgs := v.Messages()
			if last > 0 && len(msgs) > last {
				msgs = msgs[len(msgs)-last:]
			}
			for _, m := range msgs {
				app.printf("%s  %s: %s\n", m.SentAt.Local().Format("Jan _2 15:04"), m.Author, m.Text)
			}
			return nil
		},
	}
	logCmd.Flags().IntVarP(&last, "last", "n", 0, "Only print the last n messages")
	cmd.AddCommand(logCmd)
	return cmd
}
