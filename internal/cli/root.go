package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maruel/treksync/internal/logging"
)

// NewRootCommand returns the trekctl command tree bound to app.
//
// level is the logger level to adjust from the configuration; nil leaves
// logging alone.
func NewRootCommand(app *App, level *slog.LevelVar) *cobra.Command {
	var (
		configPath string
		flags      Config
	)
	root := &cobra.Command{
		Use:           "trekctl",
		Short:         "Plan a group trek from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			pf := cmd.Flags()
			path := configPath
			if path == "" {
				path = DefaultConfigPath()
			}
			cfg, err := LoadConfig(path, pf.Changed("config"))
			if err != nil {
				return err
			}
			if pf.Changed("server") {
				cfg.Server = flags.Server
			}
			if pf.Changed("token") {
				cfg.Token = flags.Token
			}
			if pf.Changed("codec") {
				cfg.Codec = flags.Codec
			}
			if pf.Changed("profile") {
				cfg.Profile = flags.Profile
			}
			if pf.Changed("log-level") {
				cfg.LogLevel = flags.LogLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			app.Config = cfg
			if level != nil && cfg.LogLevel != "" {
				return logging.SetLevel(level, cfg.LogLevel)
			}
			return nil
		},
	}
	root.SetOut(app.Out)
	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default "+DefaultConfigPath()+")")
	pf.StringVar(&flags.Server, "server", "", "WebSocket endpoint of the treksync server")
	pf.StringVar(&flags.Token, "token", "", "Access token")
	pf.StringVar(&flags.Codec, "codec", "", "Wire encoding: json or cbor")
	pf.StringVar(&flags.Profile, "profile", "", "Directory holding device-local preferences")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newWhoamiCommand(app),
		newGetCommand(app),
		newSetCommand(app),
		newClearCommand(app),
		newWatchCommand(app),
		newTasksCommand(app),
		newChatCommand(app),
		newRosterCommand(app),
		newPackCommand(app),
		newCountdownCommand(app),
		newImportCommand(app),
	)
	return root
}
