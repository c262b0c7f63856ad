package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	serve := newServeCommand(opts)
	root := &cobra.Command{
		Use:   "server",
		Short: "EventOps server - events, staff and equipment backend",
		Long: `EventOps server runs the HTTP API for event operations: events, staff,
equipment, the calendar and the dashboard.

Every request passes an authentication gate and a per-route permission check.
Permissions come from a closed vocabulary and are granted per account, usually
through a role preset. Every create, update and delete is written to the
change history, which is pruned after 365 days.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (optional, uses env vars by default)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newVersionCommand(),
		newHealthcheckCommand(),
		newMigrateCommand(opts),
		newHistoryCommand(opts),
		newAccessCommand(opts),
		newTokenCommand(opts),
	)
	return root
}

// Execute runs the command tree. It is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
