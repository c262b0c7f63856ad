package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/eventops/server/internal/domain/history"
	"github.com/spf13/cobra"
)

func newHistoryCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune the change history",
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete change history older than 365 days",
		Long: `Delete change history entries created more than 365 days ago.

The server runs the same sweep every 24 hours; use this command to run it
on demand. Running it twice in a row is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			svc, b, err := servicesOpener(cmd.Context(), cfg, commandLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			deleted, err := svc.Recorder.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", deleted)
			return nil
		},
	}

	var (
		filter history.Filter
		action string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Print change history entries, newest first",
		Long: `Print change history entries as JSON, one per line, newest first.

Examples:
  # Last 100 changes
  server history list

  # Everything that happened to one event
  server history list --entity-type event --entity-id 3f0c...

  # Deletions by one account
  server history list --actor 9b1e... --action delete --limit 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if action != "" {
				parsed, ok := history.ParseAction(action)
				if !ok {
					return fmt.Errorf("invalid --action %q: must be one of create, update, delete", action)
				}
				filter.Action = parsed
			}
			normalized, err := history.NormalizeFilter(filter)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			svc, b, err := servicesOpener(cmd.Context(), cfg, commandLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			entries, err := svc.Recorder.List(cmd.Context(), normalized)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, entry := range entries {
				if err := enc.Encode(entry); err != nil {
					return err
				}
			}
			return nil
		},
	}
	list.Flags().StringVar(&filter.EntityType, "entity-type", "", "only entries for this entity type (event, staff, equipment, user, permissions)")
	list.Flags().StringVar(&filter.EntityID, "entity-id", "", "only entries for this entity")
	list.Flags().StringVar(&filter.ActorID, "actor", "", "only entries made by this account")
	list.Flags().StringVar(&action, "action", "", "only this action (create, update, delete)")
	list.Flags().IntVar(&filter.Limit, "limit", history.DefaultListLimit, "maximum entries to print (capped at 1000)")
	list.Flags().IntVar(&filter.Offset, "offset", 0, "entries to skip")

	cmd.AddCommand(prune, list)
	return cmd
}
