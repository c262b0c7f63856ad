package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/eventops/server/internal/auth"
	"github.com/spf13/cobra"
)

func newAccessCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Inspect the permission vocabulary and manage account permissions",
		Long: `Inspect the permission vocabulary and role presets, and change the
permissions held by an account.

Changes made here are recorded in the change history without an actor.`,
	}

	presets := &cobra.Command{
		Use:   "presets",
		Short: "List role presets and their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRESET\tPERMISSIONS")
			for _, p := range auth.Presets() {
				fmt.Fprintf(tw, "%s\t%s\n", p.ID, strings.Join(auth.Keys(p.Permissions), ","))
			}
			return tw.Flush()
		},
	}

	permissions := &cobra.Command{
		Use:   "permissions",
		Short: "List the permission vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PERMISSION\tDESCRIPTION")
			for _, info := range auth.VocabularyInfo() {
				fmt.Fprintf(tw, "%s\t%s\n", info.Key, info.Description)
			}
			return tw.Flush()
		},
	}

	var userID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the permissions an account holds",
		Args:  cobra.NoArgs,
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

			perms, err := svc.Access.GetForIdentity(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printPermissions(cmd.OutOrStdout(), userID, perms)
			return nil
		},
	}
	show.Flags().StringVar(&userID, "user", "", "account ID")
	_ = show.MarkFlagRequired("user")

	var grantUser, grantKeys string
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Add permissions to an account",
		Long: `Add permissions to an account, keeping the ones it already holds.

Example:
  server access grant --user 9b1e... --permissions staff:read,staff:write`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parsePermissionList(grantKeys)
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

			current, err := svc.Access.GetForIdentity(cmd.Context(), grantUser)
			if err != nil {
				return err
			}
			perms, err := svc.Access.SetForIdentity(cmd.Context(), grantUser, append(auth.Keys(current), keys...))
			if err != nil {
				return err
			}
			printPermissions(cmd.OutOrStdout(), grantUser, perms)
			return nil
		},
	}
	grant.Flags().StringVar(&grantUser, "user", "", "account ID")
	grant.Flags().StringVar(&grantKeys, "permissions", "", "comma separated permission keys")
	_ = grant.MarkFlagRequired("user")
	_ = grant.MarkFlagRequired("permissions")

	var presetUser, presetID string
	applyPreset := &cobra.Command{
		Use:   "apply-preset",
		Short: "Replace an account's permissions with a role preset",
		Args:  cobra.NoArgs,
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

			perms, err := svc.Access.ApplyPreset(cmd.Context(), presetUser, presetID)
			if err != nil {
				return err
			}
			printPermissions(cmd.OutOrStdout(), presetUser, perms)
			return nil
		},
	}
	applyPreset.Flags().StringVar(&presetUser, "user", "", "account ID")
	applyPreset.Flags().StringVar(&presetID, "preset", "", "preset ID (see: server access presets)")
	_ = applyPreset.MarkFlagRequired("user")
	_ = applyPreset.MarkFlagRequired("preset")

	cmd.AddCommand(presets, permissions, show, grant, applyPreset)
	return cmd
}

// parsePermissionList rejects unknown keys instead of silently dropping
// them the way the API does.
func parsePermissionList(list string) ([]string, error) {
	var keys []string
	for _, raw := range strings.Split(list, ",") {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, ok := auth.ParsePermission(key); !ok {
			return nil, fmt.Errorf("unknown permission %q (see: server access permissions)", key)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no permissions given")
	}
	return keys, nil
}

func printPermissions(w io.Writer, userID string, perms []auth.Permission) {
	if len(perms) == 0 {
		fmt.Fprintf(w, "%s: (none)\n", userID)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", userID, strings.Join(auth.Keys(perms), ","))
}
