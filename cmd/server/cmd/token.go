package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain/users"
	"github.com/spf13/cobra"
)

func newTokenCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue session tokens",
	}

	var (
		userID string
		email  string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an existing account",
		Long: `Issue a signed bearer token for an existing account, for scripts and
local testing. The token carries no permissions; they are looked up on every
request.

Examples:
  server token issue --email admin@example.com
  server token issue --user 9b1e... --ttl 1h

Test with:
  curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/api/v1/auth/me`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (userID == "") == (email == "") {
				return errors.New("exactly one of --user or --email is required")
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

			var user users.User
			if userID != "" {
				user, err = svc.Users.Get(cmd.Context(), userID)
			} else {
				user, err = svc.Repository.Users().GetByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(email)))
			}
			if err != nil {
				return fmt.Errorf("look up account: %w", err)
			}

			lifetime := cfg.Auth.TokenLifetime()
			if ttl > 0 {
				lifetime = ttl
			}
			tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), lifetime, cfg.Auth.Issuer)
			token, expiresAt, err := tokens.Issue(auth.Identity{ID: user.ID, Email: user.Email})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "account ID")
	issue.Flags().StringVar(&email, "email", "", "account email")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: JWT_LIFETIME_SECONDS, 24h)")

	cmd.AddCommand(issue)
	return cmd
}
