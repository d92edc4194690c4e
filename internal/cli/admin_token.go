package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"teamquiz-service/internal/auth"
	"teamquiz-service/internal/config"
)

// NewAdminTokenCmd prints a signed admin token for operators.
func NewAdminTokenCmd(configPath *string) *cobra.Command {
	var ttl string
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue an admin bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			raw := ttl
			if raw == "" {
				raw = cfg.Auth.AdminTokenTTL
			}
			token, err := auth.IssueAdminToken(cfg.Auth.JWTSecret, config.TTLDuration(raw, 12*time.Hour), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime, e.g. 8h (defaults to auth.admin_token_ttl)")
	return cmd
}
