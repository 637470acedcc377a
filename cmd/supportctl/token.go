package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/presentation/middleware"
)

// newTokenCmd signs a token the API accepts, for local testing against a server with JWT_SECRET set.
func newTokenCmd(a *app) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Sign a development token for --subject and --role",
		Example: "  supportctl token --subject e1 --role EMP --secret \"$JWT_SECRET\"",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" || a.cfg.Subject == "" {
				return errors.New("--secret (or JWT_SECRET) and --subject are required")
			}
			role := a.cfg.Role
			if role == "" {
				role = "EMP"
			}
			tok, err := middleware.IssueToken(secret, a.cfg.Subject, role, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret shared with the API")
	return cmd
}
