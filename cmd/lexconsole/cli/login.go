package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for an access token",
		Example: `  lexconsole login --email admin@firm.test --password '...'
  export LEXCONSOLE_TOKEN=$(lexconsole login --email admin@firm.test --password '...' --quiet)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout)
			defer cancel()
			res, err := client.Login(ctx, email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if quiet {
				fmt.Fprintln(a.stdout, res.AccessToken)
				return nil
			}
			fmt.Fprintf(a.stdout, "signed in as %s (%s), token valid for %s\n", email, res.Role, time.Duration(res.ExpiresIn)*time.Second)
			fmt.Fprintf(a.stdout, "export LEXCONSOLE_TOKEN=%s\n", res.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().Bool("quiet", false, "print only the token")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
