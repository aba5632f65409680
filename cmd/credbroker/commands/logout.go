package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewLogoutCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <url>",
		Short: "Delete every credential and token kept for a URL",
		Long: `Delete the stored credential for a URL. For Azure DevOps this removes the
personal access token and the refresh token, so the next git operation signs in
again. Unlike erase, logout ignores the preserve setting.

Examples:
  credbroker logout https://dev.azure.com/contoso
  credbroker logout https://github.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}

			b, release, err := rt.Broker(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer release()
			defer waitPurge(b)

			if err := b.DeleteCredentials(cmd.Context(), target); err != nil {
				return err
			}
			fmt.Fprintf(rt.Stderr, "Logged out of %s\n", target.Host())
			return nil
		},
	}
}
