package commands

import (
	"github.com/spf13/cobra"
)

func NewGetCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Return a credential for the target git is asking about",
		Long: `Read a git credential request from stdin and answer it on stdout.

Stored credentials are returned first. For Azure DevOps the stored refresh token or
an IDE's federated token is exchanged for a fresh personal access token, and an
Azure sign-in is attempted silently before any prompt. Prompts follow the
interactive setting.

Nothing is printed when no credential could be found, which lets git fall back to
its next helper.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, target, err := readRequest(rt)
			if err != nil {
				return err
			}

			b, release, err := rt.Broker(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer release()
			defer waitPurge(b)

			cred, err := b.Resolve(cmd.Context(), target)
			if err != nil {
				return err
			}
			if cred == nil {
				rt.logger().Debug("no credential for %s", target.Host())
				return nil
			}
			return WriteCredential(rt.Stdout, *cred)
		},
	}
}
