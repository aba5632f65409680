package commands

import (
	"github.com/spf13/cobra"
)

func NewEraseCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "erase",
		Short: "Forget the credential git reported as rejected",
		Long: `Read a credential request from stdin and delete the matching entries.

With preserve: true in the configuration erase does nothing, which keeps
credentials that a server rejected only transiently.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, target, err := readRequest(rt)
			if err != nil {
				return err
			}

			def, err := rt.Definition()
			if err != nil {
				return err
			}
			if def.Preserve {
				rt.logger().Debug("preserve is set, keeping credentials for %s", target.Host())
				return nil
			}

			b, release, err := rt.Broker(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer release()
			defer waitPurge(b)

			return b.DeleteCredentials(cmd.Context(), target)
		},
	}
}
