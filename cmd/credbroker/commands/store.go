package commands

import (
	"github.com/spf13/cobra"

	dserrors "github.com/systmms/credbroker/internal/errors"
)

func NewStoreCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "store",
		Short: "Remember the credential git just used successfully",
		Long: `Read a credential from stdin and write it to the OS credential store.

Azure DevOps targets ignore store: their personal access tokens are minted and
saved by credbroker itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, target, err := readRequest(rt)
			if err != nil {
				return err
			}
			cred, err := req.Credential()
			if err != nil {
				return dserrors.UserError{
					Message:    "credential rejected",
					Details:    err.Error(),
					Suggestion: "store needs username= and password= lines",
					Err:        err,
				}
			}

			b, release, err := rt.Broker(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer release()
			defer waitPurge(b)

			stored, err := b.SetCredentials(cmd.Context(), target, cred)
			if err != nil {
				return err
			}
			if !stored {
				rt.logger().Debug("%s manages its own credentials, store ignored", b.Policy())
			}
			return nil
		},
	}
}
