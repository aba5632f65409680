package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.Date)
}

func NewVersionCommand(rt *Runtime, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the credbroker version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(rt.Stdout, "credbroker %s\n", info)
			return err
		},
	}
}
