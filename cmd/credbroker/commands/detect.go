package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/systmms/credbroker/internal/broker"
)

func NewDetectCommand(rt *Runtime) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "detect <url>",
		Short: "Show which authority credbroker would use for a URL",
		Long: `Print the authority selected for a URL and, for Azure DevOps accounts backed
by Azure AD, the directory tenant.

Examples:
  credbroker detect https://contoso.visualstudio.com
  credbroker detect https://github.com --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			def, err := rt.Definition()
			if err != nil {
				return err
			}
			vsts, err := rt.Vsts()
			if err != nil {
				return err
			}

			detection, err := broker.Detect(cmd.Context(), target, def.Authority, vsts)
			if err != nil {
				return err
			}

			if jsonOutput {
				out := map[string]string{"authority": detection.Policy.String()}
				if detection.Tenant != uuid.Nil {
					out["tenant"] = detection.Tenant.String()
				}
				enc := json.NewEncoder(rt.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintf(rt.Stdout, "authority: %s\n", detection.Policy)
			if detection.Tenant != uuid.Nil {
				fmt.Fprintf(rt.Stdout, "tenant: %s\n", detection.Tenant)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
